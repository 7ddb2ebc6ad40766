package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	GameTag       *string   `json:"game_tag,omitempty"`
	Email         *string   `json:"email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clash Royale tags use a restricted alphabet.
var gameTagPattern = regexp.MustCompile(`^#[0289PYLQGRJCUV]{3,}$`)

// NormalizeGameTag uppercases, trims, and prefixes '#'. Empty input stays empty.
func NormalizeGameTag(tag string) string {
	s := strings.ToUpper(strings.TrimSpace(tag))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

func IsValidGameTag(tag string) bool {
	return gameTagPattern.MatchString(tag)
}

func (u *User) GameTagValue() string {
	if u.GameTag == nil {
		return ""
	}
	return *u.GameTag
}
