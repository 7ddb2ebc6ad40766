// Package battlelog correlates two Clash Royale battle logs into the single
// head-to-head battle both players agree on.
package battlelog

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
)

var ErrEmptyTag = errors.New("player tag required")

// Battle is one entry of /players/{tag}/battlelog. Raw keeps the original payload.
type Battle struct {
	BattleTime string          `json:"battleTime"`
	Type       string          `json:"type"`
	GameMode   *GameMode       `json:"gameMode,omitempty"`
	Team       []Player        `json:"team"`
	Opponent   []Player        `json:"opponent"`
	Raw        json.RawMessage `json:"-"`
}

type GameMode struct {
	ID   *int64 `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Player struct {
	Tag              *string `json:"tag"`
	Name             string  `json:"name,omitempty"`
	Crowns           *int    `json:"crowns,omitempty"`
	StartingTrophies *int    `json:"startingTrophies,omitempty"`
	TrophyChange     *int    `json:"trophyChange,omitempty"`
	Clan             *Clan   `json:"clan,omitempty"`
	Cards            []Card  `json:"cards,omitempty"`
}

type Clan struct {
	Tag     string `json:"tag,omitempty"`
	Name    string `json:"name,omitempty"`
	BadgeID *int64 `json:"badgeId,omitempty"`
}

type Card struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	MaxLevel int    `json:"maxLevel"`
}

func (b *Battle) UnmarshalJSON(data []byte) error {
	type plain Battle
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Battle(p)
	b.Raw = append(json.RawMessage(nil), data...)
	return nil
}

func (b Battle) MarshalJSON() ([]byte, error) {
	if len(b.Raw) > 0 {
		return b.Raw, nil
	}
	type plain Battle
	return json.Marshal(plain(b))
}

func (p Player) CrownCount() int {
	if p.Crowns == nil {
		return 0
	}
	return *p.Crowns
}

func (p Player) TagValue() string {
	if p.Tag == nil {
		return ""
	}
	return *p.Tag
}

// NormalizeTag returns the canonical "#TAG" form.
func NormalizeTag(tag string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(tag))
	s = strings.TrimLeft(s, "#")
	if s == "" {
		return "", ErrEmptyTag
	}
	return "#" + s, nil
}

func mustNormalize(tag string) string {
	s, _ := NormalizeTag(tag)
	return s
}

// battleTimeLayout matches the feed's "20240525T153000.000Z".
const battleTimeLayout = "20060102T150405.000Z"

var battleTimePattern = regexp.MustCompile(`^\d{8}T\d{6}\.\d{3}Z$`)

// ParseBattleTime parses the compact UTC format. ok is false for anything else.
func ParseBattleTime(raw string) (time.Time, bool) {
	if !battleTimePattern.MatchString(raw) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(battleTimeLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseHistory decodes a raw battle log array. Entries that do not decode as a
// battle are dropped; only a malformed top-level document is an error.
func ParseHistory(data []byte) ([]Battle, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	battles := make([]Battle, 0, len(entries))
	for _, e := range entries {
		var b Battle
		if err := json.Unmarshal(e, &b); err != nil {
			continue
		}
		battles = append(battles, b)
	}
	return battles, nil
}
