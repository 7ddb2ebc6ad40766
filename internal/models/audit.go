package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Actor types
const (
	ActorTypeUser     = "user"
	ActorTypeOperator = "operator"
	ActorTypeOracle   = "oracle"
)

// AuditEntityWager is the entity type of every wager trail entry; entity_id
// holds the decimal wager id.
const AuditEntityWager = "wager"

func IsValidActorType(t string) bool {
	switch t {
	case ActorTypeUser, ActorTypeOperator, ActorTypeOracle:
		return true
	}
	return false
}

// WagerAudit starts an entry on the wager's trail.
func WagerAudit(wagerID int64, actorType, action string, actorID *uuid.UUID, meta any) AuditLog {
	return AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  AuditEntityWager,
		EntityID:    strconv.FormatInt(wagerID, 10),
		Meta:        meta,
	}
}

// WagerID returns the wager the entry belongs to.
func (l *AuditLog) WagerID() (int64, bool) {
	if l.EntityType != AuditEntityWager {
		return 0, false
	}
	id, err := strconv.ParseInt(l.EntityID, 10, 64)
	return id, err == nil
}

// AuditFilter narrows a wager trail. An empty ActorType matches all actors.
type AuditFilter struct {
	ActorType string
	Limit     int
	Offset    int
}

type AuditLog struct {
	ID          uuid.UUID  `json:"id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	ActorType   string     `json:"actor_type"` // user/operator/oracle
	Action      string     `json:"action"`
	EntityType  string     `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Meta        any        `json:"meta,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
