package rbac

import (
	"github.com/google/uuid"
	"github.com/wager-royale/backend/internal/models"
)

// Role constants
const (
	RoleOperator = "operator"
	RoleCreator  = "creator"
	RoleJoiner   = "joiner"
	RolePlayer   = "player" // any other signed-in user
)

// Permission constants
const (
	PermDepositCreator = "deposit_creator"
	PermInvite         = "invite"
	PermJoin           = "join"
	PermResolve        = "resolve"
	PermSettle         = "settle"
	PermRequeue        = "requeue"
	PermForceStatus    = "force_status"
	PermViewAudit      = "view_audit"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOperator: {
		PermResolve, PermSettle, PermRequeue, PermForceStatus, PermViewAudit,
	},
	RoleCreator: {
		PermDepositCreator, PermInvite, PermViewAudit,
		// Creator CANNOT: PermJoin
	},
	RoleJoiner: {
		PermViewAudit,
	},
	RolePlayer: {
		PermJoin,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsOracleOperation reports permissions that move funds or override the
// state machine.
func IsOracleOperation(permission string) bool {
	switch permission {
	case PermResolve, PermSettle, PermRequeue, PermForceStatus:
		return true
	}
	return false
}

// WagerRole is the user's seat in the wager.
func WagerRole(w *models.Wager, userID uuid.UUID) string {
	switch {
	case w.CreatorID == userID:
		return RoleCreator
	case w.JoinerID != nil && *w.JoinerID == userID:
		return RoleJoiner
	}
	return RolePlayer
}
