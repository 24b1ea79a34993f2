// Package authz decides whether a subject may perform an action. Callers
// check before invoking lifecycle operations; the lifecycle package itself
// trusts the user name it is given.
package authz

import (
	deskerrors "github.com/firefly-engineering/desklab/internal/errors"
)

// Role is a user's security group.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Action names a guarded operation.
type Action string

const (
	ActionLaunch      Action = "launch"
	ActionManage      Action = "manage"
	ActionSave        Action = "save"
	ActionPromote     Action = "promote"
	ActionDeleteImage Action = "delete-image"
	ActionReconcile   Action = "reconcile"
	ActionManageUsers Action = "manage-users"
)

// adminOnly lists the actions reserved for administrators.
var adminOnly = map[Action]bool{
	ActionPromote:     true,
	ActionReconcile:   true,
	ActionManageUsers: true,
}

// Subject is an authenticated user.
type Subject struct {
	Name string
	Role Role
}

// IsAdmin reports whether the subject has the admin role.
func (s Subject) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Allow reports whether s may perform action. Unknown actions and subjects
// without a name are denied.
func Allow(s Subject, action Action) bool {
	if s.Name == "" || !s.Role.Valid() {
		return false
	}
	switch action {
	case ActionLaunch, ActionManage, ActionSave, ActionDeleteImage:
		return true
	}
	if adminOnly[action] {
		return s.IsAdmin()
	}
	return false
}

// Check is Allow returning a Forbidden error on denial.
func Check(s Subject, action Action) error {
	if Allow(s, action) {
		return nil
	}
	name := s.Name
	if name == "" {
		name = "anonymous"
	}
	return deskerrors.Forbidden(name, string(action))
}

// CanDeleteImage reports whether s may delete an image owned by owner.
// Users may delete their own images; admins may delete any image.
func CanDeleteImage(s Subject, owner string, owned bool) bool {
	if !Allow(s, ActionDeleteImage) {
		return false
	}
	return s.IsAdmin() || (owned && owner == s.Name)
}
