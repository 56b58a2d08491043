// Package access answers "may this user do this?" before any ledger mutation.
package access

import (
	"context"
	"strings"
)

// Resources and actions checked by the ledger.
const (
	ResourceVoucher  = "voucher"
	ResourcePurchase = "purchase"
	ResourceImport   = "import"

	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionSubmit  = "submit"
	ActionApprove = "approve"
	ActionPost    = "post"
	ActionReverse = "reverse"
	ActionCommit  = "commit"
)

// Checker is the permission gate.
type Checker interface {
	HasPermission(ctx context.Context, userID, resource, action string) bool
}

// AllowAll grants everything. Used when no permissions are configured.
type AllowAll struct{}

// HasPermission always returns true.
func (AllowAll) HasPermission(context.Context, string, string, string) bool { return true }

// RoleTable grants "resource:action" permissions through roles. A permission
// of "*" or "resource:*" is a wildcard.
type RoleTable struct {
	roles map[string]map[string]bool
	users map[string][]string
}

// NewRoleTable builds a table from role → permissions and user → roles.
func NewRoleTable(roles map[string][]string, users map[string][]string) *RoleTable {
	rt := &RoleTable{
		roles: make(map[string]map[string]bool, len(roles)),
		users: make(map[string][]string, len(users)),
	}
	for role, perms := range roles {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[strings.ToLower(strings.TrimSpace(p))] = true
		}
		rt.roles[role] = set
	}
	for user, rs := range users {
		rt.users[user] = append([]string(nil), rs...)
	}
	return rt
}

// HasPermission reports whether any of the user's roles grants resource:action.
func (rt *RoleTable) HasPermission(_ context.Context, userID, resource, action string) bool {
	resource = strings.ToLower(resource)
	action = strings.ToLower(action)
	for _, role := range rt.users[userID] {
		perms := rt.roles[role]
		if perms["*"] || perms[resource+":*"] || perms[resource+":"+action] {
			return true
		}
	}
	return false
}

// FromConfig returns AllowAll when both maps are empty, a RoleTable otherwise.
func FromConfig(roles map[string][]string, users map[string][]string) Checker {
	if len(roles) == 0 && len(users) == 0 {
		return AllowAll{}
	}
	return NewRoleTable(roles, users)
}
