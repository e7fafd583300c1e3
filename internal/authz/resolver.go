// Package authz computes effective table permissions for a user from
// department defaults and role rules.
//
// Resolution is total: unknown role or department ids contribute
// nothing instead of failing, so a user with dangling references
// degrades to less access rather than an error.
package authz

import (
	"math"
	"sort"
	"strings"

	"github.com/finquery/finquery/internal/identity"
)

const (
	// AdminRoleName short-circuits resolution to full access.
	AdminRoleName = "Admin"
	// DefaultRowLimit is the floor for non-admin result sets. Role
	// conditions can only raise it.
	DefaultRowLimit = 100
	// RowLimitUnbounded marks the admin row limit.
	RowLimitUnbounded = math.MaxInt
)

// PermissionSet is the resolved, per-request outcome of folding
// department and role rules for one user.
type PermissionSet struct {
	UserID        string
	AllowedTables map[string]struct{}
	DeniedTables  map[string]struct{}
	RowLimit      int
	IsAdmin       bool
}

// Resolve folds the user's department and roles into a PermissionSet.
//
// Order of application: admin check, department defaults, then role
// rules by priority descending (stable on ties). Deny-wins runs once
// at the end so a later allow cannot resurrect a denied table.
func Resolve(user identity.User, snap identity.Snapshot) PermissionSet {
	roles := make([]identity.Role, 0, len(user.RoleIDs))
	for _, id := range user.RoleIDs {
		if role, ok := snap.RolesByID[id]; ok {
			roles = append(roles, role)
		}
	}

	for _, role := range roles {
		if role.Name == AdminRoleName {
			return PermissionSet{
				UserID:        user.ID,
				AllowedTables: CatalogSet(),
				DeniedTables:  map[string]struct{}{},
				RowLimit:      RowLimitUnbounded,
				IsAdmin:       true,
			}
		}
	}

	allowed := make(map[string]struct{})
	denied := make(map[string]struct{})
	rowLimit := DefaultRowLimit

	if dept, ok := snap.DepartmentsByID[user.DepartmentID]; ok {
		for _, table := range dept.AllowedTables {
			if table == "*" {
				for _, t := range Catalog {
					allowed[t] = struct{}{}
				}
				continue
			}
			allowed[table] = struct{}{}
		}
		for _, table := range dept.DeniedTables {
			denied[table] = struct{}{}
		}
	}

	sort.SliceStable(roles, func(i, j int) bool {
		return roles[i].Priority > roles[j].Priority
	})

	for _, role := range roles {
		for _, perm := range role.Permissions {
			if perm.Kind != identity.KindTable {
				continue
			}
			target := allowed
			if perm.Action == identity.ActionDeny {
				target = denied
			}
			if perm.Resource == "*" {
				for _, t := range Catalog {
					target[t] = struct{}{}
				}
			} else {
				target[perm.Resource] = struct{}{}
			}
			if perm.Conditions != nil && perm.Conditions.RowLimit > rowLimit {
				rowLimit = perm.Conditions.RowLimit
			}
		}
	}

	// Deny-wins, exactly once after all folding.
	for table := range denied {
		delete(allowed, table)
	}

	return PermissionSet{
		UserID:        user.ID,
		AllowedTables: allowed,
		DeniedTables:  denied,
		RowLimit:      rowLimit,
		IsAdmin:       false,
	}
}

// CanAccess reports whether a single table is in the allowed set.
func (p PermissionSet) CanAccess(table string) bool {
	_, ok := p.AllowedTables[strings.ToLower(table)]
	return ok
}

// CheckTables returns the subset of tables outside the allowed set,
// sorted for stable reporting. An empty result means access is granted.
func (p PermissionSet) CheckTables(tables map[string]struct{}) []string {
	var deniedTables []string
	for table := range tables {
		if !p.CanAccess(table) {
			deniedTables = append(deniedTables, table)
		}
	}
	sort.Strings(deniedTables)
	return deniedTables
}

// AllowedList returns the allowed tables as a sorted slice.
func (p PermissionSet) AllowedList() []string {
	out := make([]string, 0, len(p.AllowedTables))
	for table := range p.AllowedTables {
		out = append(out, table)
	}
	sort.Strings(out)
	return out
}
