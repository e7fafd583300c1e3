package identity

import "time"

// User represents an account that can query the warehouse.
type User struct {
	ID           string
	Email        string
	Name         string
	RoleIDs      []string
	DepartmentID string
	IsActive     bool
	CreatedAt    time.Time
	// Secret is the stored login credential. It is compared verbatim;
	// hashing is a known limitation inherited from the seed data.
	Secret string
}

// PermissionKind discriminates the permission variant. Only table
// permissions exist today; the tag leaves room for other kinds without
// touching resolution logic.
type PermissionKind string

// KindTable scopes a permission to a warehouse table.
const KindTable PermissionKind = "table"

// Action is what a permission does to its resource.
type Action string

// Permission actions.
const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Conditions carries optional modifiers attached to a permission.
// TimeRestriction is stored but not enforced.
type Conditions struct {
	RowLimit        int    `json:"rowLimit,omitempty"`
	TimeRestriction string `json:"timeRestriction,omitempty"`
}

// Permission is a single rule: allow or deny one table, or every table
// via the "*" wildcard resource.
type Permission struct {
	Kind       PermissionKind `json:"type"`
	Resource   string         `json:"resource"`
	Action     Action         `json:"action"`
	Conditions *Conditions    `json:"conditions,omitempty"`
}

// Role bundles permissions under a name. Priority orders roles during
// resolution, higher first.
type Role struct {
	ID          string
	Name        string
	Description string
	Priority    int
	Permissions []Permission
}

// Department provides the baseline table access applied before any
// role rules. AllowedTables may contain the "*" wildcard.
type Department struct {
	ID            string
	Name          string
	AllowedTables []string
	DeniedTables  []string
}

// Snapshot is a read-only view of all roles and departments, fetched
// once per request so resolution sees consistent data.
type Snapshot struct {
	RolesByID       map[string]Role
	DepartmentsByID map[string]Department
}
