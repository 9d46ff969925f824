package auth

import "time"

// User is a staff account. CompanyID and BranchID carry the tenant scope: an
// admin has neither, a company manager has only CompanyID, branch staff have
// BranchID. When both are present BranchID wins; the scope layer re-derives
// that rule instead of trusting upstream writes.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       string    `json:"role_id,omitempty"`
	CompanyID    string    `json:"company_id,omitempty"`
	BranchID     string    `json:"branch_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role groups permissions. Name is globally unique.
type Role struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability keyed by a stable
// "resource:action" string.
type Permission struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RolePermission links roles to permissions. Grants for a role are always
// rewritten wholesale, never patched row by row.
type RolePermission struct {
	RoleID       string `json:"role_id"`
	PermissionID string `json:"permission_id"`
}

// RevokedToken records an invalidated token identifier. An entry is logically
// dead once ExpiresAt has passed; the ledger ignores dead entries and the
// purge loop removes them.
type RevokedToken struct {
	JTI       string    `json:"jti"`
	SubjectID string    `json:"subject_id"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

// UserUpdate carries optional fields for a partial user update. Nil means
// leave unchanged.
type UserUpdate struct {
	Username     *string
	PasswordHash *string
	RoleID       *string
	IsActive     *bool
}

// UserFilter narrows a user listing. A zero filter matches everyone; scope
// narrowing is expressed as CompanyID plus the branch set under that company.
type UserFilter struct {
	CompanyID string
	BranchIDs []string
	Query     string
}
