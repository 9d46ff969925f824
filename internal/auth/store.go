package auth

import (
	"context"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	RevokedTokens() RevocationStore
}

// UserStore manages staff accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, f UserFilter, sort page.Sort, cur page.Cursor) ([]*User, bool, error)
	Update(ctx context.Context, id string, upd UserUpdate) (*User, error)
	Delete(ctx context.Context, id string) error
}

// RoleStore manages roles.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
}

// PermissionStore manages the permission catalog and role grants.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	List(ctx context.Context) ([]Permission, error)
	// SetForRole replaces every grant of the role in a single round trip.
	// Unknown keys are skipped, matching the fail-closed resolver contract.
	SetForRole(ctx context.Context, roleID string, keys []string) error
	KeysForRole(ctx context.Context, roleID string) ([]string, error)
}

// RevocationStore persists the token revocation ledger.
type RevocationStore interface {
	// Insert records the revocation, keeping the first row when the jti is
	// already present.
	Insert(ctx context.Context, tok *RevokedToken) error
	Find(ctx context.Context, jti string) (*RevokedToken, error)
	// Purge deletes entries whose expiry has passed and reports how many.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
