package meter

import "time"

// Meter is a water meter installed at a branch. NameDigest is the dedup key:
// it is derived from the branch id and the normalized name, so the unique
// index on it enforces name-uniqueness within a branch in a single insert.
type Meter struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branch_id"`
	Name        string    `json:"name"`
	NameDigest  string    `json:"-"`
	InstalledAt time.Time `json:"installed_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Update carries optional fields for a partial meter update. Nil means leave
// unchanged. A rename recomputes the digest and may collide.
type Update struct {
	Name        *string    `json:"name"`
	InstalledAt *time.Time `json:"installed_at"`
}
