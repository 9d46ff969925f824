package meter

import (
	"context"

	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// Store persists meters.
type Store interface {
	// Create inserts the meter; a duplicate NameDigest yields ErrConflict.
	Create(ctx context.Context, m *Meter) error
	Find(ctx context.Context, id string) (*Meter, error)
	// List returns meters whose branch passes the scope filter.
	List(ctx context.Context, f authz.Filter, query string, sort page.Sort, cur page.Cursor) ([]*Meter, bool, error)
	// Update applies the fields; when NameDigest changes and collides it
	// yields ErrConflict.
	Update(ctx context.Context, m *Meter) error
	Delete(ctx context.Context, id string) error
}
