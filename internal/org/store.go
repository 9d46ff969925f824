package org

import (
	"context"

	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// CompanyStore persists companies.
type CompanyStore interface {
	// Create inserts the company; a duplicate name yields ErrConflict.
	Create(ctx context.Context, c *Company) error
	Find(ctx context.Context, id string) (*Company, error)
	FindByName(ctx context.Context, name string) (*Company, error)
	List(ctx context.Context, query string, sort page.Sort, cur page.Cursor) ([]*Company, bool, error)
}

// BranchStore persists branches.
type BranchStore interface {
	Create(ctx context.Context, b *Branch) error
	Find(ctx context.Context, id string) (*Branch, error)
	// List returns branches whose id passes the scope filter. For branch
	// entities the filter is matched against the branch's own id.
	List(ctx context.Context, f authz.Filter, query string, sort page.Sort, cur page.Cursor) ([]*Branch, bool, error)
	Update(ctx context.Context, id string, upd BranchUpdate) (*Branch, error)
	Delete(ctx context.Context, id string) error
	// IDsByCompany satisfies authz.BranchSource.
	IDsByCompany(ctx context.Context, companyID string) ([]string, error)
}
