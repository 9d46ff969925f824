package org

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// Service implements company and branch operations with scope enforcement.
// Capability checks happen at the route layer; the service owns the tenant
// rules.
type Service struct {
	companies CompanyStore
	branches  BranchStore
	enforcer  *authz.Enforcer
	now       func() time.Time
}

// NewService constructs the org service. The branch store doubles as the
// enforcer's branch source.
func NewService(companies CompanyStore, branches BranchStore) (*Service, error) {
	if companies == nil || branches == nil {
		return nil, errors.New("org: company and branch stores are required")
	}
	enforcer, err := authz.NewEnforcer(branches)
	if err != nil {
		return nil, err
	}
	return &Service{companies: companies, branches: branches, enforcer: enforcer, now: time.Now}, nil
}

// Enforcer exposes the scope enforcer for sibling services.
func (s *Service) Enforcer() *authz.Enforcer { return s.enforcer }

// CompanyInput is the payload for creating a company.
type CompanyInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CreateCompany inserts a new company. A duplicate name surfaces as
// ErrConflict from the store.
func (s *Service) CreateCompany(ctx context.Context, in CompanyInput) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", auth.ErrInvalidInput)
	}
	now := s.now().UTC()
	c := &Company{
		ID:        ids.New(),
		Name:      name,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// companyIDFor resolves the company a principal belongs to, walking through
// the branch for branch-scoped staff.
func (s *Service) companyIDFor(ctx context.Context, p auth.Principal) (string, error) {
	scope := authz.ScopeOf(p)
	if scope.IsBranch() {
		b, err := s.branches.Find(ctx, scope.BranchID)
		if err != nil {
			return "", err
		}
		return b.CompanyID, nil
	}
	return scope.CompanyID, nil
}

// GetCompany returns the company if it is within the caller's scope. Foreign
// companies look missing.
func (s *Service) GetCompany(ctx context.Context, p auth.Principal, id string) (*Company, error) {
	c, err := s.companies.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if authz.ScopeOf(p).IsAdmin() {
		return c, nil
	}
	own, err := s.companyIDFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if c.ID != own {
		return nil, auth.ErrNotFound
	}
	return c, nil
}

// ListCompanies returns every company for admin and exactly the caller's own
// company otherwise.
func (s *Service) ListCompanies(ctx context.Context, p auth.Principal, query string, sort page.Sort, cur page.Cursor) ([]*Company, bool, error) {
	if authz.ScopeOf(p).IsAdmin() {
		return s.companies.List(ctx, query, sort, cur)
	}
	own, err := s.companyIDFor(ctx, p)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return []*Company{}, false, nil
		}
		return nil, false, err
	}
	c, err := s.companies.Find(ctx, own)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return []*Company{}, false, nil
		}
		return nil, false, err
	}
	if cur.Page > 1 {
		return []*Company{}, false, nil
	}
	return []*Company{c}, false, nil
}

// BranchInput is the payload for creating a branch.
type BranchInput struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
}

// CreateBranch inserts a branch. Company managers create under their own
// company regardless of the payload; admin must name the company explicitly.
// Branch-scoped principals cannot create branches.
func (s *Service) CreateBranch(ctx context.Context, p auth.Principal, in BranchInput) (*Branch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", auth.ErrInvalidInput)
	}

	scope := authz.ScopeOf(p)
	companyID := strings.TrimSpace(in.CompanyID)
	switch {
	case scope.IsBranch():
		return nil, &authz.ForbiddenError{Message: "branch-scoped accounts cannot create branches"}
	case scope.IsCompany():
		companyID = scope.CompanyID
	default:
		if companyID == "" {
			return nil, fmt.Errorf("%w: company_id is required", auth.ErrInvalidInput)
		}
	}
	if _, err := s.companies.Find(ctx, companyID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, fmt.Errorf("%w: company does not exist", auth.ErrInvalidInput)
		}
		return nil, err
	}

	now := s.now().UTC()
	b := &Branch{
		ID:        ids.New(),
		CompanyID: companyID,
		Name:      name,
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.branches.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBranch returns the branch if visible; out-of-scope branches look
// missing.
func (s *Service) GetBranch(ctx context.Context, p auth.Principal, id string) (*Branch, error) {
	b, err := s.branches.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := s.enforcer.FilterFor(ctx, p)
	if err != nil {
		return nil, err
	}
	if !f.Contains(b.ID) {
		return nil, auth.ErrNotFound
	}
	return b, nil
}

// ListBranches lists the branches visible to the principal.
func (s *Service) ListBranches(ctx context.Context, p auth.Principal, query string, sort page.Sort, cur page.Cursor) ([]*Branch, bool, error) {
	f, err := s.enforcer.FilterFor(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return s.branches.List(ctx, f, query, sort, cur)
}

// UpdateBranch applies a partial update after re-verifying scope against the
// stored branch, not the payload.
func (s *Service) UpdateBranch(ctx context.Context, p auth.Principal, id string, upd BranchUpdate) (*Branch, error) {
	b, err := s.branches.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enforcer.VerifyBranchWrite(ctx, p, b.ID, b.CompanyID); err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", auth.ErrInvalidInput)
		}
		upd.Name = &name
	}
	return s.branches.Update(ctx, id, upd)
}

// DeleteBranch removes a branch after the same stored-scope re-check.
func (s *Service) DeleteBranch(ctx context.Context, p auth.Principal, id string) error {
	b, err := s.branches.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.enforcer.VerifyBranchWrite(ctx, p, b.ID, b.CompanyID); err != nil {
		return err
	}
	return s.branches.Delete(ctx, id)
}
