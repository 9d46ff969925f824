package meter

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

// Service implements meter operations: scoped reads, digest-keyed creates,
// and rename-with-recheck updates.
type Service struct {
	store    Store
	enforcer *authz.Enforcer
	now      func() time.Time
}

// NewService constructs the meter service.
func NewService(store Store, enforcer *authz.Enforcer) (*Service, error) {
	if store == nil {
		return nil, errors.New("meter: store is required")
	}
	if enforcer == nil {
		return nil, errors.New("meter: enforcer is required")
	}
	return &Service{store: store, enforcer: enforcer, now: time.Now}, nil
}

// Input is the payload for creating a meter.
type Input struct {
	BranchID    string     `json:"branch_id"`
	Name        string     `json:"name"`
	InstalledAt *time.Time `json:"installed_at"`
}

// Create inserts a meter into the resolved target branch. Two identical
// concurrent creates race on the digest's unique constraint; the loser gets
// ErrConflict.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Meter, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", auth.ErrInvalidInput)
	}
	branchID, err := s.enforcer.ResolveTargetBranch(ctx, p, strings.TrimSpace(in.BranchID))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := &Meter{
		ID:         ids.New(),
		BranchID:   branchID,
		Name:       name,
		NameDigest: Digest(branchID, name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.InstalledAt != nil {
		m.InstalledAt = in.InstalledAt.UTC()
	}
	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the meter if its branch is within scope; out-of-scope meters
// look missing.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (*Meter, error) {
	m, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enforcer.VerifyStoredBranch(ctx, p, m.BranchID); err != nil {
		return nil, err
	}
	return m, nil
}

// List returns the meters visible to the principal.
func (s *Service) List(ctx context.Context, p auth.Principal, query string, sort page.Sort, cur page.Cursor) ([]*Meter, bool, error) {
	f, err := s.enforcer.FilterFor(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return s.store.List(ctx, f, query, sort, cur)
}

// Update applies a partial update. Scope is re-verified against the stored
// branch; a rename recomputes the digest and re-checks for collision within
// the branch before committing.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, upd Update) (*Meter, error) {
	m, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.enforcer.VerifyStoredBranch(ctx, p, m.BranchID); err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", auth.ErrInvalidInput)
		}
		m.Name = name
		m.NameDigest = Digest(m.BranchID, name)
	}
	if upd.InstalledAt != nil {
		m.InstalledAt = upd.InstalledAt.UTC()
	}
	m.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a meter after the stored-scope re-check.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	m, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.enforcer.VerifyStoredBranch(ctx, p, m.BranchID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
