package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
)

// Scope is the tenant boundary of a principal. Three tiers exist: admin
// (neither field set), company-scoped (CompanyID only), and branch-scoped
// (BranchID set). A set BranchID dominates CompanyID; ScopeOf re-derives that
// rule instead of trusting whatever was written upstream.
type Scope struct {
	CompanyID string
	BranchID  string
}

// ScopeOf derives the effective scope of a principal.
func ScopeOf(p auth.Principal) Scope {
	if p.User == nil {
		return Scope{}
	}
	return Scope{CompanyID: p.User.CompanyID, BranchID: p.User.BranchID}
}

// IsAdmin reports the unscoped tier.
func (s Scope) IsAdmin() bool { return s.CompanyID == "" && s.BranchID == "" }

// IsBranch reports the branch tier. BranchID dominates CompanyID.
func (s Scope) IsBranch() bool { return s.BranchID != "" }

// IsCompany reports the company tier.
func (s Scope) IsCompany() bool { return s.BranchID == "" && s.CompanyID != "" }

// Filter is a scope predicate ready to hand to a store. Exactly one of the
// shapes applies: All, or a concrete CompanyID/BranchIDs narrowing. An empty
// non-All filter matches nothing, so a company without branches sees no
// branch-owned resources rather than everything.
type Filter struct {
	All       bool
	CompanyID string
	BranchIDs []string
}

// Contains reports whether the branch id passes the filter.
func (f Filter) Contains(branchID string) bool {
	if f.All {
		return true
	}
	for _, id := range f.BranchIDs {
		if id == branchID {
			return true
		}
	}
	return false
}

// BranchSource resolves the branch ids under a company. The org package
// provides the production implementation.
type BranchSource interface {
	IDsByCompany(ctx context.Context, companyID string) ([]string, error)
}

// Enforcer translates principal scope into store filters and validates write
// targets. It is stateless; company branch sets are looked up per call so the
// filter always reflects current data.
type Enforcer struct {
	branches BranchSource
}

// NewEnforcer constructs an Enforcer over a branch source.
func NewEnforcer(branches BranchSource) (*Enforcer, error) {
	if branches == nil {
		return nil, errors.New("authz: branch source is required")
	}
	return &Enforcer{branches: branches}, nil
}

// FilterFor builds the visibility filter for branch-owned resources. Admin
// sees everything, branch staff see their one branch, company managers see
// every branch under their company.
func (e *Enforcer) FilterFor(ctx context.Context, p auth.Principal) (Filter, error) {
	scope := ScopeOf(p)
	switch {
	case scope.IsAdmin():
		return Filter{All: true}, nil
	case scope.IsBranch():
		return Filter{BranchIDs: []string{scope.BranchID}}, nil
	default:
		ids, err := e.branches.IDsByCompany(ctx, scope.CompanyID)
		if err != nil {
			return Filter{}, err
		}
		sort.Strings(ids)
		return Filter{CompanyID: scope.CompanyID, BranchIDs: ids}, nil
	}
}

// ResolveTargetBranch validates the branch a create targets and returns the
// effective branch id. Branch staff may only target their own branch and may
// omit it; naming a different branch is a denial, not a validation error.
// Company managers and admin must name the branch explicitly, and for
// managers it must live under their company.
func (e *Enforcer) ResolveTargetBranch(ctx context.Context, p auth.Principal, requested string) (string, error) {
	scope := ScopeOf(p)
	switch {
	case scope.IsBranch():
		if requested == "" || requested == scope.BranchID {
			return scope.BranchID, nil
		}
		return "", &ForbiddenError{Message: "cannot target a branch outside your scope"}
	case scope.IsCompany():
		if requested == "" {
			return "", fmt.Errorf("%w: branch_id is required", auth.ErrInvalidInput)
		}
		ids, err := e.branches.IDsByCompany(ctx, scope.CompanyID)
		if err != nil {
			return "", err
		}
		for _, id := range ids {
			if id == requested {
				return requested, nil
			}
		}
		return "", fmt.Errorf("%w: branch_id does not belong to your company", auth.ErrInvalidInput)
	default:
		// Admin is unscoped, not defaulted: the target must be explicit.
		if requested == "" {
			return "", fmt.Errorf("%w: branch_id is required", auth.ErrInvalidInput)
		}
		return requested, nil
	}
}

// VerifyStoredBranch re-checks scope against the branch a resource is
// actually stored under, never a client-supplied value. Out-of-scope
// resources are reported as missing so their existence is not confirmed
// across tenants.
func (e *Enforcer) VerifyStoredBranch(ctx context.Context, p auth.Principal, storedBranchID string) error {
	f, err := e.FilterFor(ctx, p)
	if err != nil {
		return err
	}
	if !f.Contains(storedBranchID) {
		return auth.ErrNotFound
	}
	return nil
}

// VerifyBranchWrite checks that the principal may mutate the branch entity
// itself. Branch staff touching a different branch get an explicit denial;
// for company managers a branch outside the company stays hidden.
func (e *Enforcer) VerifyBranchWrite(ctx context.Context, p auth.Principal, branchID, branchCompanyID string) error {
	scope := ScopeOf(p)
	switch {
	case scope.IsAdmin():
		return nil
	case scope.IsBranch():
		if branchID == scope.BranchID {
			return nil
		}
		return &ForbiddenError{Message: "cannot modify a branch outside your scope"}
	default:
		if branchCompanyID == scope.CompanyID {
			return nil
		}
		return auth.ErrNotFound
	}
}
