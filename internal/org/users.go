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

// UserAdmin implements staff account administration under tenant scoping.
// Branch-scoped accounts get no user administration at all in this model;
// company managers administer accounts inside their company only.
type UserAdmin struct {
	users    auth.UserStore
	roles    auth.RoleStore
	branches BranchStore
	enforcer *authz.Enforcer
	now      func() time.Time
}

// NewUserAdmin constructs the staff administration service.
func NewUserAdmin(users auth.UserStore, roles auth.RoleStore, branches BranchStore, enforcer *authz.Enforcer) (*UserAdmin, error) {
	if users == nil || roles == nil || branches == nil {
		return nil, errors.New("org: user, role and branch stores are required")
	}
	if enforcer == nil {
		return nil, errors.New("org: enforcer is required")
	}
	return &UserAdmin{users: users, roles: roles, branches: branches, enforcer: enforcer, now: time.Now}, nil
}

// UserInput is the payload for creating a staff account.
type UserInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	RoleID    string `json:"role_id"`
	CompanyID string `json:"company_id"`
	BranchID  string `json:"branch_id"`
}

// inScope reports whether the stored user falls inside the caller's tenant
// boundary: matching company, or a branch under the company.
func (a *UserAdmin) inScope(ctx context.Context, p auth.Principal, u *auth.User) (bool, error) {
	scope := authz.ScopeOf(p)
	if scope.IsAdmin() {
		return true, nil
	}
	if scope.IsBranch() {
		return u.ID == p.SubjectID(), nil
	}
	if u.CompanyID == scope.CompanyID && u.CompanyID != "" {
		return true, nil
	}
	if u.BranchID != "" {
		f, err := a.enforcer.FilterFor(ctx, p)
		if err != nil {
			return false, err
		}
		return f.Contains(u.BranchID), nil
	}
	return false, nil
}

// Create inserts a staff account. Company managers create only inside their
// own company; the target branch, when set, must live under it.
func (a *UserAdmin) Create(ctx context.Context, p auth.Principal, in UserInput) (*auth.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", auth.ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", auth.ErrInvalidInput)
	}

	scope := authz.ScopeOf(p)
	companyID := strings.TrimSpace(in.CompanyID)
	branchID := strings.TrimSpace(in.BranchID)
	switch {
	case scope.IsBranch():
		return nil, &authz.ForbiddenError{Message: "branch-scoped accounts cannot administer users"}
	case scope.IsCompany():
		companyID = scope.CompanyID
		if branchID != "" {
			f, err := a.enforcer.FilterFor(ctx, p)
			if err != nil {
				return nil, err
			}
			if !f.Contains(branchID) {
				return nil, fmt.Errorf("%w: branch_id does not belong to your company", auth.ErrInvalidInput)
			}
		}
	}
	if branchID != "" {
		b, err := a.branches.Find(ctx, branchID)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return nil, fmt.Errorf("%w: branch does not exist", auth.ErrInvalidInput)
			}
			return nil, err
		}
		// A branch account's company is implied by the branch.
		companyID = b.CompanyID
	}

	roleID := strings.TrimSpace(in.RoleID)
	if roleID != "" {
		if _, err := a.roles.Find(ctx, roleID); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return nil, fmt.Errorf("%w: role does not exist", auth.ErrInvalidInput)
			}
			return nil, err
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := a.now().UTC()
	u := &auth.User{
		ID:           ids.New(),
		Username:     username,
		PasswordHash: hash,
		RoleID:       roleID,
		CompanyID:    companyID,
		BranchID:     branchID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns the account if it is within scope. Branch-scoped callers may
// read only themselves; anything else looks missing.
func (a *UserAdmin) Get(ctx context.Context, p auth.Principal, id string) (*auth.User, error) {
	u, err := a.users.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := a.inScope(ctx, p, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrNotFound
	}
	return u, nil
}

// List returns the accounts visible to the principal. Branch-scoped accounts
// get no listing in this model.
func (a *UserAdmin) List(ctx context.Context, p auth.Principal, query string, sort page.Sort, cur page.Cursor) ([]*auth.User, bool, error) {
	scope := authz.ScopeOf(p)
	if scope.IsBranch() {
		return nil, false, &authz.ForbiddenError{Message: "branch-scoped accounts cannot list users"}
	}
	filter := auth.UserFilter{Query: query}
	if scope.IsCompany() {
		f, err := a.enforcer.FilterFor(ctx, p)
		if err != nil {
			return nil, false, err
		}
		filter.CompanyID = scope.CompanyID
		filter.BranchIDs = f.BranchIDs
	}
	return a.users.List(ctx, filter, sort, cur)
}

// UserUpdateInput carries optional fields for a partial account update. Nil
// means leave unchanged.
type UserUpdateInput struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	RoleID   *string `json:"role_id"`
	IsActive *bool   `json:"is_active"`
}

// Update applies a partial update after re-verifying scope against the
// stored account.
func (a *UserAdmin) Update(ctx context.Context, p auth.Principal, id string, in UserUpdateInput) (*auth.User, error) {
	u, err := a.users.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := a.inScope(ctx, p, u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, auth.ErrNotFound
	}

	upd := auth.UserUpdate{RoleID: in.RoleID, IsActive: in.IsActive}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", auth.ErrInvalidInput)
		}
		upd.Username = &username
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, fmt.Errorf("%w: password must be at least 8 characters", auth.ErrInvalidInput)
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}
	if in.RoleID != nil && *in.RoleID != "" {
		if _, err := a.roles.Find(ctx, *in.RoleID); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return nil, fmt.Errorf("%w: role does not exist", auth.ErrInvalidInput)
			}
			return nil, err
		}
	}
	return a.users.Update(ctx, id, upd)
}

// Delete removes an account. Deleting yourself is rejected so a tenant is
// never left without its last administrator by accident.
func (a *UserAdmin) Delete(ctx context.Context, p auth.Principal, id string) error {
	if id == p.SubjectID() {
		return fmt.Errorf("%w: cannot delete your own account", auth.ErrInvalidInput)
	}
	u, err := a.users.Find(ctx, id)
	if err != nil {
		return err
	}
	ok, err := a.inScope(ctx, p, u)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrNotFound
	}
	return a.users.Delete(ctx, id)
}
