package auth

import (
	"context"
	"errors"
)

// Resolver expands a subject into its live permission set: user -> role ->
// role grants -> permission keys. The result is computed per request; grants
// are mutable, so nothing is cached across requests.
type Resolver struct {
	users UserStore
	perms PermissionStore
}

// NewResolver constructs a Resolver over the given stores.
func NewResolver(users UserStore, perms PermissionStore) (*Resolver, error) {
	if users == nil || perms == nil {
		return nil, errors.New("auth: user and permission stores are required")
	}
	return &Resolver{users: users, perms: perms}, nil
}

// Resolve returns the permission keys held by the subject. A missing user,
// missing role, or empty grant set yields the empty set, never an error:
// authorization fails closed rather than loudly. Dangling grant rows are
// skipped by the store layer.
func (r *Resolver) Resolve(ctx context.Context, subjectID string) (map[string]struct{}, error) {
	held := map[string]struct{}{}
	if subjectID == "" {
		return held, nil
	}
	u, err := r.users.Find(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return held, nil
		}
		return nil, err
	}
	if u.RoleID == "" {
		return held, nil
	}
	keys, err := r.perms.KeysForRole(ctx, u.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return held, nil
		}
		return nil, err
	}
	for _, k := range keys {
		held[k] = struct{}{}
	}
	return held, nil
}
