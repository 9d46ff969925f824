package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Service composes the codec, ledger and resolver into the login, refresh,
// logout and per-request authentication flows.
type Service struct {
	store    Store
	codec    *Codec
	ledger   *Ledger
	resolver *Resolver
	now      func() time.Time
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// NewService constructs the auth service.
func NewService(store Store, codec *Codec) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	ledger, err := NewLedger(store.RevokedTokens())
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(store.Users(), store.Permissions())
	if err != nil {
		return nil, err
	}
	return &Service{store: store, codec: codec, ledger: ledger, resolver: resolver, now: time.Now}, nil
}

// Ledger exposes the revocation ledger, mainly for the purge loop.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Store exposes the underlying store for handlers that manage users.
func (s *Service) Store() Store { return s.store }

// EnsureBuiltins makes sure the seeded permission catalog exists.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions().Ensure(ctx, BuiltinPermissions)
}

// Principal loads the user and resolves the live permission set.
func (s *Service) Principal(ctx context.Context, subjectID string) (Principal, error) {
	u, err := s.store.Users().Find(ctx, subjectID)
	if err != nil {
		return Principal{}, err
	}
	roleName := ""
	if u.RoleID != "" {
		if role, err := s.store.Roles().Find(ctx, u.RoleID); err == nil {
			roleName = role.Name
		} else if !errors.Is(err, ErrNotFound) {
			return Principal{}, err
		}
	}
	perms, err := s.resolver.Resolve(ctx, subjectID)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(u, roleName, perms), nil
}

// Login verifies credentials and issues an access/refresh token pair. Every
// failure mode collapses to ErrUnauthorized so responses cannot be used to
// enumerate accounts.
func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	u, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, Principal{}, ErrUnauthorized
		}
		return TokenPair{}, Principal{}, err
	}
	if !u.IsActive {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrUnauthorized
	}

	principal, err := s.Principal(ctx, u.ID)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	hint := principal.PermissionKeys()
	sort.Strings(hint)

	access, accessClaims, err := s.codec.Issue(u, principal.RoleName, hint, TokenAccess)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	refresh, refreshClaims, err := s.codec.Issue(u, principal.RoleName, hint, TokenRefresh)
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, principal, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token.
// Permissions are re-resolved so the new token reflects current grants.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.codec.Decode(refreshToken, TokenRefresh)
	if err != nil {
		return "", time.Time{}, err
	}
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", time.Time{}, err
	}
	if revoked {
		return "", time.Time{}, ErrTokenRevoked
	}

	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, ErrUnauthorized
		}
		return "", time.Time{}, err
	}
	if !principal.User.IsActive {
		return "", time.Time{}, ErrUnauthorized
	}
	hint := principal.PermissionKeys()
	sort.Strings(hint)

	access, accessClaims, err := s.codec.Issue(principal.User, principal.RoleName, hint, TokenAccess)
	if err != nil {
		return "", time.Time{}, err
	}
	return access, accessClaims.ExpiresAt.Time, nil
}

// Logout revokes the presented token of the given type. Revoking twice is a
// no-op; an already expired token is rejected before reaching the ledger.
func (s *Service) Logout(ctx context.Context, rawToken, tokenType string) error {
	claims, err := s.codec.Decode(rawToken, tokenType)
	if err != nil {
		return err
	}
	return s.ledger.Revoke(ctx, claims)
}

// Authenticate validates an access token end to end: signature and expiry,
// then the revocation ledger, then a live principal lookup. The permissions
// embedded in the token are deliberately ignored here.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (Principal, *Claims, error) {
	claims, err := s.codec.Decode(rawToken, TokenAccess)
	if err != nil {
		return Principal{}, nil, err
	}
	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Principal{}, nil, err
	}
	if revoked {
		return Principal{}, nil, ErrTokenRevoked
	}
	principal, err := s.Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, nil, ErrUnauthorized
		}
		return Principal{}, nil, err
	}
	if !principal.User.IsActive {
		return Principal{}, nil, ErrUnauthorized
	}
	return principal, claims, nil
}

// ConfirmPassword re-checks the caller's password. Destructive routes demand
// this in addition to a valid token.
func (s *Service) ConfirmPassword(ctx context.Context, subjectID, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password confirmation is required", ErrInvalidInput)
	}
	u, err := s.store.Users().Find(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return ErrUnauthorized
	}
	return nil
}
