package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubRoleStore struct {
	findFn func(context.Context, string) (*Role, error)
}

func (s *stubRoleStore) Create(context.Context, *Role) error { return nil }
func (s *stubRoleStore) Find(ctx context.Context, id string) (*Role, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, ErrNotFound
}
func (s *stubRoleStore) FindByName(context.Context, string) (*Role, error) {
	return nil, ErrNotFound
}
func (s *stubRoleStore) List(context.Context) ([]*Role, error) { return nil, nil }

type stubStore struct {
	users   *stubUserStore
	roles   *stubRoleStore
	perms   *stubPermissionStore
	revoked *stubRevocationStore
}

func newStubStore() *stubStore {
	return &stubStore{
		users:   &stubUserStore{},
		roles:   &stubRoleStore{},
		perms:   &stubPermissionStore{},
		revoked: newStubRevocationStore(),
	}
}

func (s *stubStore) Users() UserStore               { return s.users }
func (s *stubStore) Roles() RoleStore               { return s.roles }
func (s *stubStore) Permissions() PermissionStore   { return s.perms }
func (s *stubStore) RevokedTokens() RevocationStore { return s.revoked }

// serviceFixture wires a Service around stub stores with one active branch
// manager whose password is "secret".
func serviceFixture(t *testing.T) (*Service, *stubStore) {
	t.Helper()

	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &User{
		ID:           "user-1",
		Username:     "van_dau_mgr",
		PasswordHash: hash,
		RoleID:       "role-branch",
		BranchID:     "branch-van-dau",
		IsActive:     true,
	}

	store := newStubStore()
	store.users.findFn = func(_ context.Context, id string) (*User, error) {
		if id == user.ID {
			cp := *user
			return &cp, nil
		}
		return nil, ErrNotFound
	}
	store.users.findByUsernameFn = func(_ context.Context, username string) (*User, error) {
		if username == user.Username {
			cp := *user
			return &cp, nil
		}
		return nil, ErrNotFound
	}
	store.roles.findFn = func(_ context.Context, id string) (*Role, error) {
		if id == "role-branch" {
			return &Role{ID: id, Name: RoleBranchManager}, nil
		}
		return nil, ErrNotFound
	}
	store.perms.keysFn = func(_ context.Context, roleID string) ([]string, error) {
		if roleID == "role-branch" {
			return []string{PermMeterCreate, PermMeterRead}, nil
		}
		return nil, nil
	}

	codec, err := NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := NewService(store, codec)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestLoginIssuesPair(t *testing.T) {
	svc, _ := serviceFixture(t)
	ctx := context.Background()

	pair, principal, err := svc.Login(ctx, "van_dau_mgr", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if !principal.HasPermission(PermMeterRead) {
		t.Fatalf("principal missing meter:read: %v", principal.PermissionKeys())
	}

	claims, err := svc.codec.Decode(pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	if claims.RoleName != RoleBranchManager || claims.BranchID != "branch-van-dau" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	// Permission hint is sorted for stable output.
	if len(claims.Permissions) != 2 || claims.Permissions[0] != PermMeterCreate {
		t.Fatalf("unexpected permission hint: %v", claims.Permissions)
	}
}

func TestLoginFailuresCollapse(t *testing.T) {
	svc, store := serviceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name               string
		username, password string
	}{
		{"unknown user", "nobody", "secret"},
		{"wrong password", "van_dau_mgr", "wrong"},
		{"empty password", "van_dau_mgr", ""},
		{"empty username", "", "secret"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Login(ctx, tc.username, tc.password); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
	}

	// A deactivated account fails the same way.
	orig := store.users.findByUsernameFn
	store.users.findByUsernameFn = func(ctx context.Context, username string) (*User, error) {
		u, err := orig(ctx, username)
		if err != nil {
			return nil, err
		}
		u.IsActive = false
		return u, nil
	}
	if _, _, err := svc.Login(ctx, "van_dau_mgr", "secret"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("inactive account: expected ErrUnauthorized, got %v", err)
	}
}

func TestRefreshFlow(t *testing.T) {
	svc, _ := serviceFixture(t)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "van_dau_mgr", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	access, expires, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if access == "" || expires.IsZero() {
		t.Fatalf("refresh returned empty result")
	}
	if _, err := svc.codec.Decode(access, TokenAccess); err != nil {
		t.Fatalf("refreshed access token invalid: %v", err)
	}

	// An access token is not accepted in the refresh slot.
	if _, _, err := svc.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}

	// After logout of the refresh token the exchange is refused.
	if err := svc.Logout(ctx, pair.RefreshToken, TokenRefresh); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, store := serviceFixture(t)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "van_dau_mgr", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	principal, claims, err := svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if principal.SubjectID() != "user-1" || claims.ID == "" {
		t.Fatalf("unexpected principal/claims: %+v %+v", principal, claims)
	}

	// Grants can change between issue and use; the live set wins over the
	// hint baked into the token.
	store.perms.keysFn = func(context.Context, string) ([]string, error) {
		return []string{PermMeterRead}, nil
	}
	principal, _, err = svc.Authenticate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate after grant change: %v", err)
	}
	if principal.HasPermission(PermMeterCreate) {
		t.Fatalf("revoked grant still honored")
	}

	// Logout of the access token locks it out immediately.
	if err := svc.Logout(ctx, pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestAuthenticateDeletedSubject(t *testing.T) {
	svc, store := serviceFixture(t)
	ctx := context.Background()

	pair, _, err := svc.Login(ctx, "van_dau_mgr", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	store.users.findFn = func(context.Context, string) (*User, error) {
		return nil, ErrNotFound
	}
	if _, _, err := svc.Authenticate(ctx, pair.AccessToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for deleted subject, got %v", err)
	}
}

func TestConfirmPassword(t *testing.T) {
	svc, _ := serviceFixture(t)
	ctx := context.Background()

	if err := svc.ConfirmPassword(ctx, "user-1", "secret"); err != nil {
		t.Fatalf("ConfirmPassword: %v", err)
	}
	if err := svc.ConfirmPassword(ctx, "user-1", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := svc.ConfirmPassword(ctx, "user-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPurgeLoopStopsOnCancel(t *testing.T) {
	svc, _ := serviceFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Ledger().PurgeLoop(ctx, 10*time.Millisecond, nil)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("purge loop did not stop on cancel")
	}
}
