package meter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

func TestDigestNormalization(t *testing.T) {
	if Digest("br-1", "Đồng hồ  A") != Digest("br-1", "đồng hồ a") {
		t.Fatalf("case and whitespace must fold into the same digest")
	}
	if Digest("br-1", "Đồng hồ A") == Digest("br-2", "Đồng hồ A") {
		t.Fatalf("same name in different branches must not collide")
	}
	if Digest("br-1", "Đồng hồ A") == Digest("br-1", "Đồng hồ B") {
		t.Fatalf("different names in one branch must not collide")
	}
}

func TestZeroInstallTimeOmittedFromJSON(t *testing.T) {
	b, err := json.Marshal(&Meter{ID: "m-1", BranchID: "br-1", Name: "Đồng hồ A"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(b), "installed_at") {
		t.Fatalf("unset install time must be omitted, got %s", b)
	}

	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b, err = json.Marshal(&Meter{ID: "m-1", BranchID: "br-1", Name: "Đồng hồ A", InstalledAt: when})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"installed_at":"2024-05-01T00:00:00Z"`) {
		t.Fatalf("set install time must serialize, got %s", b)
	}
}

type stubStore struct {
	byID     map[string]*Meter
	byDigest map[string]string
}

func newStubStore() *stubStore {
	return &stubStore{byID: map[string]*Meter{}, byDigest: map[string]string{}}
}

func (s *stubStore) Create(_ context.Context, m *Meter) error {
	if _, ok := s.byDigest[m.NameDigest]; ok {
		return auth.ErrConflict
	}
	cp := *m
	s.byID[m.ID] = &cp
	s.byDigest[m.NameDigest] = m.ID
	return nil
}

func (s *stubStore) Find(_ context.Context, id string) (*Meter, error) {
	m, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *stubStore) List(_ context.Context, f authz.Filter, _ string, _ page.Sort, cur page.Cursor) ([]*Meter, bool, error) {
	var out []*Meter
	for _, m := range s.byID {
		if f.Contains(m.BranchID) {
			cp := *m
			out = append(out, &cp)
		}
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *stubStore) Update(_ context.Context, m *Meter) error {
	old, ok := s.byID[m.ID]
	if !ok {
		return auth.ErrNotFound
	}
	if owner, ok := s.byDigest[m.NameDigest]; ok && owner != m.ID {
		return auth.ErrConflict
	}
	delete(s.byDigest, old.NameDigest)
	cp := *m
	s.byID[m.ID] = &cp
	s.byDigest[m.NameDigest] = m.ID
	return nil
}

func (s *stubStore) Delete(_ context.Context, id string) error {
	m, ok := s.byID[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.byDigest, m.NameDigest)
	delete(s.byID, id)
	return nil
}

type stubBranchSource struct{ byCompany map[string][]string }

func (s *stubBranchSource) IDsByCompany(_ context.Context, companyID string) ([]string, error) {
	return append([]string(nil), s.byCompany[companyID]...), nil
}

func fixture(t *testing.T) (*Service, *stubStore) {
	t.Helper()
	store := newStubStore()
	enforcer, err := authz.NewEnforcer(&stubBranchSource{byCompany: map[string][]string{
		"co-1": {"br-1", "br-2"},
	}})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	svc, err := NewService(store, enforcer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func principal(companyID, branchID string) auth.Principal {
	return auth.NewPrincipal(&auth.User{ID: "u", CompanyID: companyID, BranchID: branchID}, "", nil)
}

func TestCreateDedup(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()
	branchStaff := principal("co-1", "br-1")

	m, err := svc.Create(ctx, branchStaff, Input{Name: "Đồng hồ A"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if m.BranchID != "br-1" {
		t.Fatalf("branch defaulting failed: %+v", m)
	}

	// Same normalized name in the same branch collides.
	if _, err := svc.Create(ctx, branchStaff, Input{Name: "đồng  hồ a"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Same name under a sibling branch is fine.
	admin := principal("", "")
	if _, err := svc.Create(ctx, admin, Input{BranchID: "br-2", Name: "Đồng hồ A"}); err != nil {
		t.Fatalf("sibling branch create: %v", err)
	}
}

func TestCreateScopeRules(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	// Branch staff targeting a sibling branch is a denial.
	if _, err := svc.Create(ctx, principal("co-1", "br-1"), Input{BranchID: "br-2", Name: "M"}); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Company managers must name a branch under their company.
	if _, err := svc.Create(ctx, principal("co-1", ""), Input{Name: "M"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for omitted branch, got %v", err)
	}
	if _, err := svc.Create(ctx, principal("co-1", ""), Input{BranchID: "br-9", Name: "M"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign branch, got %v", err)
	}
	// Admin must be explicit.
	if _, err := svc.Create(ctx, principal("", ""), Input{Name: "M"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for admin without branch, got %v", err)
	}
}

func TestGetHidesForeignMeters(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, principal("", ""), Input{BranchID: "br-2", Name: "Đồng hồ B"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Staff of a sibling branch see "not found", not "forbidden".
	if _, err := svc.Get(ctx, principal("co-1", "br-1"), m.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, principal("co-1", "br-2"), m.ID); err != nil {
		t.Fatalf("owning branch read: %v", err)
	}
	if _, err := svc.Get(ctx, principal("co-1", ""), m.ID); err != nil {
		t.Fatalf("company manager read: %v", err)
	}
}

func TestRenameRecheck(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()
	staff := principal("co-1", "br-1")

	a, err := svc.Create(ctx, staff, Input{Name: "Đồng hồ A"})
	if err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if _, err := svc.Create(ctx, staff, Input{Name: "Đồng hồ B"}); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	// Renaming onto an occupied name collides.
	name := "đồng hồ b"
	if _, err := svc.Update(ctx, staff, a.ID, Update{Name: &name}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Renaming to a free name succeeds and frees the old digest.
	free := "Đồng hồ C"
	updated, err := svc.Update(ctx, staff, a.ID, Update{Name: &free})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.NameDigest != Digest("br-1", free) {
		t.Fatalf("digest not recomputed on rename")
	}
	if _, err := svc.Create(ctx, staff, Input{Name: "Đồng hồ A"}); err != nil {
		t.Fatalf("old name should be free after rename: %v", err)
	}
}

func TestDeleteScoped(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, principal("", ""), Input{BranchID: "br-2", Name: "Đồng hồ X"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, principal("co-1", "br-1"), m.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("foreign delete must look missing, got %v", err)
	}
	if err := svc.Delete(ctx, principal("co-1", "br-2"), m.ID); err != nil {
		t.Fatalf("owning delete: %v", err)
	}
}
