package org

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

type stubCompanyStore struct {
	rows map[string]*Company
}

func (s *stubCompanyStore) Create(_ context.Context, c *Company) error {
	for _, existing := range s.rows {
		if existing.Name == c.Name {
			return auth.ErrConflict
		}
	}
	cp := *c
	s.rows[c.ID] = &cp
	return nil
}

func (s *stubCompanyStore) Find(_ context.Context, id string) (*Company, error) {
	c, ok := s.rows[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubCompanyStore) FindByName(_ context.Context, name string) (*Company, error) {
	for _, c := range s.rows {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *stubCompanyStore) List(_ context.Context, query string, _ page.Sort, cur page.Cursor) ([]*Company, bool, error) {
	var out []*Company
	for _, c := range s.rows {
		if query != "" && !strings.Contains(c.Name, query) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

type stubBranchStore struct {
	rows map[string]*Branch
}

func (s *stubBranchStore) Create(_ context.Context, b *Branch) error {
	cp := *b
	s.rows[b.ID] = &cp
	return nil
}

func (s *stubBranchStore) Find(_ context.Context, id string) (*Branch, error) {
	b, ok := s.rows[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *stubBranchStore) List(_ context.Context, f authz.Filter, query string, _ page.Sort, cur page.Cursor) ([]*Branch, bool, error) {
	var out []*Branch
	for _, b := range s.rows {
		if !f.Contains(b.ID) {
			continue
		}
		if query != "" && !strings.Contains(b.Name, query) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *stubBranchStore) Update(_ context.Context, id string, upd BranchUpdate) (*Branch, error) {
	b, ok := s.rows[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Address != nil {
		b.Address = *upd.Address
	}
	cp := *b
	return &cp, nil
}

func (s *stubBranchStore) Delete(_ context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *stubBranchStore) IDsByCompany(_ context.Context, companyID string) ([]string, error) {
	var ids []string
	for _, b := range s.rows {
		if b.CompanyID == companyID {
			ids = append(ids, b.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// fixture builds a service seeded with two companies and three branches:
// co-1 owns br-1 and br-2, co-2 owns br-9.
func fixture(t *testing.T) (*Service, *stubBranchStore) {
	t.Helper()
	companies := &stubCompanyStore{rows: map[string]*Company{
		"co-1": {ID: "co-1", Name: "Công ty Cấp Nước Hải Phòng"},
		"co-2": {ID: "co-2", Name: "Công ty B"},
	}}
	branches := &stubBranchStore{rows: map[string]*Branch{
		"br-1": {ID: "br-1", CompanyID: "co-1", Name: "Văn Đẩu"},
		"br-2": {ID: "br-2", CompanyID: "co-1", Name: "Bắc Sơn"},
		"br-9": {ID: "br-9", CompanyID: "co-2", Name: "Trường Sơn"},
	}}
	svc, err := NewService(companies, branches)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, branches
}

func principal(companyID, branchID string) auth.Principal {
	return auth.NewPrincipal(&auth.User{ID: "u", CompanyID: companyID, BranchID: branchID}, "", nil)
}

func branchIDs(items []*Branch) []string {
	var out []string
	for _, b := range items {
		out = append(out, b.ID)
	}
	sort.Strings(out)
	return out
}

func TestListBranchesVisibility(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()
	cur := page.Cursor{Page: 1, PageSize: 20}

	items, _, err := svc.ListBranches(ctx, principal("", ""), "", page.Sort{}, cur)
	if err != nil || len(items) != 3 {
		t.Fatalf("admin sees all branches: %v %v", branchIDs(items), err)
	}

	// Branch staff see exactly their own branch.
	items, _, err = svc.ListBranches(ctx, principal("co-1", "br-1"), "", page.Sort{}, cur)
	if err != nil {
		t.Fatalf("branch list: %v", err)
	}
	if got := branchIDs(items); len(got) != 1 || got[0] != "br-1" {
		t.Fatalf("branch visibility = %v", got)
	}

	// Company managers see exactly their company's branches.
	items, _, err = svc.ListBranches(ctx, principal("co-1", ""), "", page.Sort{}, cur)
	if err != nil {
		t.Fatalf("company list: %v", err)
	}
	if got := branchIDs(items); len(got) != 2 || got[0] != "br-1" || got[1] != "br-2" {
		t.Fatalf("company visibility = %v", got)
	}
}

func TestGetBranchHidesForeign(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	// Direct ID requests cannot cross the scope boundary.
	if _, err := svc.GetBranch(ctx, principal("co-1", ""), "br-9"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("foreign branch by id: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetBranch(ctx, principal("co-1", "br-1"), "br-2"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("sibling branch by id: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetBranch(ctx, principal("co-1", "br-1"), "br-1"); err != nil {
		t.Fatalf("own branch: %v", err)
	}
}

func TestCreateBranchScopeRules(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	if _, err := svc.CreateBranch(ctx, principal("co-1", "br-1"), BranchInput{Name: "X"}); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("branch tier create: expected ErrForbidden, got %v", err)
	}

	// A company manager's payload company is ignored in favor of their own.
	b, err := svc.CreateBranch(ctx, principal("co-1", ""), BranchInput{CompanyID: "co-2", Name: "Kiến An"})
	if err != nil {
		t.Fatalf("company create: %v", err)
	}
	if b.CompanyID != "co-1" {
		t.Fatalf("company not pinned to caller scope: %+v", b)
	}

	if _, err := svc.CreateBranch(ctx, principal("", ""), BranchInput{Name: "X"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("admin without company: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateBranch(ctx, principal("", ""), BranchInput{CompanyID: "co-ghost", Name: "X"}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("unknown company: expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateBranchWriteRules(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()
	name := "Văn Đẩu (mới)"

	if _, err := svc.UpdateBranch(ctx, principal("co-1", "br-1"), "br-1", BranchUpdate{Name: &name}); err != nil {
		t.Fatalf("own branch update: %v", err)
	}

	// Branch staff touching a sibling get an explicit denial.
	if _, err := svc.UpdateBranch(ctx, principal("co-1", "br-1"), "br-2", BranchUpdate{Name: &name}); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("sibling update: expected ErrForbidden, got %v", err)
	}
	// Company managers never learn that the foreign branch exists.
	if _, err := svc.UpdateBranch(ctx, principal("co-1", ""), "br-9", BranchUpdate{Name: &name}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("foreign update: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBranchScoped(t *testing.T) {
	svc, branches := fixture(t)
	ctx := context.Background()

	if err := svc.DeleteBranch(ctx, principal("co-1", ""), "br-9"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if err := svc.DeleteBranch(ctx, principal("co-1", ""), "br-2"); err != nil {
		t.Fatalf("in-company delete: %v", err)
	}
	if _, ok := branches.rows["br-2"]; ok {
		t.Fatalf("branch not removed")
	}
}

func TestListCompaniesScoped(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()
	cur := page.Cursor{Page: 1, PageSize: 20}

	items, _, err := svc.ListCompanies(ctx, principal("", ""), "", page.Sort{}, cur)
	if err != nil || len(items) != 2 {
		t.Fatalf("admin companies: %d %v", len(items), err)
	}

	// Branch staff resolve to their branch's company.
	items, _, err = svc.ListCompanies(ctx, principal("co-1", "br-1"), "", page.Sort{}, cur)
	if err != nil || len(items) != 1 || items[0].ID != "co-1" {
		t.Fatalf("branch companies: %v %v", items, err)
	}

	if _, err := svc.GetCompany(ctx, principal("co-1", ""), "co-2"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("foreign company: expected ErrNotFound, got %v", err)
	}
}

func TestCreateCompanyConflict(t *testing.T) {
	svc, _ := fixture(t)
	ctx := context.Background()

	if _, err := svc.CreateCompany(ctx, CompanyInput{Name: "Công ty Cấp Nước Hải Phòng"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate name: expected ErrConflict, got %v", err)
	}
	if _, err := svc.CreateCompany(ctx, CompanyInput{Name: "  "}); !errors.Is(err, auth.ErrInvalidInput) {
		t.Fatalf("blank name: expected ErrInvalidInput, got %v", err)
	}
	c, err := svc.CreateCompany(ctx, CompanyInput{Name: "Công ty C", Address: "Hải Phòng"})
	if err != nil || c.ID == "" {
		t.Fatalf("create: %+v %v", c, err)
	}
}
