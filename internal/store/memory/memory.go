// Package memory implements every store interface in process. It backs the
// package tests, the seed smoke checks, and local development without a
// database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// Store holds every table under one lock. Operations take copies in and out
// so callers never alias internal state.
type Store struct {
	mu        sync.RWMutex
	users     map[string]*auth.User
	roles     map[string]*auth.Role
	perms     map[string]auth.Permission // by id
	permByKey map[string]string          // key -> id
	grants    map[string][]string        // role id -> permission ids
	revoked   map[string]*auth.RevokedToken
	companies map[string]*org.Company
	branches  map[string]*org.Branch
	meters    map[string]*meter.Meter
	digests   map[string]string // name digest -> meter id
	logs      map[string]*oplog.Entry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:     map[string]*auth.User{},
		roles:     map[string]*auth.Role{},
		perms:     map[string]auth.Permission{},
		permByKey: map[string]string{},
		grants:    map[string][]string{},
		revoked:   map[string]*auth.RevokedToken{},
		companies: map[string]*org.Company{},
		branches:  map[string]*org.Branch{},
		meters:    map[string]*meter.Meter{},
		digests:   map[string]string{},
		logs:      map[string]*oplog.Entry{},
	}
}

// auth.Store wiring.

func (s *Store) Users() auth.UserStore               { return (*userStore)(s) }
func (s *Store) Roles() auth.RoleStore               { return (*roleStore)(s) }
func (s *Store) Permissions() auth.PermissionStore   { return (*permissionStore)(s) }
func (s *Store) RevokedTokens() auth.RevocationStore { return (*revocationStore)(s) }

// Companies returns the company store.
func (s *Store) Companies() org.CompanyStore { return (*companyStore)(s) }

// Branches returns the branch store.
func (s *Store) Branches() org.BranchStore { return (*branchStore)(s) }

// Meters returns the meter store.
func (s *Store) Meters() meter.Store { return (*meterStore)(s) }

// Logs returns the operational log store.
func (s *Store) Logs() oplog.Store { return (*logStore)(s) }

// window applies the cursor to an already sorted slice.
func window[T any](items []T, cur page.Cursor) ([]T, bool) {
	off := cur.Offset()
	if off >= len(items) {
		return []T{}, false
	}
	items = items[off:]
	if len(items) > cur.FetchLimit() {
		items = items[:cur.FetchLimit()]
	}
	return page.Trim(items, cur.PageSize)
}

func matches(query string, fields ...string) bool {
	if query == "" {
		return true
	}
	query = strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

type userStore Store

func (s *userStore) Create(_ context.Context, u *auth.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return auth.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *userStore) Find(_ context.Context, id string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *userStore) List(_ context.Context, f auth.UserFilter, srt page.Sort, cur page.Cursor) ([]*auth.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inBranches := map[string]struct{}{}
	for _, id := range f.BranchIDs {
		inBranches[id] = struct{}{}
	}
	var out []*auth.User
	for _, u := range s.users {
		if f.CompanyID != "" {
			_, branchOK := inBranches[u.BranchID]
			if u.CompanyID != f.CompanyID && !branchOK {
				continue
			}
		}
		if !matches(f.Query, u.Username) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch srt.Field {
		case "username":
			less = out[i].Username < out[j].Username
		case "created_at":
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		default:
			less = out[i].ID < out[j].ID
		}
		if srt.Desc {
			return !less
		}
		return less
	})
	items, hasNext := window(out, cur)
	return items, hasNext, nil
}

func (s *userStore) Update(_ context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Username != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Username == *upd.Username {
				return nil, auth.ErrConflict
			}
		}
		u.Username = *upd.Username
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = *upd.PasswordHash
	}
	if upd.RoleID != nil {
		u.RoleID = *upd.RoleID
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (s *userStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

type roleStore Store

func (s *roleStore) Create(_ context.Context, role *auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return auth.ErrConflict
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (s *roleStore) Find(_ context.Context, id string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *roleStore) FindByName(_ context.Context, name string) (*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *roleStore) List(_ context.Context) ([]*auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*auth.Role, 0, len(s.roles))
	for _, role := range s.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type permissionStore Store

func (s *permissionStore) Ensure(_ context.Context, perms []auth.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if _, ok := s.permByKey[p.Key]; ok {
			continue
		}
		if p.ID == "" {
			p.ID = ids.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		s.perms[p.ID] = p
		s.permByKey[p.Key] = p.ID
	}
	return nil
}

func (s *permissionStore) List(_ context.Context) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *permissionStore) SetForRole(_ context.Context, roleID string, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	// Unknown keys are skipped; the rebind is one atomic swap under the lock.
	grantIDs := make([]string, 0, len(keys))
	for _, key := range keys {
		if id, ok := s.permByKey[key]; ok {
			grantIDs = append(grantIDs, id)
		}
	}
	s.grants[roleID] = grantIDs
	return nil
}

func (s *permissionStore) KeysForRole(_ context.Context, roleID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for _, id := range s.grants[roleID] {
		if p, ok := s.perms[id]; ok {
			keys = append(keys, p.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type revocationStore Store

func (s *revocationStore) Insert(_ context.Context, tok *auth.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[tok.JTI]; ok {
		return nil
	}
	cp := *tok
	s.revoked[tok.JTI] = &cp
	return nil
}

func (s *revocationStore) Find(_ context.Context, jti string) (*auth.RevokedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.revoked[jti]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *revocationStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for jti, tok := range s.revoked {
		if !tok.ExpiresAt.After(now) {
			delete(s.revoked, jti)
			n++
		}
	}
	return n, nil
}

type companyStore Store

func (s *companyStore) Create(_ context.Context, c *org.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.companies {
		if existing.Name == c.Name {
			return auth.ErrConflict
		}
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *companyStore) Find(_ context.Context, id string) (*org.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *companyStore) FindByName(_ context.Context, name string) (*org.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.companies {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *companyStore) List(_ context.Context, query string, srt page.Sort, cur page.Cursor) ([]*org.Company, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*org.Company
	for _, c := range s.companies {
		if !matches(query, c.Name, c.Address) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sortByNameOrID(out, srt,
		func(c *org.Company) string { return c.Name },
		func(c *org.Company) string { return c.ID })
	items, hasNext := window(out, cur)
	return items, hasNext, nil
}

type branchStore Store

func (s *branchStore) Create(_ context.Context, b *org.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = ids.New()
	}
	cp := *b
	s.branches[b.ID] = &cp
	return nil
}

func (s *branchStore) Find(_ context.Context, id string) (*org.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *branchStore) List(_ context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*org.Branch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*org.Branch
	for _, b := range s.branches {
		if !f.Contains(b.ID) {
			continue
		}
		if !matches(query, b.Name, b.Address) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	sortByNameOrID(out, srt,
		func(b *org.Branch) string { return b.Name },
		func(b *org.Branch) string { return b.ID })
	items, hasNext := window(out, cur)
	return items, hasNext, nil
}

func (s *branchStore) Update(_ context.Context, id string, upd org.BranchUpdate) (*org.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.branches[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Address != nil {
		b.Address = *upd.Address
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	return &cp, nil
}

func (s *branchStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.branches[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.branches, id)
	return nil
}

func (s *branchStore) IDsByCompany(_ context.Context, companyID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, b := range s.branches {
		if b.CompanyID == companyID {
			out = append(out, b.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type meterStore Store

func (s *meterStore) Create(_ context.Context, m *meter.Meter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.digests[m.NameDigest]; ok {
		return auth.ErrConflict
	}
	if m.ID == "" {
		m.ID = ids.New()
	}
	cp := *m
	s.meters[m.ID] = &cp
	s.digests[m.NameDigest] = m.ID
	return nil
}

func (s *meterStore) Find(_ context.Context, id string) (*meter.Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meters[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *meterStore) List(_ context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*meter.Meter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*meter.Meter
	for _, m := range s.meters {
		if !f.Contains(m.BranchID) {
			continue
		}
		if !matches(query, m.Name) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sortByNameOrID(out, srt,
		func(m *meter.Meter) string { return m.Name },
		func(m *meter.Meter) string { return m.ID })
	items, hasNext := window(out, cur)
	return items, hasNext, nil
}

func (s *meterStore) Update(_ context.Context, m *meter.Meter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.meters[m.ID]
	if !ok {
		return auth.ErrNotFound
	}
	if owner, ok := s.digests[m.NameDigest]; ok && owner != m.ID {
		return auth.ErrConflict
	}
	delete(s.digests, old.NameDigest)
	cp := *m
	s.meters[m.ID] = &cp
	s.digests[m.NameDigest] = m.ID
	return nil
}

func (s *meterStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meters[id]
	if !ok {
		return auth.ErrNotFound
	}
	delete(s.digests, m.NameDigest)
	delete(s.meters, id)
	return nil
}

type logStore Store

func (s *logStore) Create(_ context.Context, e *oplog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = ids.New()
	}
	cp := *e
	s.logs[e.ID] = &cp
	return nil
}

func (s *logStore) Find(_ context.Context, id string) (*oplog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.logs[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *logStore) List(_ context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*oplog.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*oplog.Entry
	for _, e := range s.logs {
		switch {
		case f.All:
		case e.BranchID != "":
			if !f.Contains(e.BranchID) {
				continue
			}
		default:
			if f.CompanyID == "" || e.CompanyID != f.CompanyID {
				continue
			}
		}
		if !matches(query, e.Message, e.LogType) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch srt.Field {
		case "created_at":
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		case "severity":
			less = out[i].Severity < out[j].Severity
		default:
			less = out[i].ID < out[j].ID
		}
		if srt.Desc {
			return !less
		}
		return less
	})
	items, hasNext := window(out, cur)
	return items, hasNext, nil
}

func (s *logStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.logs, id)
	return nil
}

func sortByNameOrID[T any](items []T, srt page.Sort, name, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		var less bool
		switch srt.Field {
		case "name":
			less = name(items[i]) < name(items[j])
		default:
			less = id(items[i]) < id(items[j])
		}
		if srt.Desc {
			return !less
		}
		return less
	})
}
