package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

func TestUserUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Users().Create(ctx, &auth.User{Username: "admin"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Users().Create(ctx, &auth.User{Username: "admin"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGrantRebind(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Permissions().Ensure(ctx, auth.BuiltinPermissions); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	role := &auth.Role{Name: auth.RoleBranchManager}
	if err := store.Roles().Create(ctx, role); err != nil {
		t.Fatalf("Create role: %v", err)
	}

	// Unknown keys are dropped, known keys land.
	keys := []string{auth.PermMeterRead, "bogus:perm", auth.PermMeterCreate}
	if err := store.Permissions().SetForRole(ctx, role.ID, keys); err != nil {
		t.Fatalf("SetForRole: %v", err)
	}
	got, err := store.Permissions().KeysForRole(ctx, role.ID)
	if err != nil || len(got) != 2 {
		t.Fatalf("KeysForRole = %v, %v", got, err)
	}

	// A rebind replaces, never appends.
	if err := store.Permissions().SetForRole(ctx, role.ID, []string{auth.PermMeterRead}); err != nil {
		t.Fatalf("SetForRole rebind: %v", err)
	}
	got, _ = store.Permissions().KeysForRole(ctx, role.ID)
	if len(got) != 1 || got[0] != auth.PermMeterRead {
		t.Fatalf("rebind result = %v", got)
	}
}

func TestMeterDigestConstraint(t *testing.T) {
	store := New()
	ctx := context.Background()

	m := &meter.Meter{BranchID: "br-1", Name: "A", NameDigest: meter.Digest("br-1", "A")}
	if err := store.Meters().Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	dup := &meter.Meter{BranchID: "br-1", Name: "a", NameDigest: meter.Digest("br-1", "a")}
	if err := store.Meters().Create(ctx, dup); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRevocationPurge(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	dead := &auth.RevokedToken{JTI: "dead", ExpiresAt: now.Add(-time.Minute)}
	live := &auth.RevokedToken{JTI: "live", ExpiresAt: now.Add(time.Minute)}
	for _, tok := range []*auth.RevokedToken{dead, live} {
		if err := store.RevokedTokens().Insert(ctx, tok); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	n, err := store.RevokedTokens().Purge(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("Purge: n=%d err=%v", n, err)
	}
	if _, err := store.RevokedTokens().Find(ctx, "live"); err != nil {
		t.Fatalf("live entry removed: %v", err)
	}
}

func TestListWindow(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, name := range []string{"m1", "m2", "m3", "m4", "m5"} {
		m := &meter.Meter{BranchID: "br-1", Name: name, NameDigest: meter.Digest("br-1", name)}
		if err := store.Meters().Create(ctx, m); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	all := authz.Filter{All: true}
	items, hasNext, err := store.Meters().List(ctx, all, "", page.Sort{Field: "name"}, page.Cursor{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || !hasNext {
		t.Fatalf("page 2: len=%d hasNext=%v", len(items), hasNext)
	}
	if items[0].Name != "m3" || items[1].Name != "m4" {
		t.Fatalf("page 2 contents: %s %s", items[0].Name, items[1].Name)
	}

	items, hasNext, err = store.Meters().List(ctx, all, "", page.Sort{Field: "name"}, page.Cursor{Page: 3, PageSize: 2})
	if err != nil || len(items) != 1 || hasNext {
		t.Fatalf("last page: len=%d hasNext=%v err=%v", len(items), hasNext, err)
	}
}
