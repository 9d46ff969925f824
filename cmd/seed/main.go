// Command seed loads the initial dataset: the permission catalog, the three
// built-in roles, the Hai Phong water company with its branches, a meter per
// branch, and one account per tier. Running it twice is safe; existing rows
// are left alone.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
	"github.com/Kaseito-dev/Nuoc-HP/internal/store/memory"
	"github.com/Kaseito-dev/Nuoc-HP/internal/store/pg"
)

type backend interface {
	auth.Store
	Companies() org.CompanyStore
	Branches() org.BranchStore
	Meters() meter.Store
	Logs() oplog.Store
}

func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("NUOCHP_PG_DSN"), "PostgreSQL DSN (empty: in-memory dry run)")
		password = flag.String("password", envOr("NUOCHP_SEED_PASSWORD", "changeme123"), "Password for seeded accounts")
		check    = flag.Bool("check", false, "Run scope visibility smoke checks after seeding")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var store backend
	if *dsn != "" {
		pgStore, err := pg.Open(*dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
	} else {
		log.Println("no DSN, seeding an in-memory store (dry run)")
		store = memory.New()
	}

	if err := run(ctx, store, *password, *check); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Println("done")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// role grant sets per tier.
var roleGrants = map[string][]string{
	auth.RoleAdmin: {
		auth.PermCompanyCreate, auth.PermCompanyRead,
		auth.PermBranchRead, auth.PermBranchCreate, auth.PermBranchUpdate, auth.PermBranchDelete,
		auth.PermMeterRead, auth.PermMeterCreate, auth.PermMeterUpdate, auth.PermMeterDelete,
		auth.PermUserRead, auth.PermUserWrite,
		auth.PermLogRead, auth.PermLogWrite,
	},
	auth.RoleCompanyManager: {
		auth.PermCompanyRead,
		auth.PermBranchRead, auth.PermBranchCreate, auth.PermBranchUpdate, auth.PermBranchDelete,
		auth.PermMeterRead,
		auth.PermUserRead, auth.PermUserWrite,
		auth.PermLogRead,
	},
	auth.RoleBranchManager: {
		auth.PermBranchRead,
		auth.PermMeterRead, auth.PermMeterCreate, auth.PermMeterUpdate, auth.PermMeterDelete,
		auth.PermLogRead,
	},
}

func run(ctx context.Context, store backend, password string, check bool) error {
	if err := store.Permissions().Ensure(ctx, auth.BuiltinPermissions); err != nil {
		return err
	}

	roleIDs := map[string]string{}
	for name, keys := range roleGrants {
		role, err := store.Roles().FindByName(ctx, name)
		if errors.Is(err, auth.ErrNotFound) {
			role = &auth.Role{ID: ids.New(), Name: name, CreatedAt: time.Now().UTC()}
			if err := store.Roles().Create(ctx, role); err != nil {
				return err
			}
			log.Printf("created role %s", name)
		} else if err != nil {
			return err
		}
		if err := store.Permissions().SetForRole(ctx, role.ID, keys); err != nil {
			return err
		}
		roleIDs[name] = role.ID
	}

	company, err := ensureCompany(ctx, store, "Công ty Cấp Nước Hải Phòng", "Hải Phòng")
	if err != nil {
		return err
	}

	branchIDs := map[string]string{}
	for _, name := range []string{"Văn Đẩu", "Bắc Sơn", "Trường Sơn"} {
		b, err := ensureBranch(ctx, store, company.ID, name)
		if err != nil {
			return err
		}
		branchIDs[name] = b.ID
		if err := ensureMeter(ctx, store, b.ID, "Đồng hồ tổng "+name); err != nil {
			return err
		}
	}

	accounts := []struct {
		username string
		role     string
		company  string
		branch   string
	}{
		{"admin", auth.RoleAdmin, "", ""},
		{"tongcongty", auth.RoleCompanyManager, company.ID, ""},
		{"van_dau_mgr", auth.RoleBranchManager, company.ID, branchIDs["Văn Đẩu"]},
		{"bac_son_mgr", auth.RoleBranchManager, company.ID, branchIDs["Bắc Sơn"]},
		{"truong_son_mgr", auth.RoleBranchManager, company.ID, branchIDs["Trường Sơn"]},
	}
	for _, acc := range accounts {
		if err := ensureUser(ctx, store, acc.username, password, roleIDs[acc.role], acc.company, acc.branch); err != nil {
			return err
		}
	}

	if check {
		return smokeCheck(ctx, store)
	}
	return nil
}

func ensureCompany(ctx context.Context, store backend, name, address string) (*org.Company, error) {
	c, err := store.Companies().FindByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	c = &org.Company{ID: ids.New(), Name: name, Address: address, CreatedAt: now, UpdatedAt: now}
	if err := store.Companies().Create(ctx, c); err != nil {
		return nil, err
	}
	log.Printf("created company %s", name)
	return c, nil
}

func ensureBranch(ctx context.Context, store backend, companyID, name string) (*org.Branch, error) {
	existing, _, err := store.Branches().List(ctx, authz.Filter{All: true}, name, page.Sort{}, page.Cursor{Page: 1, PageSize: page.MaxPageSize})
	if err != nil {
		return nil, err
	}
	for _, b := range existing {
		if b.CompanyID == companyID && b.Name == name {
			return b, nil
		}
	}
	now := time.Now().UTC()
	b := &org.Branch{ID: ids.New(), CompanyID: companyID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := store.Branches().Create(ctx, b); err != nil {
		return nil, err
	}
	log.Printf("created branch %s", name)
	return b, nil
}

func ensureMeter(ctx context.Context, store backend, branchID, name string) error {
	now := time.Now().UTC()
	m := &meter.Meter{
		ID:         ids.New(),
		BranchID:   branchID,
		Name:       name,
		NameDigest: meter.Digest(branchID, name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := store.Meters().Create(ctx, m)
	if errors.Is(err, auth.ErrConflict) {
		return nil
	}
	if err == nil {
		log.Printf("created meter %s", name)
	}
	return err
}

func ensureUser(ctx context.Context, store backend, username, password, roleID, companyID, branchID string) error {
	if _, err := store.Users().FindByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, auth.ErrNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
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
	if err := store.Users().Create(ctx, u); err != nil {
		return err
	}
	log.Printf("created user %s", username)
	return nil
}

// smokeCheck verifies the seeded dataset behaves: every branch manager sees
// exactly one branch, the company manager sees all three.
func smokeCheck(ctx context.Context, store backend) error {
	orgSvc, err := org.NewService(store.Companies(), store.Branches())
	if err != nil {
		return err
	}
	authSvc := func(username string) (auth.Principal, error) {
		u, err := store.Users().FindByUsername(ctx, username)
		if err != nil {
			return auth.Principal{}, err
		}
		role, err := store.Roles().Find(ctx, u.RoleID)
		if err != nil {
			return auth.Principal{}, err
		}
		keys, err := store.Permissions().KeysForRole(ctx, u.RoleID)
		if err != nil {
			return auth.Principal{}, err
		}
		return auth.NewPrincipal(u, role.Name, toSet(keys)), nil
	}

	for username, want := range map[string]int{
		"van_dau_mgr": 1,
		"tongcongty":  3,
	} {
		p, err := authSvc(username)
		if err != nil {
			return err
		}
		branches, _, err := orgSvc.ListBranches(ctx, p, "", page.Sort{}, page.Cursor{Page: 1, PageSize: page.MaxPageSize})
		if err != nil {
			return err
		}
		if len(branches) != want {
			log.Fatalf("smoke: %s sees %d branches, want %d", username, len(branches), want)
		}
		log.Printf("smoke: %s sees %d branches", username, len(branches))
	}
	return nil
}

func toSet(keys []string) map[string]struct{} {
	out := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
