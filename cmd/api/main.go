package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/httpapi"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/obs"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
	"github.com/Kaseito-dev/Nuoc-HP/internal/store/memory"
	"github.com/Kaseito-dev/Nuoc-HP/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

// backend is the store surface the services need, satisfied by both the
// Postgres and the in-memory store.
type backend interface {
	auth.Store
	Companies() org.CompanyStore
	Branches() org.BranchStore
	Meters() meter.Store
	Logs() oplog.Store
}

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("NUOCHP_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing NUOCHP_AUTH_SECRET")
	}

	var (
		store backend
		db    *sql.DB
	)
	if dsn := os.Getenv("NUOCHP_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		// No DSN: run on the in-memory store. Local development only.
		log.Println("NUOCHP_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	var codecOpts []auth.CodecOption
	if ttl := durationEnv("NUOCHP_ACCESS_TTL"); ttl > 0 {
		codecOpts = append(codecOpts, auth.WithAccessTTL(ttl))
	}
	if ttl := durationEnv("NUOCHP_REFRESH_TTL"); ttl > 0 {
		codecOpts = append(codecOpts, auth.WithRefreshTTL(ttl))
	}
	codec, err := auth.NewCodec(secret, codecOpts...)
	if err != nil {
		log.Fatalf("codec: %v", err)
	}

	authSvc, err := auth.NewService(store, codec)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	orgSvc, err := org.NewService(store.Companies(), store.Branches())
	if err != nil {
		log.Fatalf("org service: %v", err)
	}
	userAdmin, err := org.NewUserAdmin(store.Users(), store.Roles(), store.Branches(), orgSvc.Enforcer())
	if err != nil {
		log.Fatalf("user admin: %v", err)
	}
	meterSvc, err := meter.NewService(store.Meters(), orgSvc.Enforcer())
	if err != nil {
		log.Fatalf("meter service: %v", err)
	}
	logSvc, err := oplog.NewService(store.Logs(), orgSvc.Enforcer())
	if err != nil {
		log.Fatalf("log service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := authSvc.EnsureBuiltins(ctx); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	// Drop expired revocation entries in the background.
	go authSvc.Ledger().PurgeLoop(ctx, time.Hour, func(n int64, err error) {
		if err != nil {
			log.Printf("revocation purge: %v", err)
		} else if n > 0 {
			log.Printf("revocation purge: removed %d entries", n)
		}
	})

	api := httpapi.New(httpapi.Config{
		Auth:       authSvc,
		Org:        orgSvc,
		Users:      userAdmin,
		Meters:     meterSvc,
		Logs:       logSvc,
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
	})

	addr := os.Getenv("NUOCHP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting nuochp-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func durationEnv(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return d
}
