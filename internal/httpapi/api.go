package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/audit"
	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/obs"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer: routing, authentication, guards and the error
// envelope. Business rules live in the services.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	org        *org.Service
	users      *org.UserAdmin
	meters     *meter.Service
	logs       *oplog.Service
	readyProbe ReadyProbe
	version    string
}

// Config carries the service dependencies for New.
type Config struct {
	Auth       *auth.Service
	Org        *org.Service
	Users      *org.UserAdmin
	Meters     *meter.Service
	Logs       *oplog.Service
	ReadyProbe ReadyProbe
	Version    string
}

// New wires every route. Method patterns dispatch per verb; unmatched verbs
// get 405 from the mux itself.
func New(cfg Config) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       cfg.Auth,
		org:        cfg.Org,
		users:      cfg.Users,
		meters:     cfg.Meters,
		logs:       cfg.Logs,
		readyProbe: cfg.ReadyProbe,
		version:    cfg.Version,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReady)
	a.mux.HandleFunc("GET /api/v1/info", a.handleInfo)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// auth
	a.mux.Handle("POST /api/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), 10, 5))
	a.mux.HandleFunc("POST /api/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("POST /api/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("POST /api/v1/auth/logout-refresh", a.handleLogoutRefresh)

	// companies
	a.mux.HandleFunc("GET /api/v1/companies", a.handleListCompanies)
	a.mux.HandleFunc("POST /api/v1/companies", a.handleCreateCompany)
	a.mux.HandleFunc("GET /api/v1/companies/{id}", a.handleGetCompany)

	// branches
	a.mux.HandleFunc("GET /api/v1/branches", a.handleListBranches)
	a.mux.HandleFunc("POST /api/v1/branches", a.handleCreateBranch)
	a.mux.HandleFunc("GET /api/v1/branches/{id}", a.handleGetBranch)
	a.mux.HandleFunc("PATCH /api/v1/branches/{id}", a.handleUpdateBranch)
	a.mux.HandleFunc("DELETE /api/v1/branches/{id}", a.handleDeleteBranch)

	// meters
	a.mux.HandleFunc("GET /api/v1/meters", a.handleListMeters)
	a.mux.HandleFunc("POST /api/v1/meters", a.handleCreateMeter)
	a.mux.HandleFunc("GET /api/v1/meters/{id}", a.handleGetMeter)
	a.mux.HandleFunc("PATCH /api/v1/meters/{id}", a.handleUpdateMeter)
	a.mux.HandleFunc("DELETE /api/v1/meters/{id}", a.handleDeleteMeter)

	// operational logs
	a.mux.HandleFunc("GET /api/v1/logs", a.handleListLogs)
	a.mux.HandleFunc("POST /api/v1/logs", a.handleCreateLog)
	a.mux.HandleFunc("DELETE /api/v1/logs/{id}", a.handleDeleteLog)

	// users
	a.mux.HandleFunc("GET /api/v1/users", a.handleListUsers)
	a.mux.HandleFunc("POST /api/v1/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /api/v1/users/{id}", a.handleGetUser)
	a.mux.HandleFunc("PATCH /api/v1/users/{id}", a.handleUpdateUser)
	a.mux.HandleFunc("DELETE /api/v1/users/{id}", a.handleDeleteUser)

	return a
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "nuochp-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "nuochp-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}
