package httpapi

import (
	"net/http"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
)

// Log routes carry both a role allow-list and a capability key. The role
// check runs first; a role failure short-circuits before any permission
// lookup.

func (a *API) handleListLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireRole(p, auth.RoleAdmin, auth.RoleCompanyManager, auth.RoleBranchManager); err != nil {
		respondError(w, err)
		return
	}
	if err := authz.RequireAll(p, auth.PermLogRead); err != nil {
		respondError(w, err)
		return
	}
	query, sort, cur := listParams(r)
	items, hasNext, err := a.logs.List(r.Context(), p, query, sort, cur)
	if err != nil {
		respondError(w, err)
		return
	}
	writeListing(w, r, items, cur, hasNext)
}

type createLogRequest struct {
	oplog.Input
	Password string `json:"password"`
}

func (a *API) handleCreateLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireRole(p, auth.RoleAdmin); err != nil {
		respondError(w, err)
		return
	}
	if err := authz.RequireAll(p, auth.PermLogWrite); err != nil {
		respondError(w, err)
		return
	}
	var req createLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := a.auth.ConfirmPassword(r.Context(), p.SubjectID(), req.Password); err != nil {
		respondError(w, err)
		return
	}
	e, err := a.logs.Create(r.Context(), p, req.Input)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "log.create", map[string]any{"log_id": e.ID, "log_type": e.LogType})
	w.Header().Set("Location", "/api/v1/logs/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireRole(p, auth.RoleAdmin); err != nil {
		respondError(w, err)
		return
	}
	if err := authz.RequireAll(p, auth.PermLogWrite); err != nil {
		respondError(w, err)
		return
	}
	if !a.confirmPassword(w, r, p) {
		return
	}
	id := r.PathValue("id")
	if err := a.logs.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "log.delete", map[string]any{"log_id": id})
	w.WriteHeader(http.StatusNoContent)
}
