package httpapi

import (
	"net/http"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
)

func (a *API) handleListMeters(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermMeterRead); err != nil {
		respondError(w, err)
		return
	}
	query, sort, cur := listParams(r)
	items, hasNext, err := a.meters.List(r.Context(), p, query, sort, cur)
	if err != nil {
		respondError(w, err)
		return
	}
	writeListing(w, r, items, cur, hasNext)
}

func (a *API) handleCreateMeter(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermMeterCreate); err != nil {
		respondError(w, err)
		return
	}
	var in meter.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	m, err := a.meters.Create(r.Context(), p, in)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "meter.create", map[string]any{"meter_id": m.ID, "branch_id": m.BranchID})
	w.Header().Set("Location", "/api/v1/meters/"+m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) handleGetMeter(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermMeterRead); err != nil {
		respondError(w, err)
		return
	}
	m, err := a.meters.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleUpdateMeter(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermMeterUpdate); err != nil {
		respondError(w, err)
		return
	}
	var upd meter.Update
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	m, err := a.meters.Update(r.Context(), p, r.PathValue("id"), upd)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "meter.update", map[string]any{"meter_id": m.ID})
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMeter additionally demands the caller's password in the body.
func (a *API) handleDeleteMeter(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermMeterDelete); err != nil {
		respondError(w, err)
		return
	}
	if !a.confirmPassword(w, r, p) {
		return
	}
	id := r.PathValue("id")
	if err := a.meters.Delete(r.Context(), p, id); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "meter.delete", map[string]any{"meter_id": id})
	w.WriteHeader(http.StatusNoContent)
}
