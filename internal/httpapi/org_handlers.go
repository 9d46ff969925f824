package httpapi

import (
	"net/http"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
)

func (a *API) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermCompanyRead); err != nil {
		respondError(w, err)
		return
	}
	query, sort, cur := listParams(r)
	items, hasNext, err := a.org.ListCompanies(r.Context(), p, query, sort, cur)
	if err != nil {
		respondError(w, err)
		return
	}
	writeListing(w, r, items, cur, hasNext)
}

func (a *API) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermCompanyCreate); err != nil {
		respondError(w, err)
		return
	}
	var in org.CompanyInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	c, err := a.org.CreateCompany(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "company.create", map[string]any{"company_id": c.ID, "name": c.Name})
	w.Header().Set("Location", "/api/v1/companies/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (a *API) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermCompanyRead); err != nil {
		respondError(w, err)
		return
	}
	c, err := a.org.GetCompany(r.Context(), p, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) handleListBranches(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermBranchRead); err != nil {
		respondError(w, err)
		return
	}
	query, sort, cur := listParams(r)
	items, hasNext, err := a.org.ListBranches(r.Context(), p, query, sort, cur)
	if err != nil {
		respondError(w, err)
		return
	}
	writeListing(w, r, items, cur, hasNext)
}

func (a *API) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermBranchCreate); err != nil {
		respondError(w, err)
		return
	}
	var in org.BranchInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	b, err := a.org.CreateBranch(r.Context(), p, in)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "branch.create", map[string]any{"branch_id": b.ID, "company_id": b.CompanyID})
	w.Header().Set("Location", "/api/v1/branches/"+b.ID)
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermBranchRead); err != nil {
		respondError(w, err)
		return
	}
	b, err := a.org.GetBranch(r.Context(), p, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) handleUpdateBranch(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermBranchUpdate); err != nil {
		respondError(w, err)
		return
	}
	var upd org.BranchUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	b, err := a.org.UpdateBranch(r.Context(), p, r.PathValue("id"), upd)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "branch.update", map[string]any{"branch_id": b.ID})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermBranchDelete); err != nil {
		respondError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := a.org.DeleteBranch(r.Context(), p, id); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "branch.delete", map[string]any{"branch_id": id})
	w.WriteHeader(http.StatusNoContent)
}
