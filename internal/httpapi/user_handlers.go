package httpapi

import (
	"net/http"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
)

// userView is the account shape returned to clients. The password hash never
// leaves the server.
type userView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	RoleID    string `json:"role_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	BranchID  string `json:"branch_id,omitempty"`
	IsActive  bool   `json:"is_active"`
}

func viewUser(u *auth.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		RoleID:    u.RoleID,
		CompanyID: u.CompanyID,
		BranchID:  u.BranchID,
		IsActive:  u.IsActive,
	}
}

func viewUsers(us []*auth.User) []userView {
	out := make([]userView, 0, len(us))
	for _, u := range us {
		out = append(out, viewUser(u))
	}
	return out
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermUserRead); err != nil {
		respondError(w, err)
		return
	}
	query, sort, cur := listParams(r)
	items, hasNext, err := a.users.List(r.Context(), p, query, sort, cur)
	if err != nil {
		respondError(w, err)
		return
	}
	writeListing(w, r, viewUsers(items), cur, hasNext)
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermUserWrite); err != nil {
		respondError(w, err)
		return
	}
	var in org.UserInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	u, err := a.users.Create(r.Context(), p, in)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "user.create", map[string]any{"user_id": u.ID, "username": u.Username})
	w.Header().Set("Location", "/api/v1/users/"+u.ID)
	writeJSON(w, http.StatusCreated, viewUser(u))
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermUserRead); err != nil {
		respondError(w, err)
		return
	}
	u, err := a.users.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUser(u))
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermUserWrite); err != nil {
		respondError(w, err)
		return
	}
	var in org.UserUpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	u, err := a.users.Update(r.Context(), p, r.PathValue("id"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "user.update", map[string]any{"user_id": u.ID})
	writeJSON(w, http.StatusOK, viewUser(u))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(w, r)
	if !ok {
		return
	}
	if err := authz.RequireAll(p, auth.PermUserWrite); err != nil {
		respondError(w, err)
		return
	}
	id := r.PathValue("id")
	if err := a.users.Delete(r.Context(), p, id); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "user.delete", map[string]any{"user_id": id})
	w.WriteHeader(http.StatusNoContent)
}
