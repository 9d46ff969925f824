package httpapi

import (
	"net/http"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userSummary struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Role        string   `json:"role,omitempty"`
	CompanyID   string   `json:"company_id,omitempty"`
	BranchID    string   `json:"branch_id,omitempty"`
	Permissions []string `json:"permissions"`
}

func summarize(p auth.Principal) userSummary {
	keys := p.PermissionKeys()
	if keys == nil {
		keys = []string{}
	}
	return userSummary{
		ID:          p.User.ID,
		Username:    p.User.Username,
		Role:        p.RoleName,
		CompanyID:   p.User.CompanyID,
		BranchID:    p.User.BranchID,
		Permissions: keys,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	pair, principal, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	a.audit(auth.ContextWithPrincipal(r.Context(), principal), "auth.login", map[string]any{
		"username": principal.User.Username,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":       pair.AccessToken,
		"refresh_token":      pair.RefreshToken,
		"access_expires_at":  pair.AccessExpiresAt.Format(time.RFC3339),
		"refresh_expires_at": pair.RefreshExpiresAt.Format(time.RFC3339),
		"user":               summarize(principal),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	access, expiresAt, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":      access,
		"access_expires_at": expiresAt.Format(time.RFC3339),
	})
}

// handleLogout revokes the access token the caller presented. Revoking twice
// is a no-op.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	raw, ok := extractBearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}
	if err := a.auth.Logout(r.Context(), raw, auth.TokenAccess); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleLogoutRefresh revokes the refresh token supplied in the body, ending
// the session for good.
func (a *API) handleLogoutRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	if err := a.auth.Logout(r.Context(), req.RefreshToken, auth.TokenRefresh); err != nil {
		respondError(w, err)
		return
	}
	a.audit(r.Context(), "auth.logout_refresh", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}
