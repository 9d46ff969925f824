package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
)

// Error envelope codes.
const (
	codeBadRequest   = "BAD_REQUEST"
	codeUnauthorized = "UNAUTHORIZED"
	codeTokenExpired = "TOKEN_EXPIRED"
	codeTokenRevoked = "TOKEN_REVOKED"
	codeForbidden    = "FORBIDDEN"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeInternal     = "INTERNAL"
)

type apiError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...string) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message, Details: details}})
}

// respondError maps domain errors to the envelope. Every handler funnels its
// failures through this one switch.
func respondError(w http.ResponseWriter, err error) {
	var forbidden *authz.ForbiddenError
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeBadRequest, userMessage(err, "invalid input"))
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, codeTokenExpired, "token has expired")
	case errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, http.StatusUnauthorized, codeTokenRevoked, "token has been revoked")
	case errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrWrongTokenType):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication failed")
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, codeForbidden, forbidden.Message, forbidden.Details...)
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, http.StatusConflict, codeConflict, "resource already exists")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// userMessage strips the sentinel prefix so the client sees the specific
// validation detail without the internal wrapping.
func userMessage(err error, fallback string) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	if msg != "" && !strings.Contains(msg, "invalid input") {
		return msg
	}
	return fallback
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// listEnvelope is the shared shape of every listing response.
type listEnvelope struct {
	Items    any `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}
