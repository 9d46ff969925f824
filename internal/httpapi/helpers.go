package httpapi

import (
	"net/http"
	"net/url"
	"reflect"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// principalFrom pulls the authenticated principal off the context. withAuth
// guarantees it for protected routes; the fallback guards against wiring
// mistakes.
func principalFrom(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	return p, true
}

// listParams parses the shared listing query: q, sort, page, page_size.
func listParams(r *http.Request) (string, page.Sort, page.Cursor) {
	q := r.URL.Query()
	return q.Get("q"), page.ParseSort(q.Get("sort")), page.Parse(q)
}

// writeListing emits the shared list envelope plus the Link header. Extra
// query parameters (q, sort) are carried on every link. A nil item slice is
// flattened to an empty one so empty pages serialize as "items":[] no matter
// which store produced them.
func writeListing(w http.ResponseWriter, r *http.Request, items any, cur page.Cursor, hasNext bool) {
	if v := reflect.ValueOf(items); v.Kind() == reflect.Slice && v.IsNil() {
		items = []struct{}{}
	}
	extra := url.Values{}
	for _, k := range []string{"q", "sort"} {
		if v := r.URL.Query().Get(k); v != "" {
			extra.Set(k, v)
		}
	}
	w.Header().Set("Link", page.Links(r.URL.Path, cur, hasNext, extra))
	writeJSON(w, http.StatusOK, listEnvelope{Items: items, Page: cur.Page, PageSize: cur.PageSize})
}

// confirmRequest is the body shape for destructive routes that demand the
// caller's password again.
type confirmRequest struct {
	Password string `json:"password"`
}

// confirmPassword decodes the confirmation body and re-checks the caller's
// password. An empty body is rejected before hitting the store.
func (a *API) confirmPassword(w http.ResponseWriter, r *http.Request, p auth.Principal) bool {
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return false
	}
	if err := a.auth.ConfirmPassword(r.Context(), p.SubjectID(), req.Password); err != nil {
		respondError(w, err)
		return false
	}
	return true
}
