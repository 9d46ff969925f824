// Package page implements the pagination contract shared by every listing
// endpoint: advisory page/page_size inputs, a fetch-one-extra window to detect
// the next page, and RFC 5988 Link header construction.
package page

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Cursor is a parsed pagination window. Page is 1-based.
type Cursor struct {
	Page     int
	PageSize int
}

// Parse reads page and page_size from query parameters. Inputs are advisory:
// non-numeric or out-of-range values are clamped to defaults, never rejected.
func Parse(q url.Values) Cursor {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	size, err := strconv.Atoi(q.Get("page_size"))
	if err != nil {
		size = DefaultPageSize
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Cursor{Page: page, PageSize: size}
}

// Offset returns the number of rows to skip.
func (c Cursor) Offset() int { return (c.Page - 1) * c.PageSize }

// FetchLimit returns the row count a store should request: one more than the
// page size, so the caller can tell whether a next page exists without a
// separate count query.
func (c Cursor) FetchLimit() int { return c.PageSize + 1 }

// Trim drops the probe row fetched beyond the page size and reports whether
// a next page exists.
func Trim[T any](items []T, pageSize int) ([]T, bool) {
	if len(items) > pageSize {
		return items[:pageSize], true
	}
	return items, false
}

// Sort is a parsed sort directive: a field name with an optional leading "-"
// for descending order.
type Sort struct {
	Field string
	Desc  bool
}

// ParseSort interprets the sort query parameter. An empty value yields the
// zero Sort, which stores treat as primary-key ascending.
func ParseSort(raw string) Sort {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{}
	}
	if strings.HasPrefix(raw, "-") {
		return Sort{Field: strings.TrimPrefix(raw, "-"), Desc: true}
	}
	return Sort{Field: raw}
}

// Links renders an RFC 5988 Link header value. self is always present, prev
// only when page > 1, next only when hasNext. Extra query parameters are
// carried verbatim on every link.
func Links(basePath string, c Cursor, hasNext bool, extra url.Values) string {
	link := func(page int, rel string) string {
		q := url.Values{}
		for k, vs := range extra {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(c.PageSize))
		return fmt.Sprintf("<%s?%s>; rel=%q", basePath, q.Encode(), rel)
	}

	parts := []string{link(c.Page, "self")}
	if c.Page > 1 {
		parts = append(parts, link(c.Page-1, "prev"))
	}
	if hasNext {
		parts = append(parts, link(c.Page+1, "next"))
	}
	return strings.Join(parts, ", ")
}
