// Package oplog implements the operational log family: append-style records
// written by staff and read back under author scoping, so a reader only sees
// entries whose author falls inside their own tenant boundary.
package oplog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

// Entry is one operational log record. CompanyID and BranchID are stamped
// from the author's scope at write time so reads can filter without joining
// back to the users table on every query.
type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	CompanyID string         `json:"company_id,omitempty"`
	BranchID  string         `json:"branch_id,omitempty"`
	LogType   string         `json:"log_type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Known severities, lowest to highest.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Store persists log entries.
type Store interface {
	Create(ctx context.Context, e *Entry) error
	Find(ctx context.Context, id string) (*Entry, error)
	// List returns entries whose author scope passes the filter: an entry
	// matches when its branch is in the filter's branch set or its company
	// matches and it has no branch.
	List(ctx context.Context, f authz.Filter, query string, sort page.Sort, cur page.Cursor) ([]*Entry, bool, error)
	Delete(ctx context.Context, id string) error
}

// Service implements log operations. Role allow-lists for reading and the
// admin-only write guard live at the route layer.
type Service struct {
	store    Store
	enforcer *authz.Enforcer
	now      func() time.Time
}

// NewService constructs the log service.
func NewService(store Store, enforcer *authz.Enforcer) (*Service, error) {
	if store == nil {
		return nil, errors.New("oplog: store is required")
	}
	if enforcer == nil {
		return nil, errors.New("oplog: enforcer is required")
	}
	return &Service{store: store, enforcer: enforcer, now: time.Now}, nil
}

// Input is the payload for recording a log entry.
type Input struct {
	LogType  string         `json:"log_type"`
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Meta     map[string]any `json:"meta"`
}

// Create records an entry authored by the principal, stamped with the
// author's scope.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Entry, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, fmt.Errorf("%w: message is required", auth.ErrInvalidInput)
	}
	severity := strings.ToLower(strings.TrimSpace(in.Severity))
	switch severity {
	case "":
		severity = SeverityInfo
	case SeverityInfo, SeverityWarning, SeverityError:
	default:
		return nil, fmt.Errorf("%w: unknown severity %q", auth.ErrInvalidInput, in.Severity)
	}

	scope := authz.ScopeOf(p)
	e := &Entry{
		ID:        ids.New(),
		UserID:    p.SubjectID(),
		CompanyID: scope.CompanyID,
		BranchID:  scope.BranchID,
		LogType:   strings.TrimSpace(in.LogType),
		Severity:  severity,
		Message:   msg,
		Meta:      in.Meta,
		CreatedAt: s.now().UTC(),
	}
	if e.LogType == "" {
		e.LogType = "general"
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the entries visible to the principal under author scoping.
func (s *Service) List(ctx context.Context, p auth.Principal, query string, sort page.Sort, cur page.Cursor) ([]*Entry, bool, error) {
	f, err := s.enforcer.FilterFor(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return s.store.List(ctx, f, query, sort, cur)
}

// Delete removes an entry. Only reachable by admin routes, so no scope
// re-check is needed beyond existence.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Find(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
