package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/meter"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

var _ meter.Store = (*meterStore)(nil)

func (s *Store) Meters() meter.Store { return (*meterStore)(s) }

type meterStore Store

const meterColumns = `id, branch_id, name, name_digest, installed_at, created_at, updated_at`

func scanMeter(row interface{ Scan(...any) error }) (*meter.Meter, error) {
	var (
		m         meter.Meter
		installed sql.NullTime
	)
	err := row.Scan(&m.ID, &m.BranchID, &m.Name, &m.NameDigest, &installed, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if installed.Valid {
		m.InstalledAt = installed.Time
	}
	return &m, nil
}

func (s *meterStore) Create(ctx context.Context, m *meter.Meter) error {
	if m.ID == "" {
		m.ID = ids.New()
	}
	// The unique index on name_digest is the dedup check: two racing creates
	// for the same (branch, name) resolve here, loser gets the conflict.
	_, err := s.db.ExecContext(ctx, `
		insert into meters (id, branch_id, name, name_digest, installed_at)
		values ($1, $2, $3, $4, $5)
	`, m.ID, m.BranchID, m.Name, m.NameDigest, nullIfZero(m.InstalledAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: branch does not exist", auth.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *meterStore) Find(ctx context.Context, id string) (*meter.Meter, error) {
	return scanMeter(s.db.QueryRowContext(ctx, `select `+meterColumns+` from meters where id = $1`, id))
}

func (s *meterStore) List(ctx context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*meter.Meter, bool, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if clause := scopeClause(f, "branch_id", &idx, &args); clause != "" {
		where = append(where, clause)
	}
	if query != "" {
		where = append(where, fmt.Sprintf("name ilike $%d", idx))
		args = append(args, "%"+query+"%")
		idx++
	}

	q := `select ` + meterColumns + ` from meters`
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	q += " " + orderClause(srt, map[string]string{"name": "name", "created_at": "created_at", "installed_at": "installed_at"})
	q += " " + limitOffset(cur)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []*meter.Meter
	for rows.Next() {
		m, err := scanMeter(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *meterStore) Update(ctx context.Context, m *meter.Meter) error {
	res, err := s.db.ExecContext(ctx, `
		update meters
		set name = $2, name_digest = $3, installed_at = $4, updated_at = now()
		where id = $1
	`, m.ID, m.Name, m.NameDigest, nullIfZero(m.InstalledAt))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *meterStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from meters where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
