package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/authz"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/oplog"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

var _ oplog.Store = (*logStore)(nil)

func (s *Store) Logs() oplog.Store { return (*logStore)(s) }

type logStore Store

const logColumns = `id, user_id, coalesce(company_id,''), coalesce(branch_id,''), log_type, severity, message, meta, created_at`

func scanLog(row interface{ Scan(...any) error }) (*oplog.Entry, error) {
	var (
		e       oplog.Entry
		rawMeta []byte
	)
	err := row.Scan(&e.ID, &e.UserID, &e.CompanyID, &e.BranchID, &e.LogType, &e.Severity, &e.Message, &rawMeta, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(rawMeta) > 0 {
		if err := json.Unmarshal(rawMeta, &e.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return &e, nil
}

func (s *logStore) Create(ctx context.Context, e *oplog.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	metaJSON := []byte("{}")
	if len(e.Meta) > 0 {
		raw, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into oplogs (id, user_id, company_id, branch_id, log_type, severity, message, meta)
		values ($1, $2, nullif($3,''), nullif($4,''), $5, $6, $7, $8)
	`, e.ID, e.UserID, e.CompanyID, e.BranchID, e.LogType, e.Severity, e.Message, metaJSON)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: author does not exist", auth.ErrInvalidInput)
		}
		return err
	}
	return nil
}

func (s *logStore) Find(ctx context.Context, id string) (*oplog.Entry, error) {
	return scanLog(s.db.QueryRowContext(ctx, `select `+logColumns+` from oplogs where id = $1`, id))
}

func (s *logStore) List(ctx context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*oplog.Entry, bool, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if !f.All {
		// Author scoping: entries from the filter's branches, plus
		// company-level entries when the filter carries a company.
		var parts []string
		if len(f.BranchIDs) > 0 {
			parts = append(parts, fmt.Sprintf("branch_id in (%s)", placeholders(idx, len(f.BranchIDs))))
			for _, id := range f.BranchIDs {
				args = append(args, id)
			}
			idx += len(f.BranchIDs)
		}
		if f.CompanyID != "" {
			parts = append(parts, fmt.Sprintf("(branch_id is null and company_id = $%d)", idx))
			args = append(args, f.CompanyID)
			idx++
		}
		if len(parts) == 0 {
			parts = append(parts, "false")
		}
		where = append(where, "("+strings.Join(parts, " or ")+")")
	}
	if query != "" {
		where = append(where, fmt.Sprintf("(message ilike $%d or log_type ilike $%d)", idx, idx))
		args = append(args, "%"+query+"%")
		idx++
	}

	q := `select ` + logColumns + ` from oplogs`
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	q += " " + orderClause(srt, map[string]string{"created_at": "created_at", "severity": "severity"})
	q += " " + limitOffset(cur)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []*oplog.Entry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *logStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from oplogs where id = $1`, id)
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
