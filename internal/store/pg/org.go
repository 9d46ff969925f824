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
	"github.com/Kaseito-dev/Nuoc-HP/internal/org"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

var (
	_ org.CompanyStore = (*companyStore)(nil)
	_ org.BranchStore  = (*branchStore)(nil)
)

func (s *Store) Companies() org.CompanyStore { return (*companyStore)(s) }
func (s *Store) Branches() org.BranchStore   { return (*branchStore)(s) }

type companyStore Store

func scanCompany(row interface{ Scan(...any) error }) (*org.Company, error) {
	var c org.Company
	err := row.Scan(&c.ID, &c.Name, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const companyColumns = `id, name, coalesce(address,''), created_at, updated_at`

func (s *companyStore) Create(ctx context.Context, c *org.Company) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into companies (id, name, address) values ($1, $2, $3)
	`, c.ID, c.Name, nullIfEmpty(c.Address))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *companyStore) Find(ctx context.Context, id string) (*org.Company, error) {
	return scanCompany(s.db.QueryRowContext(ctx, `select `+companyColumns+` from companies where id = $1`, id))
}

func (s *companyStore) FindByName(ctx context.Context, name string) (*org.Company, error) {
	return scanCompany(s.db.QueryRowContext(ctx, `select `+companyColumns+` from companies where name = $1`, name))
}

func (s *companyStore) List(ctx context.Context, query string, srt page.Sort, cur page.Cursor) ([]*org.Company, bool, error) {
	q := `select ` + companyColumns + ` from companies`
	var args []any
	if query != "" {
		q += ` where name ilike $1 or address ilike $1`
		args = append(args, "%"+query+"%")
	}
	q += " " + orderClause(srt, map[string]string{"name": "name", "created_at": "created_at"})
	q += " " + limitOffset(cur)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []*org.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

type branchStore Store

const branchColumns = `id, company_id, name, coalesce(address,''), created_at, updated_at`

func scanBranch(row interface{ Scan(...any) error }) (*org.Branch, error) {
	var b org.Branch
	err := row.Scan(&b.ID, &b.CompanyID, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *branchStore) Create(ctx context.Context, b *org.Branch) error {
	if b.ID == "" {
		b.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into branches (id, company_id, name, address) values ($1, $2, $3, $4)
	`, b.ID, b.CompanyID, b.Name, nullIfEmpty(b.Address))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: company does not exist", auth.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *branchStore) Find(ctx context.Context, id string) (*org.Branch, error) {
	return scanBranch(s.db.QueryRowContext(ctx, `select `+branchColumns+` from branches where id = $1`, id))
}

// scopeClause renders the filter as SQL against the given column. A non-All
// filter with no branch ids matches nothing.
func scopeClause(f authz.Filter, column string, idx *int, args *[]any) string {
	if f.All {
		return ""
	}
	if len(f.BranchIDs) == 0 {
		return "false"
	}
	clause := fmt.Sprintf("%s in (%s)", column, placeholders(*idx, len(f.BranchIDs)))
	for _, id := range f.BranchIDs {
		*args = append(*args, id)
	}
	*idx += len(f.BranchIDs)
	return clause
}

func (s *branchStore) List(ctx context.Context, f authz.Filter, query string, srt page.Sort, cur page.Cursor) ([]*org.Branch, bool, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if clause := scopeClause(f, "id", &idx, &args); clause != "" {
		where = append(where, clause)
	}
	if query != "" {
		where = append(where, fmt.Sprintf("(name ilike $%d or address ilike $%d)", idx, idx))
		args = append(args, "%"+query+"%")
		idx++
	}

	q := `select ` + branchColumns + ` from branches`
	if len(where) > 0 {
		q += " where " + strings.Join(where, " and ")
	}
	q += " " + orderClause(srt, map[string]string{"name": "name", "created_at": "created_at"})
	q += " " + limitOffset(cur)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []*org.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *branchStore) Update(ctx context.Context, id string, upd org.BranchUpdate) (*org.Branch, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Address != nil {
		sets = append(sets, fmt.Sprintf("address = nullif($%d,'')", idx))
		args = append(args, *upd.Address)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update branches set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if aff == 0 {
			return nil, auth.ErrNotFound
		}
	}
	return s.Find(ctx, id)
}

func (s *branchStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from branches where id = $1`, id)
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

func (s *branchStore) IDsByCompany(ctx context.Context, companyID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id from branches where company_id = $1 order by id
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
