package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kaseito-dev/Nuoc-HP/internal/auth"
	"github.com/Kaseito-dev/Nuoc-HP/internal/ids"
	"github.com/Kaseito-dev/Nuoc-HP/internal/page"
)

var _ auth.Store = (*Store)(nil)

func (s *Store) Users() auth.UserStore               { return (*userStore)(s) }
func (s *Store) Roles() auth.RoleStore               { return (*roleStore)(s) }
func (s *Store) Permissions() auth.PermissionStore   { return (*permissionStore)(s) }
func (s *Store) RevokedTokens() auth.RevocationStore { return (*revocationStore)(s) }

type userStore Store

const userColumns = `id, username, password_hash, coalesce(role_id,''), coalesce(company_id,''), coalesce(branch_id,''), is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.RoleID, &u.CompanyID, &u.BranchID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, username, password_hash, role_id, company_id, branch_id, is_active)
		values ($1, $2, $3, nullif($4,''), nullif($5,''), nullif($6,''), $7)
	`, u.ID, u.Username, u.PasswordHash, u.RoleID, u.CompanyID, u.BranchID, u.IsActive)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return fmt.Errorf("%w: referenced row does not exist", auth.ErrInvalidInput)
			}
		}
		return err
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where username = $1`, username))
}

func (s *userStore) List(ctx context.Context, f auth.UserFilter, srt page.Sort, cur page.Cursor) ([]*auth.User, bool, error) {
	var (
		where []string
		args  []any
		idx   = 1
	)
	if f.CompanyID != "" {
		clause := fmt.Sprintf("company_id = $%d", idx)
		args = append(args, f.CompanyID)
		idx++
		if len(f.BranchIDs) > 0 {
			clause = fmt.Sprintf("(%s or branch_id in (%s))", clause, placeholders(idx, len(f.BranchIDs)))
			for _, id := range f.BranchIDs {
				args = append(args, id)
			}
			idx += len(f.BranchIDs)
		}
		where = append(where, clause)
	}
	if f.Query != "" {
		where = append(where, fmt.Sprintf("username ilike $%d", idx))
		args = append(args, "%"+f.Query+"%")
		idx++
	}

	query := `select ` + userColumns + ` from users`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " " + orderClause(srt, map[string]string{"username": "username", "created_at": "created_at"})
	query += " " + limitOffset(cur)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, false, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	items, hasNext := page.Trim(out, cur.PageSize)
	return items, hasNext, nil
}

func (s *userStore) Update(ctx context.Context, id string, upd auth.UserUpdate) (*auth.User, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Username != nil {
		sets = append(sets, fmt.Sprintf("username = $%d", idx))
		args = append(args, *upd.Username)
		idx++
	}
	if upd.PasswordHash != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.PasswordHash)
		idx++
	}
	if upd.RoleID != nil {
		sets = append(sets, fmt.Sprintf("role_id = nullif($%d,'')", idx))
		args = append(args, *upd.RoleID)
		idx++
	}
	if upd.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return nil, auth.ErrConflict
			}
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

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
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

type roleStore Store

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into roles (id, name) values ($1, $2)
	`, role.ID, role.Name)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func scanRole(row interface{ Scan(...any) error }) (*auth.Role, error) {
	var role auth.Role
	err := row.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx, `
		select id, name, created_at, updated_at from roles where id = $1
	`, id))
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	return scanRole(s.db.QueryRowContext(ctx, `
		select id, name, created_at, updated_at from roles where name = $1
	`, name))
}

func (s *roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, created_at, updated_at from roles order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

type permissionStore Store

func (s *permissionStore) Ensure(ctx context.Context, perms []auth.Permission) error {
	for _, p := range perms {
		id := p.ID
		if id == "" {
			id = ids.New()
		}
		if _, err := s.db.ExecContext(ctx, `
			insert into permissions (id, key, description)
			values ($1, $2, $3)
			on conflict (key) do nothing
		`, id, p.Key, nullIfEmpty(p.Description)); err != nil {
			return err
		}
	}
	return nil
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, key, coalesce(description,''), created_at from permissions order by key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Permission
	for rows.Next() {
		var p auth.Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *permissionStore) SetForRole(ctx context.Context, roleID string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	// Delete plus reinsert inside one transaction keeps the zero-grant
	// window invisible to resolvers.
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	if len(keys) > 0 {
		args := make([]any, 0, len(keys)+1)
		args = append(args, roleID)
		for _, key := range keys {
			args = append(args, key)
		}
		// Unknown keys are skipped, matching the fail-closed contract.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where key in (%s)
		`, placeholders(2, len(keys))), args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionStore) KeysForRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.key
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.key
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

type revocationStore Store

func (s *revocationStore) Insert(ctx context.Context, tok *auth.RevokedToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into revoked_tokens (jti, subject_id, token_type, expires_at, revoked_at)
		values ($1, $2, $3, $4, $5)
		on conflict (jti) do nothing
	`, tok.JTI, tok.SubjectID, tok.TokenType, tok.ExpiresAt, tok.RevokedAt)
	return err
}

func (s *revocationStore) Find(ctx context.Context, jti string) (*auth.RevokedToken, error) {
	var tok auth.RevokedToken
	err := s.db.QueryRowContext(ctx, `
		select jti, subject_id, token_type, expires_at, revoked_at
		from revoked_tokens where jti = $1
	`, jti).Scan(&tok.JTI, &tok.SubjectID, &tok.TokenType, &tok.ExpiresAt, &tok.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}

func (s *revocationStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from revoked_tokens where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
