package repo

import (
	"context"
	"database/sql"
	"strings"

	"quoteline/internal/domain"
)

const userColumns = `id,email,password_hash,first_name,last_name,role,COALESCE(phone,''),COALESCE(company_name,''),is_active,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.Phone, &u.CompanyName, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.exec(ctx, tx, `INSERT INTO users(id,email,password_hash,first_name,last_name,role,phone,company_name,is_active,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, NormalizeEmail(u.Email), u.PasswordHash, u.FirstName, u.LastName, string(u.Role),
		nullable(u.Phone), nullable(u.CompanyName), u.Active, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.queryRow(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, tx *sql.Tx, email string) (domain.User, error) {
	return scanUser(r.queryRow(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email=?`, NormalizeEmail(email)))
}

// GetUsers loads users by id. Missing ids are absent from the result map.
func (r Repo) GetUsers(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.User, error) {
	res := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.query(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res[u.ID] = u
	}
	return res, rows.Err()
}

type UserFilters struct {
	Role       domain.Role
	ActiveOnly bool
}

func (f UserFilters) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Role != "" {
		conds = append(conds, "role=?")
		args = append(args, string(f.Role))
	}
	if f.ActiveOnly {
		conds = append(conds, "is_active=?")
		args = append(args, true)
	}
	return whereClause(conds), args
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	where, args := f.where()
	rows, err := r.query(ctx, nil, `SELECT `+userColumns+` FROM users`+where+` ORDER BY last_name, first_name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r Repo) CountUsers(ctx context.Context, tx *sql.Tx, f UserFilters) (int, error) {
	where, args := f.where()
	return r.count(ctx, tx, `SELECT COUNT(*) FROM users`+where, args...)
}

func (r Repo) SetUserActive(ctx context.Context, tx *sql.Tx, id string, active bool, updatedAt string) error {
	res, err := r.exec(ctx, tx, `UPDATE users SET is_active=?, updated_at=? WHERE id=?`, active, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
