package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
)

const userColumns = `id, email, password_hash, role, created_at, last_login`

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt nullTime
		lastLogin nullTime
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &createdAt, &lastLogin); err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt.Time
	u.LastLogin = lastLogin.ptr()
	return &u, nil
}

func (s *Store) findUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		user.Email, user.PasswordHash, user.Role, s.d.timeArg(user.CreatedAt))
	if err != nil {
		if s.d.uniqueViolation(err) {
			return domain.ErrUserExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, s.d.timeArg(at), id)
	return err
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// DeleteUser removes the account and detaches its links in one transaction.
// SQLite only honours ON DELETE SET NULL with foreign_keys enabled, so the
// detach is explicit.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE links SET owner_id = NULL WHERE owner_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
