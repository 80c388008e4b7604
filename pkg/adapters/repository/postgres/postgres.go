// Package postgres implements ports.Store on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		id BIGSERIAL PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		click_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_accessed_at TIMESTAMPTZ,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id)`,
	`CREATE TABLE IF NOT EXISTS click_events (
		id BIGSERIAL PRIMARY KEY,
		link_id BIGINT NOT NULL REFERENCES links(id),
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		browser TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_click_events_link_id ON click_events(link_id)`,
	`CREATE INDEX IF NOT EXISTS idx_click_events_created_at ON click_events(created_at)`,
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and creates the schema if needed.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- links ---

const linkColumns = `id, original_url, short_code, owner_id, click_count, created_at, last_accessed_at, active`

func scanLink(row pgx.Row, extra ...any) (*domain.Link, error) {
	var l domain.Link
	dest := append([]any{&l.ID, &l.OriginalURL, &l.ShortCode, &l.OwnerID, &l.ClickCount, &l.CreatedAt, &l.LastAccessedAt, &l.Active}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *Store) findLink(ctx context.Context, query string, args ...any) (*domain.Link, error) {
	l, err := scanLink(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (s *Store) queryLinks(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func (s *Store) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	return s.findLink(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = $1 AND active`, code)
}

func (s *Store) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE short_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (s *Store) InsertLink(ctx context.Context, link *domain.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO links (original_url, short_code, owner_id, click_count, created_at, last_accessed_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		link.OriginalURL, link.ShortCode, link.OwnerID, link.ClickCount, link.CreatedAt, link.LastAccessedAt, link.Active,
	).Scan(&link.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateCode
	}
	return err
}

func (s *Store) IncrementClickAndTouch(ctx context.Context, linkID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE links SET click_count = click_count + 1, last_accessed_at = $2 WHERE id = $1`, linkID, at)
	return err
}

func (s *Store) InsertClickEvent(ctx context.Context, e *domain.ClickEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO click_events (link_id, ip_address, user_agent, referrer, browser, os, device_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		e.LinkID, e.IPAddress, e.UserAgent, e.Referrer, e.Browser, e.OS, e.DeviceType, e.CreatedAt,
	).Scan(&e.ID)
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Link, error) {
	return s.findLink(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = $1 AND active
		 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, ownerID, limit, offset)
}

func (s *Store) ListAll(ctx context.Context, filter domain.LinkFilter) ([]domain.AdminLink, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.original_url, l.short_code, l.owner_id, l.click_count, l.created_at, l.last_accessed_at, l.active,
			COALESCE(u.email, '')
		 FROM links l LEFT JOIN users u ON u.id = l.owner_id
		 WHERE $1 = '' OR l.original_url ILIKE '%' || $1 || '%' OR l.short_code ILIKE '%' || $1 || '%'
		 ORDER BY l.created_at DESC, l.id DESC LIMIT $2 OFFSET $3`,
		filter.Search, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.AdminLink{}
	for rows.Next() {
		var email string
		l, err := scanLink(rows, &email)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.AdminLink{Link: *l, OwnerEmail: email})
	}
	return out, rows.Err()
}

func (s *Store) CountAll(ctx context.Context, search string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM links l
		 WHERE $1 = '' OR l.original_url ILIKE '%' || $1 || '%' OR l.short_code ILIKE '%' || $1 || '%'`,
		search).Scan(&n)
	return n, err
}

func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE links SET active = FALSE WHERE id = $1`, id)
	return err
}

func (s *Store) Dump(ctx context.Context) ([]domain.Link, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

// --- stats ---

var dimensionExpr = map[domain.Dimension]string{
	domain.DimensionBrowser:  "COALESCE(NULLIF(browser, ''), 'Unknown')",
	domain.DimensionOS:       "COALESCE(NULLIF(os, ''), 'Unknown')",
	domain.DimensionDevice:   "COALESCE(NULLIF(device_type, ''), 'Unknown')",
	domain.DimensionReferrer: "COALESCE(NULLIF(referrer, ''), 'Direct')",
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Store) LinkSummary(ctx context.Context, now time.Time) (*domain.LinkSummary, error) {
	var sum domain.LinkSummary
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COALESCE(SUM(click_count), 0)::BIGINT,
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2)
		FROM links`, startOfDay(now), now.AddDate(0, 0, -7),
	).Scan(&sum.TotalLinks, &sum.ActiveLinks, &sum.TotalClicks, &sum.LinksToday, &sum.LinksWeek)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Store) TopLinks(ctx context.Context, limit int) ([]domain.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE active ORDER BY click_count DESC, id ASC LIMIT $1`, limit)
}

func (s *Store) DailyClicks(ctx context.Context, linkID int64, since time.Time) ([]domain.DailyClick, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COUNT(*), COUNT(DISTINCT ip_address), COUNT(DISTINCT link_id)
		FROM click_events
		WHERE created_at >= $1 AND ($2 = 0 OR link_id = $2)
		GROUP BY day ORDER BY day DESC`, since, linkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.DailyClick{}
	for rows.Next() {
		var d domain.DailyClick
		if err := rows.Scan(&d.Date, &d.Clicks, &d.UniqueVisitors, &d.LinksClicked); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Breakdown(ctx context.Context, linkID int64, dim domain.Dimension, limit int) ([]domain.Bucket, error) {
	expr, ok := dimensionExpr[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+expr+` AS label, COUNT(*) AS hits FROM click_events WHERE link_id = $1
		 GROUP BY label ORDER BY hits DESC, label ASC LIMIT $2`, linkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Bucket{}
	for rows.Next() {
		var b domain.Bucket
		if err := rows.Scan(&b.Label, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) PruneClickEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM click_events WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- users ---

const userColumns = `id, email, password_hash, role, created_at, last_login`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.LastLogin); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) findUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	return err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
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

// DeleteUser relies on ON DELETE SET NULL to detach the user's links.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (s *Store) UserSummary(ctx context.Context, now time.Time) (*domain.UserSummary, error) {
	var sum domain.UserSummary
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE role = $1),
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE created_at >= $3)
		FROM users`, domain.RoleAdmin, startOfDay(now), now.AddDate(0, 0, -7),
	).Scan(&sum.TotalUsers, &sum.AdminUsers, &sum.UsersToday, &sum.UsersWeek)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

var _ ports.Store = (*Store)(nil)
