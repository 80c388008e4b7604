package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
)

const linkColumns = `id, original_url, short_code, owner_id, click_count, created_at, last_accessed_at, active`

func scanLink(row rowScanner, extra ...any) (*domain.Link, error) {
	var (
		l            domain.Link
		owner        sql.NullInt64
		createdAt    nullTime
		lastAccessed nullTime
	)
	dest := append([]any{&l.ID, &l.OriginalURL, &l.ShortCode, &owner, &l.ClickCount, &createdAt, &lastAccessed, &l.Active}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	l.OwnerID = idPtr(owner)
	l.CreatedAt = createdAt.Time
	l.LastAccessedAt = lastAccessed.ptr()
	return &l, nil
}

func (s *Store) queryLinks(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *Store) findLink(ctx context.Context, query string, args ...any) (*domain.Link, error) {
	l, err := scanLink(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (s *Store) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	return s.findLink(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = ? AND active = 1`, code)
}

// ExistsByCode checks every row, soft-deleted ones included, so a retired code
// is never handed out again.
func (s *Store) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links WHERE short_code = ?`, code).Scan(&n)
	return n > 0, err
}

func (s *Store) InsertLink(ctx context.Context, link *domain.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO links (original_url, short_code, owner_id, click_count, created_at, last_accessed_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.OriginalURL, link.ShortCode, nullableID(link.OwnerID), link.ClickCount,
		s.d.timeArg(link.CreatedAt), s.nullableTime(link.LastAccessedAt), link.Active)
	if err != nil {
		if s.d.uniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	link.ID = id
	return nil
}

// IncrementClickAndTouch is a single UPDATE so concurrent clicks never lose increments.
func (s *Store) IncrementClickAndTouch(ctx context.Context, linkID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE links SET click_count = click_count + 1, last_accessed_at = ? WHERE id = ?`,
		s.d.timeArg(at), linkID)
	return err
}

func (s *Store) InsertClickEvent(ctx context.Context, e *domain.ClickEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO click_events (link_id, ip_address, user_agent, referrer, browser, os, device_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LinkID, e.IPAddress, e.UserAgent, e.Referrer, e.Browser, e.OS, e.DeviceType, s.d.timeArg(e.CreatedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.Link, error) {
	return s.findLink(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE owner_id = ? AND active = 1
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
}

func searchClause(search string) (string, []any) {
	if search == "" {
		return "", nil
	}
	like := "%" + search + "%"
	return ` WHERE (l.original_url LIKE ? OR l.short_code LIKE ?)`, []any{like, like}
}

// ListAll pages through every link, soft-deleted ones included, with the owner's email.
func (s *Store) ListAll(ctx context.Context, filter domain.LinkFilter) ([]domain.AdminLink, error) {
	where, args := searchClause(filter.Search)
	query := `SELECT l.id, l.original_url, l.short_code, l.owner_id, l.click_count, l.created_at, l.last_accessed_at, l.active,
			COALESCE(u.email, '')
		FROM links l LEFT JOIN users u ON u.id = l.owner_id` + where + `
		ORDER BY l.created_at DESC, l.id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	where, args := searchClause(search)
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links l`+where, args...).Scan(&n)
	return n, err
}

func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE links SET active = 0 WHERE id = ?`, id)
	return err
}

// Dump returns every link for export.
func (s *Store) Dump(ctx context.Context) ([]domain.Link, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY id`)
}

func (s *Store) nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.d.timeArg(*t)
}
