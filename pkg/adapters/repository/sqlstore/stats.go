package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
)

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
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(click_count), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM links`,
		s.d.timeArg(startOfDay(now)), s.d.timeArg(now.AddDate(0, 0, -7)),
	).Scan(&sum.TotalLinks, &sum.ActiveLinks, &sum.TotalClicks, &sum.LinksToday, &sum.LinksWeek)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Store) UserSummary(ctx context.Context, now time.Time) (*domain.UserSummary, error) {
	var sum domain.UserSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN role = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM users`,
		domain.RoleAdmin, s.d.timeArg(startOfDay(now)), s.d.timeArg(now.AddDate(0, 0, -7)),
	).Scan(&sum.TotalUsers, &sum.AdminUsers, &sum.UsersToday, &sum.UsersWeek)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *Store) TopLinks(ctx context.Context, limit int) ([]domain.Link, error) {
	return s.queryLinks(ctx,
		`SELECT `+linkColumns+` FROM links WHERE active = 1 ORDER BY click_count DESC, id ASC LIMIT ?`, limit)
}

// DailyClicks buckets click events per UTC day, newest first. linkID 0 covers every link.
func (s *Store) DailyClicks(ctx context.Context, linkID int64, since time.Time) ([]domain.DailyClick, error) {
	day := s.d.dayExpr("created_at")
	query := `SELECT ` + day + ` AS day, COUNT(*), COUNT(DISTINCT ip_address), COUNT(DISTINCT link_id)
		FROM click_events WHERE created_at >= ?`
	args := []any{s.d.timeArg(since)}
	if linkID != 0 {
		query += ` AND link_id = ?`
		args = append(args, linkID)
	}
	query += ` GROUP BY day ORDER BY day DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expr+` AS label, COUNT(*) AS hits FROM click_events WHERE link_id = ?
		 GROUP BY label ORDER BY hits DESC, label ASC LIMIT ?`, linkID, limit)
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

// PruneClickEvents deletes events recorded before the cutoff. Link counters are left alone.
func (s *Store) PruneClickEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM click_events WHERE created_at < ?`, s.d.timeArg(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
