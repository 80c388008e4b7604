package services

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const topLinks = 10

type AdminService struct {
	store   ports.Store
	logger  *logging.Logger
	baseURL string
	now     func() time.Time
}

func NewAdminService(store ports.Store, baseURL string, logger *logging.Logger) *AdminService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AdminService{store: store, logger: logger, baseURL: baseURL, now: time.Now}
}

func (s *AdminService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	now := s.now()
	links, err := s.store.LinkSummary(ctx, now)
	if err != nil {
		return nil, err
	}
	users, err := s.store.UserSummary(ctx, now)
	if err != nil {
		return nil, err
	}
	top, err := s.store.TopLinks(ctx, topLinks)
	if err != nil {
		return nil, err
	}
	for i := range top {
		top[i].ShortURL = s.baseURL + "/" + top[i].ShortCode
	}
	return &domain.Dashboard{Links: *links, Users: *users, TopLinks: top}, nil
}

func (s *AdminService) GlobalAnalytics(ctx context.Context, days int) (*domain.GlobalAnalytics, error) {
	now := s.now()
	daily, err := s.store.DailyClicks(ctx, 0, since(now, clampDays(days)))
	if err != nil {
		return nil, err
	}
	links, err := s.store.LinkSummary(ctx, now)
	if err != nil {
		return nil, err
	}
	users, err := s.store.UserSummary(ctx, now)
	if err != nil {
		return nil, err
	}
	return &domain.GlobalAnalytics{Daily: daily, Links: *links, Users: *users}, nil
}

// ListLinks pages through every link, deleted ones included.
func (s *AdminService) ListLinks(ctx context.Context, page, limit int, search string) ([]domain.AdminLink, int64, error) {
	limit, offset := pageOffset(page, limit)
	links, err := s.store.ListAll(ctx, domain.LinkFilter{Search: search, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAll(ctx, search)
	if err != nil {
		return nil, 0, err
	}
	for i := range links {
		links[i].ShortURL = s.baseURL + "/" + links[i].ShortCode
	}
	return links, total, nil
}

func (s *AdminService) DeleteLink(ctx context.Context, id int64) error {
	link, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if link == nil {
		return domain.ErrNotFound
	}
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.LogLinkOperation(ctx, "admin_delete", link.ShortCode, true)
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, page, limit int) ([]domain.User, error) {
	limit, offset := pageOffset(page, limit)
	return s.store.ListUsers(ctx, limit, offset)
}

// DeleteUser removes a non-admin account. Links it owned stay and become anonymous.
func (s *AdminService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return domain.ErrNotFound
	}
	if user.Role == domain.RoleAdmin {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.LogAuthEvent(ctx, "user_deleted", user.Email, true)
	return nil
}

// ExportLinks returns every link, deleted ones included, with its short URL.
func (s *AdminService) ExportLinks(ctx context.Context) ([]domain.Link, error) {
	links, err := s.store.Dump(ctx)
	if err != nil {
		return nil, err
	}
	for i := range links {
		links[i].ShortURL = s.baseURL + "/" + links[i].ShortCode
	}
	return links, nil
}

// PruneClickEvents deletes click events older than retentionDays. Link counters are untouched.
func (s *AdminService) PruneClickEvents(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 1 {
		retentionDays = 1
	}
	n, err := s.store.PruneClickEvents(ctx, since(s.now(), retentionDays))
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "pruned click events", "deleted", n, "retention_days", retentionDays)
	return n, nil
}

func pageOffset(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	if limit > 10000 {
		limit = 10000
	}
	return limit, (page - 1) * limit
}

var _ ports.AdminService = (*AdminService)(nil)
