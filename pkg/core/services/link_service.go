package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/core/useragent"
	"github.com/wadjakorntonsri/linkshort/pkg/logging"
	"github.com/wadjakorntonsri/linkshort/pkg/metrics"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const (
	DefaultCodeLength  = 6
	DefaultMaxAttempts = 10

	// Click recording runs on a context detached from the request so a client
	// hanging up mid-redirect does not drop the event.
	recordTimeout = 5 * time.Second
)

// LinkOptions configures allocation.
type LinkOptions struct {
	BaseURL        string
	CodeLength     int
	MaxAttempts    int
	BlockedDomains []string
}

type LinkService struct {
	repo    ports.LinkRepository
	logger  *logging.Logger
	metrics *metrics.Recorder
	opts    LinkOptions

	generate func(length int) (string, error)
	now      func() time.Time
}

func NewLinkService(repo ports.LinkRepository, opts LinkOptions, logger *logging.Logger, rec *metrics.Recorder) *LinkService {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &LinkService{
		repo:     repo,
		logger:   logger,
		metrics:  rec,
		opts:     opts,
		generate: generateShortCode,
		now:      time.Now,
	}
}

// Shorten allocates a code for req.OriginalURL and persists the link. Every
// call mints a new link; the same URL is never looked up first.
func (s *LinkService) Shorten(ctx context.Context, req ports.ShortenRequest) (*domain.Link, error) {
	if err := ValidateURL(req.OriginalURL, s.opts.BlockedDomains); err != nil {
		s.logger.Debug(ctx, "url validation", "valid", false)
		return nil, err
	}

	if req.CustomCode != "" {
		return s.shortenCustom(ctx, req)
	}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		code, err := s.generate(s.opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate short code: %w", err)
		}

		taken, err := s.repo.ExistsByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			s.metrics.AllocationRetry()
			continue
		}

		link := s.newLink(req, code)
		err = s.repo.InsertLink(ctx, link)
		if errors.Is(err, domain.ErrDuplicateCode) {
			// Lost the race between the existence check and the insert.
			s.metrics.AllocationRetry()
			s.logger.Debug(ctx, "short code collided on insert", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.created(ctx, link), nil
	}

	s.logger.Warn(ctx, "short code allocation exhausted", "attempts", s.opts.MaxAttempts)
	return nil, domain.ErrAllocationExhausted
}

func (s *LinkService) shortenCustom(ctx context.Context, req ports.ShortenRequest) (*domain.Link, error) {
	if err := ValidateCustomCode(req.CustomCode); err != nil {
		return nil, err
	}

	taken, err := s.repo.ExistsByCode(ctx, req.CustomCode)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrCodeAlreadyTaken
	}

	link := s.newLink(req, req.CustomCode)
	if err := s.repo.InsertLink(ctx, link); err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			return nil, domain.ErrCodeAlreadyTaken
		}
		return nil, err
	}
	return s.created(ctx, link), nil
}

func (s *LinkService) newLink(req ports.ShortenRequest, code string) *domain.Link {
	return &domain.Link{
		OriginalURL: req.OriginalURL,
		ShortCode:   code,
		OwnerID:     req.OwnerID,
		ClickCount:  0,
		CreatedAt:   s.now().UTC(),
		Active:      true,
	}
}

func (s *LinkService) created(ctx context.Context, link *domain.Link) *domain.Link {
	s.withShortURL(link)
	s.metrics.LinkCreated()
	s.logger.LogLinkOperation(ctx, "create", link.ShortCode, true)
	return link
}

func (s *LinkService) withShortURL(link *domain.Link) {
	link.ShortURL = s.opts.BaseURL + "/" + link.ShortCode
}

// Resolve returns the target of an active code and records the click. Storage
// errors during the lookup propagate; click recording never fails the call.
func (s *LinkService) Resolve(ctx context.Context, code string, client domain.ClientInfo) (string, error) {
	link, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if link == nil {
		s.metrics.Redirect(false)
		return "", domain.ErrNotFound
	}
	s.metrics.Redirect(true)

	s.recordClick(ctx, link, client)
	return link.OriginalURL, nil
}

// recordClick is best-effort: failures are logged and counted, never returned.
// The counter increment and the event insert are independent writes.
func (s *LinkService) recordClick(ctx context.Context, link *domain.Link, client domain.ClientInfo) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	now := s.now().UTC()
	if err := s.repo.IncrementClickAndTouch(ctx, link.ID, now); err != nil {
		s.metrics.AnalyticsFailure(metrics.StageCounter)
		s.logger.Error(ctx, "click counter update failed", "code", link.ShortCode, "error", err)
	}

	profile := useragent.Classify(client.UserAgent)
	event := &domain.ClickEvent{
		LinkID:     link.ID,
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
		Referrer:   client.Referrer,
		Browser:    profile.Browser,
		OS:         profile.OS,
		DeviceType: profile.DeviceType,
		CreatedAt:  now,
	}
	if err := s.repo.InsertClickEvent(ctx, event); err != nil {
		s.metrics.AnalyticsFailure(metrics.StageEvent)
		s.logger.Error(ctx, "click event insert failed", "code", link.ShortCode, "error", err)
	}
}

// Lookup resolves an active code without recording anything.
func (s *LinkService) Lookup(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.repo.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, domain.ErrNotFound
	}
	s.withShortURL(link)
	return link, nil
}

func (s *LinkService) PublicStats(ctx context.Context, code string) (*domain.Link, error) {
	link, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	// Owner identity is not public.
	link.OwnerID = nil
	return link, nil
}

func (s *LinkService) ListMine(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error) {
	limit, offset = clampPage(limit, offset)
	links, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range links {
		s.withShortURL(&links[i])
	}
	return links, nil
}

// Delete soft-deletes a link owned by caller (or any link for an admin).
func (s *LinkService) Delete(ctx context.Context, id int64, caller *domain.Principal) error {
	link, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if link == nil || !link.Active {
		return domain.ErrNotFound
	}
	if !caller.CanManage(link) {
		return domain.ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.LogLinkOperation(ctx, "delete", link.ShortCode, true)
	return nil
}

func (s *LinkService) Analytics(ctx context.Context, code string, caller *domain.Principal, days int) (*domain.LinkAnalytics, error) {
	link, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(link) {
		return nil, domain.ErrForbidden
	}
	return buildLinkAnalytics(ctx, s.repo, link, clampDays(days), s.now())
}

func clampPage(limit, offset int) (int, int) {
	if limit < 1 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

var _ ports.LinkService = (*LinkService)(nil)
