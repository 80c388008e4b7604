package services

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/metrics"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

func newTestLinkService(store *fakeStore) *LinkService {
	return NewLinkService(store, LinkOptions{
		BaseURL:        "https://sho.rt",
		CodeLength:     6,
		MaxAttempts:    10,
		BlockedDomains: []string{"localhost", "127.0.0.1", "0.0.0.0"},
	}, nil, metrics.New())
}

// sequence returns a generator that yields codes in order, then repeats the last.
func sequence(codes ...string) func(int) (string, error) {
	var mu sync.Mutex
	i := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func TestShortenGeneratesCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)

	link, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: "https://example.com/page"})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]{6}$`), link.ShortCode)
	assert.Equal(t, "https://sho.rt/"+link.ShortCode, link.ShortURL)
	assert.Equal(t, int64(0), link.ClickCount)
	assert.True(t, link.Active)
	assert.Nil(t, link.OwnerID)
	assert.False(t, link.CreatedAt.IsZero())

	found, err := store.FindActiveByCode(context.Background(), link.ShortCode)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "https://example.com/page", found.OriginalURL)
}

func TestShortenKeepsOwner(t *testing.T) {
	svc := newTestLinkService(newFakeStore())
	owner := int64(42)

	link, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: "https://example.com", OwnerID: &owner})
	require.NoError(t, err)
	require.NotNil(t, link.OwnerID)
	assert.Equal(t, owner, *link.OwnerID)
}

func TestShortenSameURLTwiceMintsTwoCodes(t *testing.T) {
	svc := newTestLinkService(newFakeStore())
	ctx := context.Background()

	a, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	b, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ShortCode, b.ShortCode)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestShortenRejectsInvalidURL(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)

	for _, raw := range []string{
		"",
		"ftp://example.com",
		"http://localhost",
		"https://LOCALHOST:8443/x",
		"http://127.0.0.1/admin",
		"not-a-url",
		"javascript:alert(1)",
		"https:///path-only",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: raw})
			assert.ErrorIs(t, err, domain.ErrInvalidURL)
		})
	}
	assert.Zero(t, store.insertCalls)
}

func TestShortenCustomCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "abc", link.ShortCode)
	assert.Equal(t, "https://sho.rt/abc", link.ShortURL)

	_, err = svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://other.example", CustomCode: "abc"})
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyTaken)
}

func TestShortenInvalidCustomCode(t *testing.T) {
	svc := newTestLinkService(newFakeStore())

	for _, code := range []string{"ab", "has-dash", "with space", "abcdefghijklmnopqrstu", "API", "admin", "héllo"} {
		t.Run(code, func(t *testing.T) {
			_, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: code})
			assert.ErrorIs(t, err, domain.ErrInvalidCustomCode)
		})
	}
}

func TestShortenCustomCodeLosesInsertRace(t *testing.T) {
	store := newFakeStore()
	store.racedCodes["promo"] = true
	svc := newTestLinkService(store)

	_, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "promo"})
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyTaken)
}

func TestShortenCustomCodeOfDeletedLinkStaysReserved(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "gone"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(ctx, link.ID))

	_, err = svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "gone"})
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyTaken)
}

func TestShortenRegeneratesOnCollision(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	_, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "taken1"})
	require.NoError(t, err)

	// first candidate exists, second loses the insert race, third is free
	store.racedCodes["raced1"] = true
	svc.generate = sequence("taken1", "raced1", "free01")

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, "free01", link.ShortCode)
}

func TestShortenAllocationExhausted(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	_, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "always"})
	require.NoError(t, err)
	store.existsCalls = 0

	svc.generate = sequence("always")
	_, err = svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com"})
	assert.ErrorIs(t, err, domain.ErrAllocationExhausted)
	assert.Equal(t, 10, store.existsCalls)
}

func TestShortenConcurrentCodesAreDistinct(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	// a tiny code space forces collisions between goroutines
	svc.opts.CodeLength = 2
	svc.opts.MaxAttempts = 1000

	const n = 50
	var wg sync.WaitGroup
	codes := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: fmt.Sprintf("https://example.com/%d", i)})
			errs[i] = err
			if err == nil {
				codes[i] = link.ShortCode
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[codes[i]], "duplicate code %s", codes[i])
		seen[codes[i]] = true
	}
	assert.Len(t, seen, n)
}

func TestResolveRecordsClick(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()
	svc.generate = sequence("aZ3kq9")

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, "aZ3kq9", link.ShortCode)
	assert.Equal(t, int64(0), link.ClickCount)

	target, err := svc.Resolve(ctx, "aZ3kq9", domain.ClientInfo{
		IPAddress: "203.0.113.7",
		UserAgent: chromeWindowsUA,
		Referrer:  "https://news.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", target)

	stored, _ := store.FindByID(ctx, link.ID)
	assert.Equal(t, int64(1), stored.ClickCount)
	assert.NotNil(t, stored.LastAccessedAt)

	events := store.eventsFor(link.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "Chrome", events[0].Browser)
	assert.Equal(t, "Windows", events[0].OS)
	assert.Equal(t, "Desktop", events[0].DeviceType)
	assert.Equal(t, "203.0.113.7", events[0].IPAddress)
	assert.Equal(t, "https://news.example", events[0].Referrer)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestResolveConcurrentIncrements(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "hot"})
	require.NoError(t, err)
	store.links[link.ID].ClickCount = 5

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			target, err := svc.Resolve(ctx, "hot", domain.ClientInfo{UserAgent: chromeWindowsUA})
			assert.NoError(t, err)
			assert.Equal(t, "https://example.com", target)
		}()
	}
	wg.Wait()

	stored, _ := store.FindByID(ctx, link.ID)
	assert.Equal(t, int64(15), stored.ClickCount)
	assert.Len(t, store.eventsFor(link.ID), 10)
}

func TestResolveSurvivesAnalyticsFailure(t *testing.T) {
	store := newFakeStore()
	rec := metrics.New()
	svc := NewLinkService(store, LinkOptions{BaseURL: "https://sho.rt"}, nil, rec)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "flaky"})
	require.NoError(t, err)

	store.eventErr = errStoreDown
	target, err := svc.Resolve(ctx, "flaky", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)

	stored, _ := store.FindByID(ctx, link.ID)
	assert.Equal(t, int64(1), stored.ClickCount)
	assert.Empty(t, store.eventsFor(link.ID))

	store.incrementErr = errStoreDown
	target, err = svc.Resolve(ctx, "flaky", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", target)
}

func TestResolveNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)

	_, err := svc.Resolve(context.Background(), "doesNotExist", domain.ClientInfo{UserAgent: chromeWindowsUA})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, store.events)
}

func TestResolveInactiveLink(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "bye"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(ctx, link.ID))

	_, err = svc.Resolve(ctx, "bye", domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, _ := store.FindByID(ctx, link.ID)
	assert.Zero(t, stored.ClickCount)
	assert.Empty(t, store.eventsFor(link.ID))
}

func TestResolvePropagatesLookupError(t *testing.T) {
	store := newFakeStore()
	store.lookupErr = errStoreDown
	svc := newTestLinkService(store)

	_, err := svc.Resolve(context.Background(), "abc", domain.ClientInfo{})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestResolveIgnoresCancelledRequest(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)

	link, err := svc.Shorten(context.Background(), ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "late"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Resolve(ctx, "late", domain.ClientInfo{})
	require.NoError(t, err)
	assert.Len(t, store.eventsFor(link.ID), 1)
}

func TestDeleteLink(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()
	owner := int64(7)

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", OwnerID: &owner})
	require.NoError(t, err)

	err = svc.Delete(ctx, link.ID, &domain.Principal{UserID: 8, Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = svc.Delete(ctx, link.ID, &domain.Principal{UserID: owner, Role: domain.RoleUser})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, link.ShortCode, domain.ClientInfo{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = svc.Delete(ctx, link.ID, &domain.Principal{UserID: owner})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminCanDeleteAnyLink(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com"})
	require.NoError(t, err)
	assert.NoError(t, svc.Delete(ctx, link.ID, &domain.Principal{UserID: 1, Role: domain.RoleAdmin}))
}

func TestListMineAndPublicStats(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()
	owner := int64(3)

	for i := 0; i < 3; i++ {
		_, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: fmt.Sprintf("https://example.com/%d", i), OwnerID: &owner})
		require.NoError(t, err)
	}
	_, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com/anon", CustomCode: "anon"})
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
	for _, l := range mine {
		assert.Equal(t, "https://sho.rt/"+l.ShortCode, l.ShortURL)
	}

	stats, err := svc.PublicStats(ctx, mine[0].ShortCode)
	require.NoError(t, err)
	assert.Nil(t, stats.OwnerID)
	assert.Equal(t, mine[0].OriginalURL, stats.OriginalURL)

	_, err = svc.PublicStats(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAnalytics(t *testing.T) {
	store := newFakeStore()
	svc := newTestLinkService(store)
	ctx := context.Background()
	owner := int64(9)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	link, err := svc.Shorten(ctx, ports.ShortenRequest{OriginalURL: "https://example.com", CustomCode: "stats", OwnerID: &owner})
	require.NoError(t, err)

	for _, c := range []domain.ClientInfo{
		{IPAddress: "1.1.1.1", UserAgent: chromeWindowsUA},
		{IPAddress: "1.1.1.1", UserAgent: chromeWindowsUA, Referrer: "https://t.co"},
		{IPAddress: "2.2.2.2", UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) Mobile/15E148 Safari/604.1"},
	} {
		_, err := svc.Resolve(ctx, "stats", c)
		require.NoError(t, err)
	}

	_, err = svc.Analytics(ctx, "stats", &domain.Principal{UserID: 10}, 30)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	report, err := svc.Analytics(ctx, "stats", &domain.Principal{UserID: owner}, 0)
	require.NoError(t, err)
	assert.Equal(t, link.ID, report.Link.ID)
	require.Len(t, report.Daily, 1)
	assert.Equal(t, "2026-03-10", report.Daily[0].Date)
	assert.Equal(t, int64(3), report.Daily[0].Clicks)
	assert.Equal(t, int64(2), report.Daily[0].UniqueVisitors)
	assert.Equal(t, domain.Bucket{Label: "Chrome", Count: 2}, report.Browsers[0])
	assert.Equal(t, domain.Bucket{Label: "Desktop", Count: 2}, report.Devices[0])
	assert.Equal(t, domain.Bucket{Label: "Direct", Count: 2}, report.Referrers[0])
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, 30, clampDays(0))
	assert.Equal(t, 7, clampDays(7))
	assert.Equal(t, 365, clampDays(9999))
}
