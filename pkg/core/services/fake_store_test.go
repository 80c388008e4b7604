package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

var errStoreDown = errors.New("store unavailable")

// fakeStore is an in-memory ports.Store. The mutex stands in for the
// database's row-level atomicity.
type fakeStore struct {
	mu     sync.Mutex
	links  map[int64]*domain.Link
	events []domain.ClickEvent
	users  map[int64]*domain.User
	nextID int64

	// failure injection
	eventErr     error
	incrementErr error
	lookupErr    error
	// codes that ExistsByCode misses but InsertLink rejects, to simulate a race
	racedCodes map[string]bool

	existsCalls int
	insertCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links:      make(map[int64]*domain.Link),
		users:      make(map[int64]*domain.User),
		racedCodes: make(map[string]bool),
	}
}

func (f *fakeStore) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	for _, l := range f.links {
		if l.ShortCode == code && l.Active {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	for _, l := range f.links {
		if l.ShortCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertLink(ctx context.Context, link *domain.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.racedCodes[link.ShortCode] {
		delete(f.racedCodes, link.ShortCode)
		return domain.ErrDuplicateCode
	}
	for _, l := range f.links {
		if l.ShortCode == link.ShortCode {
			return domain.ErrDuplicateCode
		}
	}
	f.nextID++
	link.ID = f.nextID
	cp := *link
	f.links[link.ID] = &cp
	return nil
}

func (f *fakeStore) IncrementClickAndTouch(ctx context.Context, linkID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	if l, ok := f.links[linkID]; ok {
		l.ClickCount++
		t := at
		l.LastAccessedAt = &t
	}
	return nil
}

func (f *fakeStore) InsertClickEvent(ctx context.Context, event *domain.ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.nextID++
	event.ID = f.nextID
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.links[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Link
	for _, l := range f.sortedLinks() {
		if l.OwnedBy(ownerID) && l.Active {
			out = append(out, *l)
		}
	}
	return page(out, limit, offset), nil
}

func (f *fakeStore) ListAll(ctx context.Context, filter domain.LinkFilter) ([]domain.AdminLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AdminLink
	for _, l := range f.sortedLinks() {
		if filter.Search == "" || strings.Contains(l.OriginalURL, filter.Search) || strings.Contains(l.ShortCode, filter.Search) {
			out = append(out, domain.AdminLink{Link: *l})
		}
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (f *fakeStore) CountAll(ctx context.Context, search string) (int64, error) {
	links, _ := f.ListAll(ctx, domain.LinkFilter{Search: search, Limit: 1 << 30})
	return int64(len(links)), nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.links[id]; ok {
		l.Active = false
	}
	return nil
}

func (f *fakeStore) Dump(ctx context.Context) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Link
	for _, l := range f.sortedLinks() {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) LinkSummary(ctx context.Context, now time.Time) (*domain.LinkSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.LinkSummary{}
	for _, l := range f.links {
		s.TotalLinks++
		s.TotalClicks += l.ClickCount
		if l.Active {
			s.ActiveLinks++
		}
		if l.CreatedAt.After(now.Add(-24 * time.Hour)) {
			s.LinksToday++
		}
		if l.CreatedAt.After(now.AddDate(0, 0, -7)) {
			s.LinksWeek++
		}
	}
	return s, nil
}

func (f *fakeStore) TopLinks(ctx context.Context, limit int) ([]domain.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Link
	for _, l := range f.sortedLinks() {
		if l.Active {
			out = append(out, *l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClickCount > out[j].ClickCount })
	return page(out, limit, 0), nil
}

func (f *fakeStore) DailyClicks(ctx context.Context, linkID int64, since time.Time) ([]domain.DailyClick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDay := map[string]*domain.DailyClick{}
	visitors := map[string]map[string]bool{}
	for _, e := range f.events {
		if (linkID != 0 && e.LinkID != linkID) || e.CreatedAt.Before(since) {
			continue
		}
		day := e.CreatedAt.Format("2006-01-02")
		if byDay[day] == nil {
			byDay[day] = &domain.DailyClick{Date: day}
			visitors[day] = map[string]bool{}
		}
		byDay[day].Clicks++
		visitors[day][e.IPAddress] = true
		byDay[day].UniqueVisitors = int64(len(visitors[day]))
	}
	out := []domain.DailyClick{}
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (f *fakeStore) Breakdown(ctx context.Context, linkID int64, dim domain.Dimension, limit int) ([]domain.Bucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int64{}
	for _, e := range f.events {
		if e.LinkID != linkID {
			continue
		}
		var label string
		switch dim {
		case domain.DimensionBrowser:
			label = e.Browser
		case domain.DimensionOS:
			label = e.OS
		case domain.DimensionDevice:
			label = e.DeviceType
		case domain.DimensionReferrer:
			label = e.Referrer
			if label == "" {
				label = "Direct"
			}
		}
		counts[label]++
	}
	out := []domain.Bucket{}
	for k, v := range counts {
		out = append(out, domain.Bucket{Label: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return page(out, limit, 0), nil
}

func (f *fakeStore) PruneClickEvents(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.events[:0]
	var n int64
	for _, e := range f.events {
		if e.CreatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return n, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return domain.ErrUserExists
		}
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		t := at
		u.LastLogin = &t
	}
	return nil
}

func (f *fakeStore) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	for _, l := range f.links {
		if l.OwnedBy(id) {
			l.OwnerID = nil
		}
	}
	return nil
}

func (f *fakeStore) UserSummary(ctx context.Context, now time.Time) (*domain.UserSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &domain.UserSummary{}
	for _, u := range f.users {
		s.TotalUsers++
		if u.Role == domain.RoleAdmin {
			s.AdminUsers++
		}
	}
	return s, nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) sortedLinks() []*domain.Link {
	out := make([]*domain.Link, 0, len(f.links))
	for _, l := range f.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) eventsFor(linkID int64) []domain.ClickEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ClickEvent
	for _, e := range f.events {
		if e.LinkID == linkID {
			out = append(out, e)
		}
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ ports.Store = (*fakeStore)(nil)
