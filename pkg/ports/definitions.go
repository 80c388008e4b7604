package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/linkshort/pkg/core/domain"
)

// LinkRepository defines storage operations for links and their click events.
// Uniqueness of short_code is enforced by the store itself; InsertLink returns
// domain.ErrDuplicateCode when the constraint rejects a row.
type LinkRepository interface {
	FindActiveByCode(ctx context.Context, code string) (*domain.Link, error)
	ExistsByCode(ctx context.Context, code string) (bool, error) // Includes soft-deleted rows
	InsertLink(ctx context.Context, link *domain.Link) error
	IncrementClickAndTouch(ctx context.Context, linkID int64, at time.Time) error
	InsertClickEvent(ctx context.Context, event *domain.ClickEvent) error

	FindByID(ctx context.Context, id int64) (*domain.Link, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error)
	ListAll(ctx context.Context, filter domain.LinkFilter) ([]domain.AdminLink, error)
	CountAll(ctx context.Context, search string) (int64, error)
	SoftDelete(ctx context.Context, id int64) error
	Dump(ctx context.Context) ([]domain.Link, error) // For migration

	// Stats
	LinkSummary(ctx context.Context, now time.Time) (*domain.LinkSummary, error)
	TopLinks(ctx context.Context, limit int) ([]domain.Link, error)
	DailyClicks(ctx context.Context, linkID int64, since time.Time) ([]domain.DailyClick, error) // linkID 0 means all links
	Breakdown(ctx context.Context, linkID int64, dim domain.Dimension, limit int) ([]domain.Bucket, error)
	PruneClickEvents(ctx context.Context, before time.Time) (int64, error)
}

// UserRepository defines storage operations for accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error // domain.ErrUserExists on duplicate email
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id int64) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	UserSummary(ctx context.Context, now time.Time) (*domain.UserSummary, error)
}

// Store is a single relational backend serving both repositories.
type Store interface {
	LinkRepository
	UserRepository
	Close() error
}

// ShortenRequest is the input to link allocation.
type ShortenRequest struct {
	OriginalURL string
	CustomCode  string
	OwnerID     *int64
}

// LinkService defines the business logic operations
type LinkService interface {
	Shorten(ctx context.Context, req ShortenRequest) (*domain.Link, error)
	Resolve(ctx context.Context, code string, client domain.ClientInfo) (string, error)
	Lookup(ctx context.Context, code string) (*domain.Link, error)

	PublicStats(ctx context.Context, code string) (*domain.Link, error)
	ListMine(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Link, error)
	Delete(ctx context.Context, id int64, caller *domain.Principal) error
	Analytics(ctx context.Context, code string, caller *domain.Principal, days int) (*domain.LinkAnalytics, error)
}

// AdminService defines the operations behind the admin dashboard.
type AdminService interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	GlobalAnalytics(ctx context.Context, days int) (*domain.GlobalAnalytics, error)
	ListLinks(ctx context.Context, page, limit int, search string) ([]domain.AdminLink, int64, error)
	DeleteLink(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, page, limit int) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ExportLinks(ctx context.Context) ([]domain.Link, error)
}

// AuthService issues and verifies credentials.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	LoginExternal(ctx context.Context, email string) (*domain.User, string, error)
	Profile(ctx context.Context, userID int64) (*domain.User, error)
	IssueToken(user *domain.User) (string, time.Time, error)
	ParseToken(token string) (*domain.Principal, error)
	Authenticate(ctx context.Context, token string) (*domain.Principal, error)
}

// RateLimiter counts hits per key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, scope, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}
