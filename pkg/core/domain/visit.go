package domain

import "time"

// ClientInfo is the request context captured when a short link is followed.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	Referrer  string
}

// ClickEvent represents one recorded visit through a short code. Rows are append-only.
type ClickEvent struct {
	ID         int64     `json:"id"`
	LinkID     int64     `json:"link_id"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"device_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// DailyClick is one bucket of a click timeline.
type DailyClick struct {
	Date           string `json:"date"` // YYYY-MM-DD
	Clicks         int64  `json:"clicks"`
	UniqueVisitors int64  `json:"unique_visitors"`
	LinksClicked   int64  `json:"links_clicked,omitempty"`
}

// Bucket is a labelled count, used for browser/os/device/referrer breakdowns.
type Bucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Dimension names a click_events column that can be grouped on.
type Dimension string

const (
	DimensionBrowser  Dimension = "browser"
	DimensionOS       Dimension = "os"
	DimensionDevice   Dimension = "device_type"
	DimensionReferrer Dimension = "referrer"
)

// LinkAnalytics is the per-link analytics report.
type LinkAnalytics struct {
	Link      *Link        `json:"url"`
	Daily     []DailyClick `json:"daily_stats"`
	Browsers  []Bucket     `json:"browser_stats"`
	OS        []Bucket     `json:"os_stats"`
	Devices   []Bucket     `json:"device_stats"`
	Referrers []Bucket     `json:"referrer_stats"`
}

// LinkSummary aggregates the links table.
type LinkSummary struct {
	TotalLinks  int64 `json:"total_urls"`
	ActiveLinks int64 `json:"active_urls"`
	TotalClicks int64 `json:"total_clicks"`
	LinksToday  int64 `json:"urls_today"`
	LinksWeek   int64 `json:"urls_week"`
}

// UserSummary aggregates the users table.
type UserSummary struct {
	TotalUsers int64 `json:"total_users"`
	AdminUsers int64 `json:"admin_users"`
	UsersToday int64 `json:"users_today"`
	UsersWeek  int64 `json:"users_week"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Links    LinkSummary `json:"urls"`
	Users    UserSummary `json:"users"`
	TopLinks []Link      `json:"top_urls"`
}

// GlobalAnalytics is the admin-wide click timeline.
type GlobalAnalytics struct {
	Daily []DailyClick `json:"daily_stats"`
	Links LinkSummary  `json:"url_stats"`
	Users UserSummary  `json:"user_stats"`
}
