package domain

import "time"

// Link represents a shortened URL
type Link struct {
	ID             int64      `json:"id"`
	OriginalURL    string     `json:"original_url"`
	ShortCode      string     `json:"short_code"`
	ShortURL       string     `json:"short_url,omitempty"`
	OwnerID        *int64     `json:"owner_id,omitempty"`
	ClickCount     int64      `json:"click_count"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	Active         bool       `json:"active"`
}

// OwnedBy reports whether the link belongs to the given user.
func (l *Link) OwnedBy(userID int64) bool {
	return l.OwnerID != nil && *l.OwnerID == userID
}

// LinkFilter narrows admin listings.
type LinkFilter struct {
	Search string
	Limit  int
	Offset int
}

// AdminLink is a link row joined with its owner's email for the admin views.
type AdminLink struct {
	Link
	OwnerEmail string `json:"owner_email,omitempty"`
}
