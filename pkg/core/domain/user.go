package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that can own links.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Principal is the authenticated caller of a request. It is carried in the
// request context, never in package state.
type Principal struct {
	UserID int64
	Email  string
	Role   string
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// CanManage reports whether the principal may see analytics for or delete the link.
func (p *Principal) CanManage(l *Link) bool {
	if p == nil || l == nil {
		return false
	}
	return p.IsAdmin() || l.OwnedBy(p.UserID)
}
