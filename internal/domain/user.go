package domain

import (
	"strconv"
	"time"
)

// Profile is the user information carried by an inbound update.
type Profile struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// User is the persisted bot user.
type User struct {
	ID           int64      `db:"id"`
	Username     string     `db:"username"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	LanguageCode string     `db:"language_code"`
	IsPremium    bool       `db:"is_premium"`
	IsAdmin      bool       `db:"is_admin"`
	PremiumSince *time.Time `db:"premium_since"`
	TotalMemes   int        `db:"total_memes"`
	TotalLikes   int        `db:"total_likes"`
	CreatedAt    time.Time  `db:"created_at"`
	LastActivity time.Time  `db:"last_activity"`
}

// DisplayName prefers @username and falls back to the first name or the numeric id.
func (u User) DisplayName() string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return strconv.FormatInt(u.ID, 10)
	}
}

// UserStats aggregates user counters for the admin console.
type UserStats struct {
	Total   int `db:"total"`
	Active  int `db:"active"`
	Premium int `db:"premium"`
}
