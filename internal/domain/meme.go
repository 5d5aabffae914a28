// Package domain holds the records, error taxonomy and repository contracts shared by the bot services.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind names the origin of a generated meme.
type Kind string

const (
	// KindAI is a meme rendered from a free-text description.
	KindAI Kind = "ai"
	// KindTemplate is a meme rendered from a named template and caption lines.
	KindTemplate Kind = "template"
	// KindVoice is a meme rendered from a voice message.
	KindVoice Kind = "voice"
)

// ParseKind resolves a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAI, KindTemplate, KindVoice:
		return k, nil
	default:
		return "", fmt.Errorf("unknown meme kind %q", s)
	}
}

// Artifact is a generated meme owned by exactly one user.
type Artifact struct {
	ID               int64      `db:"id"`
	Ref              string     `db:"ref"`
	URL              string     `db:"url"`
	OwnerID          int64      `db:"owner_id"`
	Kind             Kind       `db:"kind"`
	Description      string     `db:"description"`
	TemplateID       string     `db:"template_id"`
	LikeCount        int        `db:"like_count"`
	InContest        bool       `db:"in_contest"`
	ContestEnteredAt *time.Time `db:"contest_entered_at"`
	PublishedToFeed  bool       `db:"published_to_feed"`
	PublishedAt      *time.Time `db:"published_at"`
	CreatedAt        time.Time  `db:"created_at"`
}

// MemeStats aggregates meme counters for the admin console.
type MemeStats struct {
	Total     int `db:"total"`
	Today     int `db:"today"`
	InContest int `db:"in_contest"`
}

// ContestResult records one finished contest cycle.
type ContestResult struct {
	ID             int64     `db:"id"`
	WinnerMemeID   int64     `db:"winner_meme_id"`
	WinnerUserID   int64     `db:"winner_user_id"`
	WinnerRef      string    `db:"-"`
	WinnerLikes    int       `db:"-"`
	Participants   int       `db:"participants"`
	Reason         string    `db:"reason"`
	PremiumGranted bool      `db:"premium_granted"`
	EndedAt        time.Time `db:"ended_at"`
}

// StartOfDayUTC truncates t to midnight of its UTC calendar day.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
