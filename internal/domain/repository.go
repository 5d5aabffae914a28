package domain

import (
	"context"
	"time"
)

// UserRepository persists bot users.
type UserRepository interface {
	// Touch creates the user on first contact and refreshes profile fields and last activity.
	Touch(ctx context.Context, p Profile, at time.Time) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	SetPremium(ctx context.Context, id int64, premium bool, at time.Time) error
	SetAdmin(ctx context.Context, id int64, admin bool) error
	Delete(ctx context.Context, id int64) error
	IncrementMemes(ctx context.Context, id int64) error
	AddLikes(ctx context.Context, id int64, delta int) error
	TopCreators(ctx context.Context, limit int) ([]User, error)
	Premium(ctx context.Context, limit int) ([]User, error)
	InactiveSince(ctx context.Context, since time.Time, limit int) ([]User, error)
	IDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context, activeSince time.Time) (UserStats, error)
}

// MemeRepository persists generated memes.
type MemeRepository interface {
	// Create stores a and assigns its ID.
	Create(ctx context.Context, a *Artifact) error
	ByRef(ctx context.Context, ref string) (Artifact, error)
	ByID(ctx context.Context, id int64) (Artifact, error)
	CountByOwnerKindSince(ctx context.Context, ownerID int64, kind Kind, since time.Time) (int, error)
	// Publish flags an owned meme for the feed; ErrArtifactNotFound covers foreign refs.
	Publish(ctx context.Context, ref string, ownerID int64, at time.Time) (Artifact, error)
	// Like increments the like counter and returns the updated meme.
	Like(ctx context.Context, id int64) (Artifact, error)
	ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]Artifact, int, error)
	ListContest(ctx context.Context, offset, limit int) ([]Artifact, int, error)
	Stats(ctx context.Context, since time.Time) (MemeStats, error)
}

// ContestLedger stores contest membership. Atomically runs fn as one linearized unit:
// no other Atomically call interleaves with it.
type ContestLedger interface {
	// Enter flags an owned meme as a contest entry. Re-entering keeps the original entry time.
	Enter(ctx context.Context, ref string, ownerID int64, at time.Time) error
	Count(ctx context.Context) (int, error)
	Atomically(ctx context.Context, fn func(ctx context.Context, tx ContestTx) error) error
}

// ContestTx is the view of the ledger inside ContestLedger.Atomically.
type ContestTx interface {
	// Entries lists contest memes by likes desc, then entry time asc, then id asc.
	Entries(ctx context.Context) ([]Artifact, error)
	// GrantPremium promotes the user and reports whether anything changed.
	GrantPremium(ctx context.Context, userID int64, at time.Time) (bool, error)
	Clear(ctx context.Context, ids []int64) error
	Record(ctx context.Context, r *ContestResult) error
}
