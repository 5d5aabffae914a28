package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/memearena/internal/domain"
)

const memeColumns = `id, ref, url, owner_id, kind, description, template_id, like_count, in_contest,
	contest_entered_at, published_to_feed, published_at, created_at`

const contestOrder = `like_count DESC, contest_entered_at ASC, id ASC`

// Memes implements domain.MemeRepository.
type Memes struct {
	db *sqlx.DB
}

var _ domain.MemeRepository = (*Memes)(nil)

// Create inserts a meme and assigns its id.
func (r *Memes) Create(ctx context.Context, a *domain.Artifact) error {
	rows, err := r.db.NamedQueryContext(ctx, `
		INSERT INTO memes (ref, url, owner_id, kind, description, template_id, created_at)
		VALUES (:ref, :url, :owner_id, :kind, :description, :template_id, :created_at)
		RETURNING id`, a)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create meme: duplicate ref %q: %w", a.Ref, err)
		}
		return fmt.Errorf("create meme: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("create meme: %w", err)
		}
		return fmt.Errorf("create meme: no id returned")
	}
	return rows.Scan(&a.ID)
}

// ByRef looks a meme up by its storage reference.
func (r *Memes) ByRef(ctx context.Context, ref string) (domain.Artifact, error) {
	return r.one(ctx, `SELECT `+memeColumns+` FROM memes WHERE ref = $1`, ref)
}

// ByID looks a meme up by id.
func (r *Memes) ByID(ctx context.Context, id int64) (domain.Artifact, error) {
	return r.one(ctx, `SELECT `+memeColumns+` FROM memes WHERE id = $1`, id)
}

func (r *Memes) one(ctx context.Context, query string, args ...any) (domain.Artifact, error) {
	var a domain.Artifact
	if err := r.db.GetContext(ctx, &a, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Artifact{}, domain.ErrArtifactNotFound
		}
		return domain.Artifact{}, fmt.Errorf("get meme: %w", err)
	}
	return a, nil
}

// CountByOwnerKindSince counts memes of kind created by owner at or after since.
func (r *Memes) CountByOwnerKindSince(ctx context.Context, ownerID int64, kind domain.Kind, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM memes WHERE owner_id = $1 AND kind = $2 AND created_at >= $3`,
		ownerID, kind, since)
	if err != nil {
		return 0, fmt.Errorf("count memes: %w", err)
	}
	return n, nil
}

// Publish flags an owned meme for the feed.
func (r *Memes) Publish(ctx context.Context, ref string, ownerID int64, at time.Time) (domain.Artifact, error) {
	return r.one(ctx, `
		UPDATE memes SET published_to_feed = TRUE, published_at = COALESCE(published_at, $3)
		WHERE ref = $1 AND owner_id = $2
		RETURNING `+memeColumns, ref, ownerID, at)
}

// Like increments the like counter.
func (r *Memes) Like(ctx context.Context, id int64) (domain.Artifact, error) {
	return r.one(ctx, `UPDATE memes SET like_count = like_count + 1 WHERE id = $1 RETURNING `+memeColumns, id)
}

// ListByOwner pages through an owner's memes, newest first.
func (r *Memes) ListByOwner(ctx context.Context, ownerID int64, offset, limit int) ([]domain.Artifact, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM memes WHERE owner_id = $1`, ownerID); err != nil {
		return nil, 0, fmt.Errorf("count owner memes: %w", err)
	}
	var out []domain.Artifact
	err := r.db.SelectContext(ctx, &out, `SELECT `+memeColumns+` FROM memes WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`, ownerID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list owner memes: %w", err)
	}
	return out, total, nil
}

// ListContest pages through contest entries in ranking order.
func (r *Memes) ListContest(ctx context.Context, offset, limit int) ([]domain.Artifact, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM memes WHERE in_contest`); err != nil {
		return nil, 0, fmt.Errorf("count contest memes: %w", err)
	}
	var out []domain.Artifact
	err := r.db.SelectContext(ctx, &out, `SELECT `+memeColumns+` FROM memes WHERE in_contest
		ORDER BY `+contestOrder+` OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list contest memes: %w", err)
	}
	return out, total, nil
}

// Stats counts all memes, memes created since the given time and contest entries.
func (r *Memes) Stats(ctx context.Context, since time.Time) (domain.MemeStats, error) {
	var st domain.MemeStats
	err := r.db.GetContext(ctx, &st, `
		SELECT count(*) AS total,
		       count(*) FILTER (WHERE created_at >= $1) AS today,
		       count(*) FILTER (WHERE in_contest) AS in_contest
		FROM memes`, since)
	if err != nil {
		return domain.MemeStats{}, fmt.Errorf("meme stats: %w", err)
	}
	return st, nil
}
