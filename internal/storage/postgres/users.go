package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/memearena/internal/domain"
)

const userColumns = `id, username, first_name, last_name, language_code, is_premium, is_admin,
	premium_since, total_memes, total_likes, created_at, last_activity`

// Users implements domain.UserRepository.
type Users struct {
	db *sqlx.DB
}

var _ domain.UserRepository = (*Users)(nil)

// Touch upserts the user profile and refreshes last activity.
func (r *Users) Touch(ctx context.Context, p domain.Profile, at time.Time) (domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (id, username, first_name, last_name, language_code, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			language_code = EXCLUDED.language_code,
			last_activity = EXCLUDED.last_activity
		RETURNING `+userColumns,
		p.ID, p.Username, p.FirstName, p.LastName, p.LanguageCode, at)
	if err != nil {
		return domain.User{}, fmt.Errorf("touch user %d: %w", p.ID, err)
	}
	return u, nil
}

// Get returns a user by id.
func (r *Users) Get(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByUsername matches usernames case-insensitively, with or without a leading @.
func (r *Users) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	name := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if name == "" {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1) LIMIT 1`, name)
}

func (r *Users) one(ctx context.Context, query string, args ...any) (domain.User, error) {
	var u domain.User
	if err := r.db.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetPremium grants or revokes premium; premium_since is kept while premium stays on.
func (r *Users) SetPremium(ctx context.Context, id int64, premium bool, at time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET
			premium_since = CASE WHEN $2 THEN COALESCE(premium_since, $3) ELSE NULL END,
			is_premium = $2
		WHERE id = $1`, id, premium, at)
}

// SetAdmin grants or revokes admin rights.
func (r *Users) SetAdmin(ctx context.Context, id int64, admin bool) error {
	return r.exec(ctx, `UPDATE users SET is_admin = $2 WHERE id = $1`, id, admin)
}

// Delete removes a user; memes cascade.
func (r *Users) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// IncrementMemes bumps the generated meme counter.
func (r *Users) IncrementMemes(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET total_memes = total_memes + 1 WHERE id = $1`, id)
}

// AddLikes adjusts the received likes counter.
func (r *Users) AddLikes(ctx context.Context, id int64, delta int) error {
	return r.exec(ctx, `UPDATE users SET total_likes = total_likes + $2 WHERE id = $1`, id, delta)
}

func (r *Users) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// TopCreators orders users by memes, then likes.
func (r *Users) TopCreators(ctx context.Context, limit int) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users
		ORDER BY total_memes DESC, total_likes DESC, id ASC LIMIT $1`, limit)
}

// Premium lists premium users by id.
func (r *Users) Premium(ctx context.Context, limit int) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE is_premium ORDER BY id LIMIT $1`, limit)
}

// InactiveSince lists users whose last activity is before since, longest idle first.
func (r *Users) InactiveSince(ctx context.Context, since time.Time, limit int) ([]domain.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE last_activity < $2
		ORDER BY last_activity ASC LIMIT $1`, limit, since)
}

func (r *Users) list(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	var out []domain.User
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// IDs returns every user id in ascending order.
func (r *Users) IDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// Stats counts all, recently active and premium users.
func (r *Users) Stats(ctx context.Context, activeSince time.Time) (domain.UserStats, error) {
	var st domain.UserStats
	err := r.db.GetContext(ctx, &st, `
		SELECT count(*) AS total,
		       count(*) FILTER (WHERE last_activity >= $1) AS active,
		       count(*) FILTER (WHERE is_premium) AS premium
		FROM users`, activeSince)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return st, nil
}
