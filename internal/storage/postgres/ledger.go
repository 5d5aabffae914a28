package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/domain"
)

// contestLockKey is the advisory lock serializing contest ends across bot instances.
const contestLockKey int64 = 0x6d656d65 // "meme"

// Ledger implements domain.ContestLedger.
type Ledger struct {
	db *sqlx.DB
}

var _ domain.ContestLedger = (*Ledger)(nil)

// Enter flags an owned meme as a contest entry, keeping the first entry time.
func (l *Ledger) Enter(ctx context.Context, ref string, ownerID int64, at time.Time) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE memes SET
			contest_entered_at = CASE WHEN in_contest THEN contest_entered_at ELSE $3 END,
			in_contest = TRUE
		WHERE ref = $1 AND owner_id = $2`, ref, ownerID, at)
	if err != nil {
		return fmt.Errorf("enter contest: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrArtifactNotFound
	}
	return nil
}

// Count returns the current contest population.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.GetContext(ctx, &n, `SELECT count(*) FROM memes WHERE in_contest`); err != nil {
		return 0, fmt.Errorf("count contest: %w", err)
	}
	return n, nil
}

// Atomically runs fn in one transaction holding the contest advisory lock.
func (l *Ledger) Atomically(ctx context.Context, fn func(ctx context.Context, tx domain.ContestTx) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin contest tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn(ctx, logger.CompDB, "contest.rollback.fail", logger.Err(rbErr))
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, contestLockKey); err != nil {
		return fmt.Errorf("contest lock: %w", err)
	}
	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contest tx: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx *sqlx.Tx
}

func (t *ledgerTx) Entries(ctx context.Context) ([]domain.Artifact, error) {
	var out []domain.Artifact
	err := t.tx.SelectContext(ctx, &out, `SELECT `+memeColumns+` FROM memes WHERE in_contest
		ORDER BY `+contestOrder+` FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("contest entries: %w", err)
	}
	return out, nil
}

func (t *ledgerTx) GrantPremium(ctx context.Context, userID int64, at time.Time) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET is_premium = TRUE, premium_since = $2 WHERE id = $1 AND NOT is_premium`,
		userID, at)
	if err != nil {
		return false, fmt.Errorf("grant premium: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grant premium: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := t.tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
		return false, fmt.Errorf("grant premium: %w", err)
	}
	if !exists {
		return false, domain.ErrUserNotFound
	}
	return false, nil
}

func (t *ledgerTx) Clear(ctx context.Context, ids []int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE memes SET in_contest = FALSE, contest_entered_at = NULL WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("clear contest: %w", err)
	}
	return nil
}

func (t *ledgerTx) Record(ctx context.Context, r *domain.ContestResult) error {
	err := t.tx.GetContext(ctx, &r.ID, `
		INSERT INTO contest_results (winner_meme_id, winner_user_id, participants, reason, premium_granted, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.WinnerMemeID, r.WinnerUserID, r.Participants, r.Reason, r.PremiumGranted, r.EndedAt)
	if err != nil {
		return fmt.Errorf("record contest: %w", err)
	}
	return nil
}
