// Package contest tracks contest submissions and ends a cycle once the participant
// threshold is reached, on admin request or on the weekly sweep.
package contest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/core/schedule"
	"github.com/m3rciful/memearena/internal/domain"
)

// End reasons recorded in contest history.
const (
	ReasonThreshold = "threshold"
	ReasonAdmin     = "admin"
	ReasonWeekly    = "weekly"
)

// DefaultRequiredParticipants is the threshold used when none is configured.
const DefaultRequiredParticipants = 33

// Localizer renders catalog messages.
type Localizer interface {
	Text(key string, args ...any) string
}

// Options configures a Tracker.
type Options struct {
	RequiredParticipants int
	Now                  func() time.Time
	// OnEnd runs after a cycle has been committed, outside the critical section.
	OnEnd func(ctx context.Context, r domain.ContestResult)
}

// Tracker records submissions and ends contest cycles exactly once.
type Tracker struct {
	ledger   domain.ContestLedger
	required int
	now      func() time.Time
	onEnd    func(ctx context.Context, r domain.ContestResult)
}

// NewTracker builds a Tracker on top of ledger.
func NewTracker(ledger domain.ContestLedger, opts Options) *Tracker {
	if opts.RequiredParticipants <= 0 {
		opts.RequiredParticipants = DefaultRequiredParticipants
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		ledger:   ledger,
		required: opts.RequiredParticipants,
		now:      opts.Now,
		onEnd:    opts.OnEnd,
	}
}

// Required returns the participant threshold.
func (t *Tracker) Required() int { return t.required }

// Submit enters an owned meme into the contest. It returns false without error when the
// meme does not exist or belongs to someone else. Crossing the threshold ends the cycle.
func (t *Tracker) Submit(ctx context.Context, ref string, userID int64) (bool, error) {
	if err := t.ledger.Enter(ctx, ref, userID, t.now().UTC()); err != nil {
		if errors.Is(err, domain.ErrArtifactNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("contest enter: %w", err)
	}
	n, err := t.ledger.Count(ctx)
	if err != nil {
		return true, fmt.Errorf("contest count: %w", err)
	}
	logger.Info(ctx, logger.CompContest, "contest.submit",
		slog.String("ref", ref),
		slog.Int("participants", n),
		slog.Int("required", t.required),
	)
	if n >= t.required {
		if _, _, err := t.endAndAwardWinner(ctx, ReasonThreshold, t.required); err != nil {
			return true, err
		}
	}
	return true, nil
}

// AdminForceEnd ends a non-empty cycle regardless of the threshold.
// ended is false when there was nothing to end.
func (t *Tracker) AdminForceEnd(ctx context.Context) (domain.ContestResult, bool, error) {
	return t.endAndAwardWinner(ctx, ReasonAdmin, 1)
}

// SweepWeekly ends a non-empty cycle; it is driven by the weekly schedule.
func (t *Tracker) SweepWeekly(ctx context.Context) (domain.ContestResult, bool, error) {
	return t.endAndAwardWinner(ctx, ReasonWeekly, 1)
}

// RunWeekly blocks until ctx is done, sweeping at every day/hour UTC occurrence.
func (t *Tracker) RunWeekly(ctx context.Context, day time.Weekday, hour int) {
	logger.Info(ctx, logger.CompContest, "weekly.start",
		slog.String("weekday", day.String()),
		slog.Int("hour_utc", hour),
	)
	schedule.Weekly(ctx, day, hour, t.now, func(ctx context.Context) {
		if _, _, err := t.SweepWeekly(ctx); err != nil {
			logger.Error(ctx, logger.CompContest, "weekly.fail", logger.Err(err))
		}
	})
}

// Status is a snapshot of the running cycle.
type Status struct {
	Participants int
	Required     int
}

// Status returns the current population and threshold.
func (t *Tracker) Status(ctx context.Context) (Status, error) {
	n, err := t.ledger.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("contest count: %w", err)
	}
	return Status{Participants: n, Required: t.required}, nil
}

// StatusMessage renders the contest status for users.
func (t *Tracker) StatusMessage(ctx context.Context, loc Localizer) string {
	st, err := t.Status(ctx)
	if err != nil {
		logger.Error(ctx, logger.CompContest, "status.fail", logger.Err(err))
		return loc.Text("common.error")
	}
	return loc.Text("contest.status", st.Participants, st.Required)
}

// endAndAwardWinner is the linearized count-compare-reset step. A caller that finds fewer
// than minEntries entries inside the critical section is a no-op, so concurrent callers
// that all crossed the threshold end the cycle once.
func (t *Tracker) endAndAwardWinner(ctx context.Context, reason string, minEntries int) (domain.ContestResult, bool, error) {
	var (
		result domain.ContestResult
		ended  bool
	)
	err := t.ledger.Atomically(ctx, func(ctx context.Context, tx domain.ContestTx) error {
		entries, err := tx.Entries(ctx)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		if len(entries) == 0 || len(entries) < minEntries {
			return nil
		}
		now := t.now().UTC()
		winner := entries[0]
		granted, err := tx.GrantPremium(ctx, winner.OwnerID, now)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("grant premium: %w", err)
		}
		ids := make([]int64, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := tx.Clear(ctx, ids); err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		result = domain.ContestResult{
			WinnerMemeID:   winner.ID,
			WinnerUserID:   winner.OwnerID,
			WinnerRef:      winner.Ref,
			WinnerLikes:    winner.LikeCount,
			Participants:   len(entries),
			Reason:         reason,
			PremiumGranted: granted,
			EndedAt:        now,
		}
		if err := tx.Record(ctx, &result); err != nil {
			return fmt.Errorf("record result: %w", err)
		}
		ended = true
		return nil
	})
	if err != nil {
		logger.Error(ctx, logger.CompContest, "contest.end.fail",
			slog.String("reason", reason),
			logger.Err(err),
		)
		return domain.ContestResult{}, false, err
	}
	if !ended {
		return domain.ContestResult{}, false, nil
	}
	logger.Info(ctx, logger.CompContest, "contest.end",
		slog.String("reason", reason),
		slog.Int64("winner_user_id", result.WinnerUserID),
		slog.Int64("winner_meme_id", result.WinnerMemeID),
		slog.Int("participants", result.Participants),
		slog.Bool("premium_granted", result.PremiumGranted),
	)
	if t.onEnd != nil {
		t.onEnd(ctx, result)
	}
	return result, true, nil
}
