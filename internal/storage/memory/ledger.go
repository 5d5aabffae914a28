package memory

import (
	"context"
	"time"

	"github.com/m3rciful/memearena/internal/domain"
)

// Ledger implements domain.ContestLedger.
type Ledger struct{ s *Store }

var _ domain.ContestLedger = (*Ledger)(nil)

// Enter flags an owned meme as a contest entry.
func (l *Ledger) Enter(_ context.Context, ref string, ownerID int64, at time.Time) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	m, ok := l.s.lookupRef(ref)
	if !ok || m.OwnerID != ownerID {
		return domain.ErrArtifactNotFound
	}
	if !m.InContest {
		m.InContest = true
		t := at
		m.ContestEnteredAt = &t
	}
	return nil
}

// Count returns the current contest population.
func (l *Ledger) Count(_ context.Context) (int, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	n := 0
	for _, m := range l.s.memes {
		if m.InContest {
			n++
		}
	}
	return n, nil
}

// Atomically runs fn under the store lock. Writes are buffered and applied only when fn succeeds.
func (l *Ledger) Atomically(ctx context.Context, fn func(ctx context.Context, tx domain.ContestTx) error) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	tx := &ledgerTx{s: l.s, premium: make(map[int64]time.Time)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

type ledgerTx struct {
	s       *Store
	premium map[int64]time.Time
	clear   []int64
	results []*domain.ContestResult
}

func (tx *ledgerTx) Entries(context.Context) ([]domain.Artifact, error) {
	return tx.s.contestEntries(), nil
}

func (tx *ledgerTx) GrantPremium(_ context.Context, userID int64, at time.Time) (bool, error) {
	u, ok := tx.s.users[userID]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if _, pending := tx.premium[userID]; pending || u.IsPremium {
		return false, nil
	}
	tx.premium[userID] = at
	return true, nil
}

func (tx *ledgerTx) Clear(_ context.Context, ids []int64) error {
	tx.clear = append(tx.clear, ids...)
	return nil
}

func (tx *ledgerTx) Record(_ context.Context, r *domain.ContestResult) error {
	tx.results = append(tx.results, r)
	return nil
}

func (tx *ledgerTx) apply() {
	for id, at := range tx.premium {
		if u, ok := tx.s.users[id]; ok {
			setPremium(u, true, at)
		}
	}
	for _, id := range tx.clear {
		if m, ok := tx.s.memes[id]; ok {
			m.InContest = false
			m.ContestEnteredAt = nil
		}
	}
	for _, r := range tx.results {
		tx.s.nextRes++
		r.ID = tx.s.nextRes
		tx.s.results = append(tx.s.results, *r)
	}
}
