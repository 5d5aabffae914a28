// Package memory keeps users, memes and contest history in process memory.
// It backs the "memory" storage driver and serves as the fake in service tests.
package memory

import (
	"sort"
	"sync"

	"github.com/m3rciful/memearena/internal/domain"
)

// Store is the shared state behind Users, Memes and Ledger. One mutex guards everything,
// so Ledger.Atomically is trivially linearized against every other call.
type Store struct {
	mu       sync.Mutex
	users    map[int64]*domain.User
	memes    map[int64]*domain.Artifact
	byRef    map[string]int64
	results  []domain.ContestResult
	nextMeme int64
	nextRes  int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users: make(map[int64]*domain.User),
		memes: make(map[int64]*domain.Artifact),
		byRef: make(map[string]int64),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Memes returns the meme repository view.
func (s *Store) Memes() *Memes { return &Memes{s: s} }

// Ledger returns the contest ledger view.
func (s *Store) Ledger() *Ledger { return &Ledger{s: s} }

// Results returns a copy of the recorded contest results, oldest first.
func (s *Store) Results() []domain.ContestResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ContestResult(nil), s.results...)
}

// contestEntries must be called with s.mu held.
func (s *Store) contestEntries() []domain.Artifact {
	var out []domain.Artifact
	for _, m := range s.memes {
		if m.InContest {
			out = append(out, cloneArtifact(m))
		}
	}
	sortContest(out)
	return out
}

func sortContest(list []domain.Artifact) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.LikeCount != b.LikeCount {
			return a.LikeCount > b.LikeCount
		}
		at, bt := enteredAt(a), enteredAt(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.ID < b.ID
	})
}

func cloneArtifact(a *domain.Artifact) domain.Artifact {
	out := *a
	if a.ContestEnteredAt != nil {
		t := *a.ContestEnteredAt
		out.ContestEnteredAt = &t
	}
	if a.PublishedAt != nil {
		t := *a.PublishedAt
		out.PublishedAt = &t
	}
	return out
}

func cloneUser(u *domain.User) domain.User {
	out := *u
	if u.PremiumSince != nil {
		t := *u.PremiumSince
		out.PremiumSince = &t
	}
	return out
}

func page[T any](list []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	end := len(list)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return list[offset:end]
}
