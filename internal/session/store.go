package session

import (
	"fmt"
	"sync"
	"time"
)

const defaultShards = 32

type entry struct {
	mu   sync.Mutex
	sess Session
	// refs counts in-flight users of the entry; guarded by the shard mutex.
	refs int
}

type shard struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// Store is a sharded in-memory session map. Every operation on one chat is serialized,
// operations on different chats only contend when they share a shard.
type Store struct {
	shards []*shard
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the number of shards; values below one keep the default.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// NewStore builds an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		shards: make([]*shard, defaultShards),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[int64]*entry)}
	}
	return s
}

func (s *Store) shardFor(chatID int64) *shard {
	return s.shards[uint64(chatID)%uint64(len(s.shards))]
}

// acquire returns the entry for chatID, creating it under the shard lock when missing.
func (s *Store) acquire(chatID int64) (*shard, *entry) {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	e, ok := sh.entries[chatID]
	if !ok {
		e = &entry{sess: newSession(chatID, s.now())}
		sh.entries[chatID] = e
	}
	e.refs++
	sh.mu.Unlock()
	return sh, e
}

// release drops a reference taken by acquire. Callers still hold e.mu, so Remove never
// observes a reference whose owner is already done.
func (s *Store) release(sh *shard, e *entry) {
	sh.mu.Lock()
	e.refs--
	sh.mu.Unlock()
}

// GetOrCreate returns a copy of the chat's session, creating an idle one on first touch.
func (s *Store) GetOrCreate(chatID int64) Session {
	sh, e := s.acquire(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	defer s.release(sh, e)
	return e.sess.clone()
}

// Lookup returns a copy of the chat's session without creating one.
func (s *Store) Lookup(chatID int64) (Session, bool) {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	e, ok := sh.entries[chatID]
	if !ok {
		sh.mu.Unlock()
		return Session{}, false
	}
	e.refs++
	sh.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer s.release(sh, e)
	return e.sess.clone(), true
}

// Update runs fn on a working copy of the chat's session while holding the chat lock.
// The copy replaces the stored session only when fn succeeds; LastActivity is refreshed then.
// The returned session is the stored value after the call.
func (s *Store) Update(chatID int64, fn func(*Session) error) (Session, error) {
	sh, e := s.acquire(chatID)
	e.mu.Lock()
	defer e.mu.Unlock()
	defer s.release(sh, e)

	work := e.sess.clone()
	if err := fn(&work); err != nil {
		return e.sess.clone(), err
	}
	if !work.State.Valid() {
		return e.sess.clone(), fmt.Errorf("session %d: unknown state %q", chatID, work.State)
	}
	work.ChatID = chatID
	work.LastActivity = s.now()
	e.sess = work
	return e.sess.clone(), nil
}

// Remove drops the chat's session. An operation in flight on the chat finishes first;
// operations queued behind Remove start from a fresh session.
func (s *Store) Remove(chatID int64) {
	sh := s.shardFor(chatID)
	sh.mu.Lock()
	e, ok := sh.entries[chatID]
	if !ok || e.refs == 0 {
		delete(sh.entries, chatID)
		sh.mu.Unlock()
		return
	}
	e.refs++
	sh.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(sh.entries, chatID)
		return
	}
	// Still referenced: keep the single entry and reset it in place.
	e.sess = newSession(chatID, s.now())
}

// SweepExpired removes sessions idle for longer than maxIdle and returns how many were removed.
// Sessions with an operation in flight are skipped.
func (s *Store) SweepExpired(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			// refs == 0 under the shard lock means nobody reads or writes e.sess anymore.
			if e.refs > 0 {
				continue
			}
			if e.sess.LastActivity.Before(cutoff) {
				delete(sh.entries, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
