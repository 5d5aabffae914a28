package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/m3rciful/memearena/internal/domain"
)

// Memes implements domain.MemeRepository.
type Memes struct{ s *Store }

var _ domain.MemeRepository = (*Memes)(nil)

// Create stores a new meme and assigns its id.
func (r *Memes) Create(_ context.Context, a *domain.Artifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.Ref == "" {
		return fmt.Errorf("create meme: empty ref")
	}
	if _, dup := r.s.byRef[a.Ref]; dup {
		return fmt.Errorf("create meme: duplicate ref %q", a.Ref)
	}
	r.s.nextMeme++
	a.ID = r.s.nextMeme
	stored := cloneArtifact(a)
	r.s.memes[a.ID] = &stored
	r.s.byRef[a.Ref] = a.ID
	return nil
}

// ByRef looks a meme up by its storage reference.
func (r *Memes) ByRef(_ context.Context, ref string) (domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.lookupRef(ref)
	if !ok {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	return cloneArtifact(m), nil
}

// ByID looks a meme up by id.
func (r *Memes) ByID(_ context.Context, id int64) (domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memes[id]
	if !ok {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	return cloneArtifact(m), nil
}

// CountByOwnerKindSince counts memes of kind created by owner at or after since.
func (r *Memes) CountByOwnerKindSince(_ context.Context, ownerID int64, kind domain.Kind, since time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, m := range r.s.memes {
		if m.OwnerID == ownerID && m.Kind == kind && !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// Publish flags an owned meme for the feed.
func (r *Memes) Publish(_ context.Context, ref string, ownerID int64, at time.Time) (domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.lookupRef(ref)
	if !ok || m.OwnerID != ownerID {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	if !m.PublishedToFeed {
		m.PublishedToFeed = true
		t := at
		m.PublishedAt = &t
	}
	return cloneArtifact(m), nil
}

// Like increments the like counter.
func (r *Memes) Like(_ context.Context, id int64) (domain.Artifact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memes[id]
	if !ok {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	m.LikeCount++
	return cloneArtifact(m), nil
}

// ListByOwner pages through an owner's memes, newest first.
func (r *Memes) ListByOwner(_ context.Context, ownerID int64, offset, limit int) ([]domain.Artifact, int, error) {
	r.s.mu.Lock()
	var list []domain.Artifact
	for _, m := range r.s.memes {
		if m.OwnerID == ownerID {
			list = append(list, cloneArtifact(m))
		}
	}
	r.s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return page(list, offset, limit), len(list), nil
}

// ListContest pages through contest entries in ranking order.
func (r *Memes) ListContest(_ context.Context, offset, limit int) ([]domain.Artifact, int, error) {
	r.s.mu.Lock()
	list := r.s.contestEntries()
	r.s.mu.Unlock()
	return page(list, offset, limit), len(list), nil
}

// Stats counts all memes, memes created since the given time and contest entries.
func (r *Memes) Stats(_ context.Context, since time.Time) (domain.MemeStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st domain.MemeStats
	for _, m := range r.s.memes {
		st.Total++
		if !m.CreatedAt.Before(since) {
			st.Today++
		}
		if m.InContest {
			st.InContest++
		}
	}
	return st, nil
}

// lookupRef must be called with s.mu held.
func (s *Store) lookupRef(ref string) (*domain.Artifact, bool) {
	id, ok := s.byRef[ref]
	if !ok {
		return nil, false
	}
	m, ok := s.memes[id]
	return m, ok
}

func enteredAt(a domain.Artifact) time.Time {
	if a.ContestEnteredAt != nil {
		return *a.ContestEnteredAt
	}
	return a.CreatedAt
}
