package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/memearena/internal/domain"
)

// Users implements domain.UserRepository.
type Users struct{ s *Store }

var _ domain.UserRepository = (*Users)(nil)

// Touch creates or refreshes a user.
func (r *Users) Touch(_ context.Context, p domain.Profile, at time.Time) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[p.ID]
	if !ok {
		u = &domain.User{ID: p.ID, CreatedAt: at}
		r.s.users[p.ID] = u
	}
	u.Username = p.Username
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.LanguageCode = p.LanguageCode
	u.LastActivity = at
	return cloneUser(u), nil
}

// Get returns a user by id.
func (r *Users) Get(_ context.Context, id int64) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// FindByUsername matches usernames case-insensitively, with or without a leading @.
func (r *Users) FindByUsername(_ context.Context, username string) (domain.User, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if name == "" {
		return domain.User{}, domain.ErrUserNotFound
	}
	for _, u := range r.s.users {
		if strings.ToLower(u.Username) == name {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

// SetPremium grants or revokes premium; premiumSince is kept while premium stays on.
func (r *Users) SetPremium(_ context.Context, id int64, premium bool, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	setPremium(u, premium, at)
	return nil
}

func setPremium(u *domain.User, premium bool, at time.Time) bool {
	if u.IsPremium == premium {
		return false
	}
	u.IsPremium = premium
	if premium {
		t := at
		u.PremiumSince = &t
	} else {
		u.PremiumSince = nil
	}
	return true
}

// SetAdmin grants or revokes admin rights.
func (r *Users) SetAdmin(_ context.Context, id int64, admin bool) error {
	return r.update(id, func(u *domain.User) { u.IsAdmin = admin })
}

// Delete removes a user together with their memes.
func (r *Users) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, id)
	for mid, m := range r.s.memes {
		if m.OwnerID == id {
			delete(r.s.byRef, m.Ref)
			delete(r.s.memes, mid)
		}
	}
	return nil
}

// IncrementMemes bumps the generated meme counter.
func (r *Users) IncrementMemes(_ context.Context, id int64) error {
	return r.update(id, func(u *domain.User) { u.TotalMemes++ })
}

// AddLikes adjusts the received likes counter.
func (r *Users) AddLikes(_ context.Context, id int64, delta int) error {
	return r.update(id, func(u *domain.User) { u.TotalLikes += delta })
}

func (r *Users) update(id int64, fn func(*domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

// TopCreators orders users by memes, then likes.
func (r *Users) TopCreators(_ context.Context, limit int) ([]domain.User, error) {
	list := r.filter(func(*domain.User) bool { return true })
	sort.Slice(list, func(i, j int) bool {
		if list[i].TotalMemes != list[j].TotalMemes {
			return list[i].TotalMemes > list[j].TotalMemes
		}
		if list[i].TotalLikes != list[j].TotalLikes {
			return list[i].TotalLikes > list[j].TotalLikes
		}
		return list[i].ID < list[j].ID
	})
	return page(list, 0, limit), nil
}

// Premium lists premium users by id.
func (r *Users) Premium(_ context.Context, limit int) ([]domain.User, error) {
	list := r.filter(func(u *domain.User) bool { return u.IsPremium })
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return page(list, 0, limit), nil
}

// InactiveSince lists users whose last activity is before since, longest idle first.
func (r *Users) InactiveSince(_ context.Context, since time.Time, limit int) ([]domain.User, error) {
	list := r.filter(func(u *domain.User) bool { return u.LastActivity.Before(since) })
	sort.Slice(list, func(i, j int) bool { return list[i].LastActivity.Before(list[j].LastActivity) })
	return page(list, 0, limit), nil
}

// IDs returns every user id in ascending order.
func (r *Users) IDs(_ context.Context) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.users))
	for id := range r.s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Stats counts all, recently active and premium users.
func (r *Users) Stats(_ context.Context, activeSince time.Time) (domain.UserStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var st domain.UserStats
	for _, u := range r.s.users {
		st.Total++
		if !u.LastActivity.Before(activeSince) {
			st.Active++
		}
		if u.IsPremium {
			st.Premium++
		}
	}
	return st, nil
}

func (r *Users) filter(keep func(*domain.User) bool) []domain.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	return out
}
