package meme

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/session"
	"github.com/m3rciful/memearena/internal/storage/memory"
)

type stubGenerator struct {
	calls atomic.Int32
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, p Prompt) (Image, error) {
	g.calls.Add(1)
	if g.err != nil {
		return Image{}, g.err
	}
	return Image{URL: "https://img.example/" + string(p.Kind) + ".png"}, nil
}

type stubStorage struct{ n atomic.Int32 }

func (s *stubStorage) Persist(_ context.Context, img Image) (Stored, error) {
	ref := fmt.Sprintf("ref%d", s.n.Add(1))
	return Stored{Ref: ref, URL: img.URL}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fixture struct {
	pipeline *Pipeline
	gen      *stubGenerator
	store    *memory.Store
	sessions *session.Store
	clock    *clock
	user     domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2026, 10, 16, 22, 30, 0, 0, time.UTC)}
	store := memory.New()
	user, err := store.Users().Touch(context.Background(), domain.Profile{ID: 42, Username: "neo"}, clk.Now())
	require.NoError(t, err)

	pool, err := NewPool(PoolOptions{Core: 2, Max: 4, Queue: 8})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	gen := &stubGenerator{}
	sessions := session.NewStore()
	p := NewPipeline(Deps{
		Generator: gen,
		Storage:   &stubStorage{},
		Memes:     store.Memes(),
		Users:     store.Users(),
		Sessions:  sessions,
		Pool:      pool,
		Now:       clk.Now,
	})
	return &fixture{pipeline: p, gen: gen, store: store, sessions: sessions, clock: clk, user: user}
}

func (f *fixture) generate(t *testing.T, req Request) (domain.Artifact, error) {
	t.Helper()
	if req.User.ID == 0 {
		req.User = f.user
	}
	if req.ChatID == 0 {
		req.ChatID = req.User.ID
	}
	fut, err := f.pipeline.Generate(context.Background(), req, nil)
	if err != nil {
		return domain.Artifact{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fut.Wait(ctx)
}

func TestGenerateSuccessAdvancesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.sessions.Update(42, func(s *session.Session) error {
		return s.Transition(session.StateWaitingForAIDescription)
	})
	require.NoError(t, err)

	var notified atomic.Int32
	fut, err := f.pipeline.Generate(context.Background(), Request{
		Kind: domain.KindAI, User: f.user, ChatID: 42, Text: "a cat wearing sunglasses",
	}, func(_ context.Context, a domain.Artifact, err error) {
		assert.NoError(t, err)
		notified.Add(1)
	})
	require.NoError(t, err)
	art, err := fut.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.gen.calls.Load())
	assert.Equal(t, int32(1), notified.Load())
	assert.Equal(t, "a cat wearing sunglasses", art.Description)

	sess := f.sessions.GetOrCreate(42)
	assert.Equal(t, session.StateMemeGenerated, sess.State)
	assert.Equal(t, art.Ref, sess.LastArtifactRef)

	stored, err := f.store.Memes().ByRef(context.Background(), art.Ref)
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.OwnerID)
	u, _ := f.store.Users().Get(context.Background(), 42)
	assert.Equal(t, 1, u.TotalMemes)
}

func TestDailyQuotaResetsOnNextUTCDay(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.generate(t, Request{Kind: domain.KindAI, Text: "first"})
	require.NoError(t, err)

	_, err = f.generate(t, Request{Kind: domain.KindAI, Text: "second"})
	var limit *domain.LimitReachedError
	require.True(t, errors.As(err, &limit), "got %v", err)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), limit.ResetsAt)

	_, err = f.generate(t, Request{Kind: domain.KindTemplate, TemplateID: "drake", Text: "no\nyes"})
	require.NoError(t, err, "quota is per kind")

	f.clock.Set(time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC))
	_, err = f.generate(t, Request{Kind: domain.KindAI, Text: "next day"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.gen.calls.Load())
}

func TestPremiumUsersHaveNoQuota(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	premium := f.user
	premium.IsPremium = true

	for i := 0; i < 3; i++ {
		_, err := f.generate(t, Request{Kind: domain.KindAI, User: premium, Text: "again"})
		require.NoError(t, err)
	}
}

func TestValidationAndFeatureChecksSkipGenerator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.generate(t, Request{Kind: domain.KindAI, Text: "  "})
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))

	_, err = f.generate(t, Request{Kind: domain.KindTemplate, TemplateID: "nope", Text: "x"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, FieldTemplate, ve.Field)

	f.pipeline.Features().Set(domain.KindAI, false)
	_, err = f.generate(t, Request{Kind: domain.KindAI, Text: "valid"})
	var fe *domain.FeatureDisabledError
	require.True(t, errors.As(err, &fe))

	assert.Equal(t, int32(0), f.gen.calls.Load())
	assert.True(t, IsUserError(err))
}

func TestGeneratorFailureLeavesSessionAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gen.err = errors.New("provider down")
	_, err := f.sessions.Update(42, func(s *session.Session) error {
		return s.Transition(session.StateWaitingForAIDescription)
	})
	require.NoError(t, err)

	_, err = f.generate(t, Request{Kind: domain.KindAI, Text: "a dog"})
	var ge *domain.GenerationError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, domain.KindAI, ge.Kind)

	sess := f.sessions.GetOrCreate(42)
	assert.Equal(t, session.StateWaitingForAIDescription, sess.State)
	assert.Empty(t, sess.LastArtifactRef)

	f.gen.err = nil
	_, err = f.generate(t, Request{Kind: domain.KindAI, Text: "a dog"})
	assert.NoError(t, err, "a failed job does not consume the quota")
}

func TestConcurrentRequestsConsumeQuotaOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		limited atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.generate(t, Request{Kind: domain.KindAI, Text: "race"})
			var le *domain.LimitReachedError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &le):
				limited.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), limited.Load())
}
