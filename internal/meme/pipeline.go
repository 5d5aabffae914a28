// Package meme validates generation requests, enforces daily quotas and runs the generator
// on a bounded worker pool.
package meme

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/session"
)

// Prompt is the generator input for one meme.
type Prompt struct {
	Kind       domain.Kind
	Text       string
	TemplateID string
	Lines      []string
	Voice      []byte
}

// Image is a generator result: a remote URL, raw bytes or both.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
	// Fallback marks a placeholder produced after the provider failed.
	Fallback bool
}

// Generator renders memes. Implementations retry transient failures themselves.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Image, error)
}

// Stored is a persisted image.
type Stored struct {
	Ref string
	URL string
}

// Storage persists generator output and returns a stable reference.
type Storage interface {
	Persist(ctx context.Context, img Image) (Stored, error)
}

// SessionUpdater applies an atomic mutation to a chat session.
type SessionUpdater interface {
	Update(chatID int64, fn func(*session.Session) error) (session.Session, error)
}

// Request asks for one meme on behalf of a user in a chat.
type Request struct {
	Kind       domain.Kind
	User       domain.User
	ChatID     int64
	Text       string
	TemplateID string
	Voice      []byte
}

// Future resolves once a generation job finishes.
type Future struct {
	done chan struct{}
	art  domain.Artifact
	err  error
}

func newFuture() *Future { return &Future{done: make(chan struct{})} }

func (f *Future) complete(a domain.Artifact, err error) {
	f.art, f.err = a, err
	close(f.done)
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the job finishes or ctx is done.
func (f *Future) Wait(ctx context.Context) (domain.Artifact, error) {
	select {
	case <-f.done:
		return f.art, f.err
	case <-ctx.Done():
		return domain.Artifact{}, ctx.Err()
	}
}

// Notify observes a finished job on the worker goroutine.
type Notify func(ctx context.Context, a domain.Artifact, err error)

// Deps wires a Pipeline.
type Deps struct {
	Generator  Generator
	Storage    Storage
	Memes      domain.MemeRepository
	Users      domain.UserRepository
	Sessions   SessionUpdater
	Pool       *Pool
	Features   *Features
	Templates  *Templates
	JobTimeout time.Duration
	Now        func() time.Time
}

type quotaKey struct {
	userID int64
	kind   domain.Kind
}

// Pipeline turns validated requests into persisted artifacts.
type Pipeline struct {
	deps Deps

	mu       sync.Mutex
	inflight map[quotaKey]struct{}
}

// NewPipeline builds a Pipeline.
func NewPipeline(deps Deps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.JobTimeout <= 0 {
		deps.JobTimeout = 2 * time.Minute
	}
	if deps.Features == nil {
		deps.Features = NewFeatures(true, true)
	}
	if deps.Templates == nil {
		deps.Templates = NewTemplates(DefaultTemplates...)
	}
	return &Pipeline{deps: deps, inflight: make(map[quotaKey]struct{})}
}

// Features exposes the runtime switches.
func (p *Pipeline) Features() *Features { return p.deps.Features }

// Templates exposes the template registry.
func (p *Pipeline) Templates() *Templates { return p.deps.Templates }

// Generate checks the request and schedules the job. Feature, validation and quota failures
// return immediately with no external call made. notify, when set, runs after the job.
func (p *Pipeline) Generate(ctx context.Context, req Request, notify Notify) (*Future, error) {
	if !p.deps.Features.Enabled(req.Kind) {
		return nil, &domain.FeatureDisabledError{Kind: req.Kind}
	}
	prompt, err := p.prompt(req)
	if err != nil {
		return nil, err
	}
	release, err := p.reserve(ctx, req)
	if err != nil {
		return nil, err
	}

	fut := newFuture()
	jobCtx := logger.Detach(ctx)
	err = p.deps.Pool.Submit(func() {
		p.run(jobCtx, req, prompt, release, fut, notify)
	})
	if err != nil {
		release()
		logger.Warn(ctx, logger.CompPipeline, "job.rejected",
			slog.String("kind", string(req.Kind)),
			logger.Err(err),
		)
		return nil, &domain.GenerationError{Kind: req.Kind, Err: err}
	}
	logger.Debug(ctx, logger.CompPipeline, "job.queued",
		slog.String("kind", string(req.Kind)),
		slog.Int64("user_id", req.User.ID),
	)
	return fut, nil
}

func (p *Pipeline) prompt(req Request) (Prompt, error) {
	pr := Prompt{Kind: req.Kind}
	switch req.Kind {
	case domain.KindAI:
		text, err := ValidateDescription(req.Text)
		if err != nil {
			return Prompt{}, err
		}
		pr.Text = text
	case domain.KindTemplate:
		if err := ValidateTemplateID(req.TemplateID); err != nil {
			return Prompt{}, err
		}
		if _, ok := p.deps.Templates.Get(req.TemplateID); !ok {
			return Prompt{}, &domain.ValidationError{Field: FieldTemplate, Reason: "unknown template"}
		}
		lines, err := ValidateTemplateText(req.Text)
		if err != nil {
			return Prompt{}, err
		}
		pr.TemplateID, pr.Lines, pr.Text = req.TemplateID, lines, strings.Join(lines, " / ")
	case domain.KindVoice:
		if err := ValidateVoice(req.Voice); err != nil {
			return Prompt{}, err
		}
		pr.Voice = req.Voice
	default:
		return Prompt{}, &domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported %q", req.Kind)}
	}
	return pr, nil
}

// reserve enforces one artifact per kind per UTC day for non-premium users. The in-flight
// marker covers the window between the count query and the artifact insert.
func (p *Pipeline) reserve(ctx context.Context, req Request) (func(), error) {
	if req.User.IsPremium {
		return func() {}, nil
	}
	now := p.deps.Now()
	dayStart := domain.StartOfDayUTC(now)
	limitErr := &domain.LimitReachedError{Kind: req.Kind, ResetsAt: dayStart.AddDate(0, 0, 1)}
	key := quotaKey{userID: req.User.ID, kind: req.Kind}

	p.mu.Lock()
	if _, busy := p.inflight[key]; busy {
		p.mu.Unlock()
		return nil, limitErr
	}
	p.inflight[key] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.inflight, key)
			p.mu.Unlock()
		})
	}

	n, err := p.deps.Memes.CountByOwnerKindSince(ctx, req.User.ID, req.Kind, dayStart)
	if err != nil {
		release()
		return nil, fmt.Errorf("count daily memes: %w", err)
	}
	if n > 0 {
		release()
		return nil, limitErr
	}
	return release, nil
}

func (p *Pipeline) run(ctx context.Context, req Request, prompt Prompt, release func(), fut *Future, notify Notify) {
	ctx, cancel := context.WithTimeout(ctx, p.deps.JobTimeout)
	defer cancel()
	start := time.Now()

	var (
		art domain.Artifact
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			err = &domain.GenerationError{Kind: req.Kind, Err: fmt.Errorf("panic: %v", r)}
			art = domain.Artifact{}
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		logger.Info(ctx, logger.CompPipeline, "job.done",
			slog.String("status", status),
			slog.String("kind", string(req.Kind)),
			slog.String("ref", art.Ref),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		release()
		fut.complete(art, err)
		if notify != nil {
			notify(ctx, art, err)
		}
	}()

	art, err = p.produce(ctx, req, prompt)
	if err != nil {
		return
	}
	if incErr := p.deps.Users.IncrementMemes(ctx, req.User.ID); incErr != nil {
		logger.Warn(ctx, logger.CompPipeline, "user.counter.fail", logger.Err(incErr))
	}
	_, sessErr := p.deps.Sessions.Update(req.ChatID, func(s *session.Session) error {
		if err := s.Transition(session.StateMemeGenerated); err != nil {
			return err
		}
		s.LastArtifactRef = art.Ref
		return nil
	})
	if sessErr != nil {
		// The chat moved on (e.g. /start) while the job ran; the meme is still delivered.
		logger.Info(ctx, logger.CompPipeline, "session.unchanged",
			slog.String("ref", art.Ref),
			logger.Err(sessErr),
		)
	}
}

func (p *Pipeline) produce(ctx context.Context, req Request, prompt Prompt) (domain.Artifact, error) {
	img, err := p.deps.Generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Artifact{}, &domain.GenerationError{Kind: req.Kind, Err: err}
	}
	if img.Fallback {
		logger.Warn(ctx, logger.CompPipeline, "generator.fallback", slog.String("kind", string(req.Kind)))
	}
	stored, err := p.deps.Storage.Persist(ctx, img)
	if err != nil {
		return domain.Artifact{}, &domain.GenerationError{Kind: req.Kind, Err: fmt.Errorf("persist: %w", err)}
	}
	art := domain.Artifact{
		Ref:         stored.Ref,
		URL:         stored.URL,
		OwnerID:     req.User.ID,
		Kind:        req.Kind,
		Description: prompt.Text,
		TemplateID:  prompt.TemplateID,
		CreatedAt:   p.deps.Now().UTC(),
	}
	if err := p.deps.Memes.Create(ctx, &art); err != nil {
		return domain.Artifact{}, &domain.GenerationError{Kind: req.Kind, Err: fmt.Errorf("save: %w", err)}
	}
	return art, nil
}

// IsUserError reports whether err is a request problem rather than a system failure.
func IsUserError(err error) bool {
	var (
		ve *domain.ValidationError
		le *domain.LimitReachedError
		fe *domain.FeatureDisabledError
	)
	return errors.As(err, &ve) || errors.As(err, &le) || errors.As(err, &fe)
}
