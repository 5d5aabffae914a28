package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/memearena/core/config"
	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/broadcast"
	"github.com/m3rciful/memearena/internal/contest"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"
	"github.com/m3rciful/memearena/internal/session"
)

// Deps wires a Dispatcher.
type Deps struct {
	Sessions    *session.Store
	Users       domain.UserRepository
	Memes       domain.MemeRepository
	Pipeline    *meme.Pipeline
	Contest     *contest.Tracker
	Broadcaster *broadcast.Broadcaster
	Sender      Sender
	Text        Localizer
	Auth        AdminAuth
	Now         func() time.Time
}

// Dispatcher routes updates to handlers. It is safe for concurrent use.
type Dispatcher struct {
	deps     Deps
	commands map[string]command
	ordered  []command

	bg     sync.WaitGroup
	bgCtx  context.Context
	stopBg context.CancelFunc
}

// request carries one update through the handlers.
type request struct {
	upd  Update
	user domain.User
	sess session.Session
	// ack is the text shown when the callback is answered.
	ack string
}

// New builds a Dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = broadcast.New(config.BroadcastConfig{})
	}
	d := &Dispatcher{deps: deps}
	d.bgCtx, d.stopBg = context.WithCancel(context.Background())
	d.registerCommands()
	return d
}

// Handle processes one update. Handler errors become localized replies, panics are
// recovered, and callbacks are answered whatever happens.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	start := time.Now()
	r := &request{upd: u}
	handler := "message"
	if u.Callback != nil {
		handler = "callback"
	}

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			logger.Error(ctx, logger.CompDispatch, "dispatch.panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			d.reply(ctx, u.ChatID, d.t("common.error"), nil)
		}
		if u.Callback != nil {
			if ackErr := d.deps.Sender.AnswerCallback(ctx, u.Callback.ID, r.ack); ackErr != nil {
				logger.Warn(ctx, logger.CompDispatch, "callback.answer.fail", logger.Err(ackErr))
			}
		}
		logHandled(ctx, handler, start, err)
	}()

	handler, err = d.route(ctx, r)
	if err != nil {
		d.fail(ctx, u.ChatID, err)
	}
}

// Wait blocks until background work started by handlers (broadcasts) has finished.
func (d *Dispatcher) Wait() {
	d.bg.Wait()
}

// Shutdown cancels running broadcasts and waits for them to return. Recipients not
// reached yet are counted as failed.
func (d *Dispatcher) Shutdown() {
	d.stopBg()
	d.bg.Wait()
}

func (d *Dispatcher) route(ctx context.Context, r *request) (string, error) {
	u := r.upd
	user, err := d.deps.Users.Touch(ctx, u.From, d.deps.Now().UTC())
	if err != nil {
		return "touch", fmt.Errorf("touch user: %w", err)
	}
	r.user = user
	r.sess = d.deps.Sessions.GetOrCreate(u.ChatID)

	text := strings.TrimSpace(u.Text)
	switch {
	case u.Callback != nil:
		return "callback", d.handleCallback(ctx, r)
	case r.sess.State.IsAdmin() && text != "" && !isCommand(text):
		return "admin", d.handleAdmin(ctx, r, text)
	case isCommand(text):
		name := commandName(text)
		return "/" + name, d.handleCommand(ctx, r, name)
	default:
		return "message", d.handleMessage(ctx, r, text)
	}
}

// update applies fn to the chat session and refreshes the request snapshot.
func (d *Dispatcher) update(r *request, fn func(*session.Session) error) error {
	s, err := d.deps.Sessions.Update(r.upd.ChatID, fn)
	r.sess = s
	return err
}

// moveTo transitions the chat to st.
func (d *Dispatcher) moveTo(r *request, st session.State) error {
	return d.update(r, func(s *session.Session) error { return s.Transition(st) })
}

func (d *Dispatcher) t(key string, args ...any) string {
	return d.deps.Text.Text(key, args...)
}

// is reports whether text is the label of the catalog entry key.
func (d *Dispatcher) is(text, key string) bool {
	return text == d.t(key)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, kb *Keyboard) {
	if err := d.deps.Sender.SendText(ctx, chatID, text, kb); err != nil {
		logger.Warn(ctx, logger.CompDispatch, "reply.fail", logger.Err(err))
	}
}

// fail answers a handler error with its localized message. The session is left untouched.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, err error) {
	if !isUserError(err) {
		logger.Error(ctx, logger.CompDispatch, "handler.fail",
			slog.String("err_code", domain.CodeOf(err)),
			logger.Err(err),
		)
	}
	d.reply(ctx, chatID, d.errorText(err), nil)
}

func (d *Dispatcher) errorText(err error) string {
	var (
		ve *domain.ValidationError
		le *domain.LimitReachedError
		fe *domain.FeatureDisabledError
		ge *domain.GenerationError
		ae *domain.AuthDeniedError
	)
	switch {
	case errors.As(err, &ve):
		return d.t("validation." + ve.Field)
	case errors.As(err, &le):
		return d.t("meme.error."+string(le.Kind)+".limit", le.ResetsAt.UTC().Format("2006-01-02 15:04"))
	case errors.As(err, &fe):
		return d.t("meme.error." + string(fe.Kind) + ".disabled")
	case errors.As(err, &ge):
		return d.t("meme.error." + string(ge.Kind))
	case errors.As(err, &ae):
		return d.t("admin.access.denied")
	default:
		return d.t("common.error")
	}
}

// isUserError reports errors caused by the request rather than the system.
func isUserError(err error) bool {
	var (
		pe *domain.ParseError
		ae *domain.AuthDeniedError
	)
	return meme.IsUserError(err) || errors.As(err, &pe) || errors.As(err, &ae)
}
