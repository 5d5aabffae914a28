package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"
	"github.com/m3rciful/memearena/internal/session"
)

// keyTargetUser holds the user selected in the admin search.
const keyTargetUser = "admin.target_user"

const (
	adminListLimit = 20
	inactiveAfter  = 30 * 24 * time.Hour
)

func (d *Dispatcher) openAdminMenu(ctx context.Context, r *request) error {
	if err := d.moveTo(r, session.StateAdminMenu); err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("admin.menu"), d.adminMenu())
	return nil
}

// handleAdmin owns free text while the chat is in one of the admin console states.
func (d *Dispatcher) handleAdmin(ctx context.Context, r *request, text string) error {
	if !r.user.IsAdmin {
		logger.Warn(ctx, logger.CompDispatch, "admin.revoked", slog.Int64("user_id", r.user.ID))
		return d.toMainMenu(ctx, r, "admin.access.denied")
	}
	switch r.sess.State {
	case session.StateAdminMenu:
		return d.onAdminMenu(ctx, r, text)
	case session.StateAdminUsersMenu:
		return d.onAdminUsers(ctx, r, text)
	case session.StateAdminUserSearch:
		return d.onAdminSearch(ctx, r, text)
	case session.StateAdminUserDetail:
		return d.onAdminUserDetail(ctx, r, text)
	case session.StateAdminSettingsMenu:
		return d.onAdminSettings(ctx, r, text)
	case session.StateAdminBroadcastCompose:
		return d.onBroadcastCompose(ctx, r, text)
	case session.StateAdminTemplateManagement:
		return d.onTemplateManagement(ctx, r, text)
	}
	return fmt.Errorf("admin handler for state %q", r.sess.State)
}

func (d *Dispatcher) onAdminMenu(ctx context.Context, r *request, text string) error {
	chatID := r.upd.ChatID
	switch {
	case d.is(text, "admin.btn.users"):
		return d.openUsersMenu(ctx, r)
	case d.is(text, "admin.btn.stats"):
		msg, err := d.statsText(ctx)
		if err != nil {
			return err
		}
		d.reply(ctx, chatID, msg, d.adminMenu())
	case d.is(text, "admin.btn.settings"):
		if err := d.moveTo(r, session.StateAdminSettingsMenu); err != nil {
			return err
		}
		d.reply(ctx, chatID, d.settingsText(), d.adminSettingsMenu())
	case d.is(text, "admin.btn.broadcast"):
		if err := d.moveTo(r, session.StateAdminBroadcastCompose); err != nil {
			return err
		}
		d.reply(ctx, chatID, d.t("admin.broadcast.prompt"), d.backOnly())
	case d.is(text, "admin.btn.templates"):
		if err := d.moveTo(r, session.StateAdminTemplateManagement); err != nil {
			return err
		}
		d.reply(ctx, chatID, d.templatesText(), d.backOnly())
	case d.is(text, "admin.btn.end_contest"):
		res, ended, err := d.deps.Contest.AdminForceEnd(ctx)
		if err != nil {
			return err
		}
		if !ended {
			d.reply(ctx, chatID, d.t("admin.contest.empty"), d.adminMenu())
			return nil
		}
		d.reply(ctx, chatID, d.t("admin.contest.ended", res.WinnerUserID, res.WinnerLikes, res.Participants), d.adminMenu())
	case d.is(text, "common.back"):
		return d.toMainMenu(ctx, r, "menu.main")
	default:
		d.reply(ctx, chatID, d.t("command.unknown"), d.adminMenu())
	}
	return nil
}

func (d *Dispatcher) statsText(ctx context.Context) (string, error) {
	now := d.deps.Now().UTC()
	us, err := d.deps.Users.Stats(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return "", fmt.Errorf("user stats: %w", err)
	}
	ms, err := d.deps.Memes.Stats(ctx, domain.StartOfDayUTC(now))
	if err != nil {
		return "", fmt.Errorf("meme stats: %w", err)
	}
	return d.t("admin.stats",
		us.Total, us.Active, us.Premium,
		ms.Total, ms.Today,
		ms.InContest, d.deps.Contest.Required(),
	), nil
}

func (d *Dispatcher) openUsersMenu(ctx context.Context, r *request) error {
	err := d.update(r, func(s *session.Session) error {
		s.Unset(keyTargetUser)
		return s.Transition(session.StateAdminUsersMenu)
	})
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("admin.users.menu"), d.adminUsersMenu())
	return nil
}

func (d *Dispatcher) onAdminUsers(ctx context.Context, r *request, text string) error {
	var (
		users []domain.User
		err   error
	)
	switch {
	case d.is(text, "admin.users.top"):
		users, err = d.deps.Users.TopCreators(ctx, adminListLimit)
	case d.is(text, "admin.users.premium"):
		users, err = d.deps.Users.Premium(ctx, adminListLimit)
	case d.is(text, "admin.users.inactive"):
		users, err = d.deps.Users.InactiveSince(ctx, d.deps.Now().UTC().Add(-inactiveAfter), adminListLimit)
	case d.is(text, "admin.users.search"):
		if err := d.moveTo(r, session.StateAdminUserSearch); err != nil {
			return err
		}
		d.reply(ctx, r.upd.ChatID, d.t("admin.search.prompt"), d.backOnly())
		return nil
	case d.is(text, "common.back"):
		return d.openAdminMenu(ctx, r)
	default:
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), d.adminUsersMenu())
		return nil
	}
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.userLines(users), d.adminUsersMenu())
	return nil
}

func (d *Dispatcher) userLines(users []domain.User) string {
	if len(users) == 0 {
		return d.t("admin.users.empty")
	}
	lines := make([]string, len(users))
	for i, u := range users {
		lines[i] = d.t("admin.users.line", u.DisplayName(), u.ID, u.TotalMemes, u.TotalLikes)
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) onAdminSearch(ctx context.Context, r *request, text string) error {
	if d.is(text, "common.back") {
		return d.openUsersMenu(ctx, r)
	}
	var (
		target domain.User
		err    error
	)
	if id, convErr := strconv.ParseInt(text, 10, 64); convErr == nil {
		target, err = d.deps.Users.Get(ctx, id)
	} else {
		target, err = d.deps.Users.FindByUsername(ctx, strings.TrimPrefix(text, "@"))
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		d.reply(ctx, r.upd.ChatID, d.t("admin.search.not_found"), d.backOnly())
		return nil
	}
	if err != nil {
		return err
	}
	err = d.update(r, func(s *session.Session) error {
		if err := s.Transition(session.StateAdminUserDetail); err != nil {
			return err
		}
		s.Set(keyTargetUser, strconv.FormatInt(target.ID, 10))
		return nil
	})
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.userDetail(target), d.adminUserMenu())
	return nil
}

func (d *Dispatcher) userDetail(u domain.User) string {
	return d.t("admin.user.detail", u.DisplayName(), u.ID, u.IsPremium, u.IsAdmin, u.TotalMemes, u.TotalLikes)
}

func (d *Dispatcher) onAdminUserDetail(ctx context.Context, r *request, text string) error {
	if d.is(text, "common.back") {
		return d.openUsersMenu(ctx, r)
	}
	raw, _ := r.sess.Get(keyTargetUser)
	targetID, convErr := strconv.ParseInt(raw, 10, 64)
	if convErr != nil {
		return d.openUsersMenu(ctx, r)
	}
	target, err := d.deps.Users.Get(ctx, targetID)
	if errors.Is(err, domain.ErrUserNotFound) {
		d.reply(ctx, r.upd.ChatID, d.t("admin.search.not_found"), nil)
		return d.openUsersMenu(ctx, r)
	}
	if err != nil {
		return err
	}

	self := target.ID == r.user.ID
	switch {
	case d.is(text, "admin.user.toggle_premium"):
		if err := d.deps.Users.SetPremium(ctx, target.ID, !target.IsPremium, d.deps.Now().UTC()); err != nil {
			return err
		}
	case d.is(text, "admin.user.toggle_admin"):
		if self {
			d.reply(ctx, r.upd.ChatID, d.t("admin.user.self"), d.adminUserMenu())
			return nil
		}
		if err := d.deps.Users.SetAdmin(ctx, target.ID, !target.IsAdmin); err != nil {
			return err
		}
	case d.is(text, "admin.user.delete"):
		if self {
			d.reply(ctx, r.upd.ChatID, d.t("admin.user.self"), d.adminUserMenu())
			return nil
		}
		if err := d.deps.Users.Delete(ctx, target.ID); err != nil {
			return err
		}
		// Private chats share the user id.
		d.deps.Sessions.Remove(target.ID)
		logger.Info(ctx, logger.CompDispatch, "admin.user.deleted", slog.Int64("target_id", target.ID))
		d.reply(ctx, r.upd.ChatID, d.t("admin.user.deleted"), nil)
		return d.openUsersMenu(ctx, r)
	default:
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), d.adminUserMenu())
		return nil
	}

	updated, err := d.deps.Users.Get(ctx, target.ID)
	if err != nil {
		return err
	}
	logger.Info(ctx, logger.CompDispatch, "admin.user.updated",
		slog.Int64("target_id", updated.ID),
		slog.Bool("premium", updated.IsPremium),
		slog.Bool("admin", updated.IsAdmin),
	)
	d.reply(ctx, r.upd.ChatID, d.userDetail(updated), d.adminUserMenu())
	return nil
}

func (d *Dispatcher) settingsText() string {
	f := d.deps.Pipeline.Features()
	return d.t("admin.settings.menu", d.onOff(f.Enabled(domain.KindAI)), d.onOff(f.Enabled(domain.KindVoice)))
}

func (d *Dispatcher) onOff(on bool) string {
	if on {
		return d.t("admin.settings.on")
	}
	return d.t("admin.settings.off")
}

func (d *Dispatcher) onAdminSettings(ctx context.Context, r *request, text string) error {
	var kind domain.Kind
	switch {
	case d.is(text, "admin.settings.toggle_ai"):
		kind = domain.KindAI
	case d.is(text, "admin.settings.toggle_voice"):
		kind = domain.KindVoice
	case d.is(text, "common.back"):
		return d.openAdminMenu(ctx, r)
	default:
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), d.adminSettingsMenu())
		return nil
	}
	on := d.deps.Pipeline.Features().Toggle(kind)
	logger.Info(ctx, logger.CompDispatch, "admin.feature.toggled",
		slog.String("kind", string(kind)),
		slog.Bool("enabled", on),
	)
	d.reply(ctx, r.upd.ChatID, d.settingsText(), d.adminSettingsMenu())
	return nil
}

// onBroadcastCompose sends text to every user in the background and reports back to the admin.
func (d *Dispatcher) onBroadcastCompose(ctx context.Context, r *request, text string) error {
	if d.is(text, "common.back") {
		return d.openAdminMenu(ctx, r)
	}
	if strings.TrimSpace(text) == "" {
		d.reply(ctx, r.upd.ChatID, d.t("admin.broadcast.empty"), d.backOnly())
		return nil
	}
	ids, err := d.deps.Users.IDs(ctx)
	if err != nil {
		return fmt.Errorf("list recipients: %w", err)
	}
	if err := d.moveTo(r, session.StateAdminMenu); err != nil {
		return err
	}
	adminChat := r.upd.ChatID
	d.reply(ctx, adminChat, d.t("admin.broadcast.started", len(ids)), d.adminMenu())

	// Outlives the update, ends with Shutdown.
	bctx, cancel := context.WithCancel(logger.Detach(ctx))
	stop := context.AfterFunc(d.bgCtx, cancel)
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		defer cancel()
		defer stop()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(bctx, logger.CompBroadcast, "broadcast.panic", slog.Any("panic", rec))
			}
		}()
		rep := d.deps.Broadcaster.Run(bctx, ids, func(ctx context.Context, chatID int64) error {
			return d.deps.Sender.SendText(ctx, chatID, text, nil)
		})
		if bctx.Err() != nil {
			logger.Warn(bctx, logger.CompBroadcast, "broadcast.interrupted",
				slog.Int("total", rep.Total),
				slog.Int("sent", rep.Sent),
				slog.Int("failed", rep.Failed),
			)
			return
		}
		d.reply(bctx, adminChat, d.t("admin.broadcast.report", rep.Total, rep.Sent, rep.Failed), nil)
	}()
	return nil
}

func (d *Dispatcher) templatesText() string {
	list := d.deps.Pipeline.Templates().List()
	lines := make([]string, len(list))
	for i, tpl := range list {
		lines[i] = tpl.ID + ": " + tpl.Title
	}
	return d.t("admin.templates.menu", strings.Join(lines, "\n"))
}

// onTemplateManagement accepts "+id Title" and "-id".
func (d *Dispatcher) onTemplateManagement(ctx context.Context, r *request, text string) error {
	chatID := r.upd.ChatID
	if d.is(text, "common.back") {
		return d.openAdminMenu(ctx, r)
	}
	templates := d.deps.Pipeline.Templates()
	switch {
	case strings.HasPrefix(text, "+"):
		id, title, _ := strings.Cut(strings.TrimSpace(text[1:]), " ")
		if err := templates.Add(meme.Template{ID: id, Title: strings.TrimSpace(title)}); err != nil {
			d.reply(ctx, chatID, d.t("admin.templates.usage"), d.backOnly())
			return nil
		}
		d.reply(ctx, chatID, d.t("admin.templates.added", id), nil)
	case strings.HasPrefix(text, "-"):
		id := strings.TrimSpace(text[1:])
		if !templates.Remove(id) {
			d.reply(ctx, chatID, d.t("admin.templates.missing", id), d.backOnly())
			return nil
		}
		d.reply(ctx, chatID, d.t("admin.templates.removed", id), nil)
	default:
		d.reply(ctx, chatID, d.t("admin.templates.usage"), d.backOnly())
		return nil
	}
	d.reply(ctx, chatID, d.templatesText(), d.backOnly())
	return nil
}

// NotifyWinner tells the owner of the winning meme about the result.
func (d *Dispatcher) NotifyWinner(ctx context.Context, res domain.ContestResult) {
	key := "contest.winner.already_premium"
	if res.PremiumGranted {
		key = "contest.winner"
	}
	d.reply(ctx, res.WinnerUserID, d.t(key, res.WinnerLikes), nil)
}
