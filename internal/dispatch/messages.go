package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"
	"github.com/m3rciful/memearena/internal/session"
)

// handleMessage routes free text (or a voice message) by the current dialog state.
func (d *Dispatcher) handleMessage(ctx context.Context, r *request, text string) error {
	switch st := r.sess.State; {
	case st == session.StateWaitingForLogin:
		return d.onLogin(ctx, r, text)
	case st == session.StateWaitingForAdminPassword:
		return d.onAdminPassword(ctx, r, text)
	case st == session.StateWaitingForTemplate:
		return d.onTemplateSelected(ctx, r, text)
	case st == session.StateWaitingForTemplateText:
		return d.onTemplateText(ctx, r, text)
	case st == session.StateMemeGenerated:
		return d.onMemeAction(ctx, r, text)
	case st.IsAdmin():
		// Only non-text updates get here; admin text is intercepted earlier.
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), nil)
		return nil
	case st == session.StateWaitingForAIDescription:
		if d.is(text, "common.back") {
			return d.toMainMenu(ctx, r, "menu.main")
		}
		return d.onDescription(ctx, r, text)
	default:
		if name, ok := d.menuCommand(text); ok {
			return d.handleCommand(ctx, r, name)
		}
		return d.onDescription(ctx, r, text)
	}
}

func (d *Dispatcher) toMainMenu(ctx context.Context, r *request, key string) error {
	if err := d.moveTo(r, session.StateIdle); err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t(key), d.mainMenu())
	return nil
}

func (d *Dispatcher) onLogin(ctx context.Context, r *request, text string) error {
	switch {
	case d.is(text, "login.user"):
		return d.toMainMenu(ctx, r, "login.done")
	case d.is(text, "login.admin"):
		if r.user.IsAdmin {
			return d.openAdminMenu(ctx, r)
		}
		if err := d.moveTo(r, session.StateWaitingForAdminPassword); err != nil {
			return err
		}
		d.reply(ctx, r.upd.ChatID, d.t("admin.password.prompt"), nil)
		return nil
	default:
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), d.loginKeyboard())
		return nil
	}
}

func (d *Dispatcher) onAdminPassword(ctx context.Context, r *request, password string) error {
	if d.deps.Auth == nil || !d.deps.Auth.Verify(ctx, password) {
		logger.Warn(ctx, logger.CompDispatch, "admin.login.denied", slog.Int64("user_id", r.user.ID))
		if err := d.moveTo(r, session.StateWaitingForLogin); err != nil {
			return err
		}
		d.reply(ctx, r.upd.ChatID, d.t("admin.access.denied"), d.loginKeyboard())
		return nil
	}
	if err := d.deps.Users.SetAdmin(ctx, r.user.ID, true); err != nil {
		return err
	}
	r.user.IsAdmin = true
	logger.Info(ctx, logger.CompDispatch, "admin.login", slog.Int64("user_id", r.user.ID))
	return d.openAdminMenu(ctx, r)
}

func (d *Dispatcher) onDescription(ctx context.Context, r *request, text string) error {
	if r.upd.Voice != nil {
		return d.generate(ctx, r, meme.Request{Kind: domain.KindVoice, Voice: r.upd.Voice.Data})
	}
	return d.generate(ctx, r, meme.Request{Kind: domain.KindAI, Text: text})
}

func (d *Dispatcher) onTemplateSelected(ctx context.Context, r *request, text string) error {
	if d.is(text, "common.back") {
		return d.toMainMenu(ctx, r, "menu.main")
	}
	if err := meme.ValidateTemplateID(text); err != nil {
		return err
	}
	if _, ok := d.deps.Pipeline.Templates().Get(text); !ok {
		return &domain.ValidationError{Field: meme.FieldTemplate, Reason: "unknown template"}
	}
	err := d.update(r, func(s *session.Session) error {
		if err := s.Transition(session.StateWaitingForTemplateText); err != nil {
			return err
		}
		s.SelectedTemplate = text
		s.TemplateLines = nil
		return nil
	})
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("template.text", text), d.backOnly())
	return nil
}

func (d *Dispatcher) onTemplateText(ctx context.Context, r *request, text string) error {
	if d.is(text, "common.back") {
		if err := d.moveTo(r, session.StateWaitingForTemplate); err != nil {
			return err
		}
		d.reply(ctx, r.upd.ChatID, d.t("template.choose"), d.templateKeyboard())
		return nil
	}
	lines, err := meme.ValidateTemplateText(text)
	if err != nil {
		return err
	}
	err = d.generate(ctx, r, meme.Request{
		Kind:       domain.KindTemplate,
		TemplateID: r.sess.SelectedTemplate,
		Text:       text,
	})
	if err != nil {
		return err
	}
	return d.update(r, func(s *session.Session) error {
		s.TemplateLines = lines
		return nil
	})
}

// onMemeAction handles the reply keyboard shown after a meme was delivered.
func (d *Dispatcher) onMemeAction(ctx context.Context, r *request, text string) error {
	ref := r.sess.LastArtifactRef
	switch {
	case d.is(text, "meme.action.publish"):
		if ref == "" {
			return d.toMainMenu(ctx, r, "meme.none")
		}
		_, err := d.deps.Memes.Publish(ctx, ref, r.user.ID, d.deps.Now().UTC())
		if errors.Is(err, domain.ErrArtifactNotFound) {
			return d.toMainMenu(ctx, r, "meme.not_found")
		}
		if err != nil {
			return err
		}
		return d.toMainMenu(ctx, r, "meme.published")
	case d.is(text, "meme.action.contest"):
		if ref == "" {
			return d.toMainMenu(ctx, r, "meme.none")
		}
		ok, err := d.deps.Contest.Submit(ctx, ref, r.user.ID)
		if err != nil {
			return err
		}
		if !ok {
			return d.toMainMenu(ctx, r, "contest.submit_failed")
		}
		if err := d.toMainMenu(ctx, r, "contest.submitted"); err != nil {
			return err
		}
		d.reply(ctx, r.upd.ChatID, d.deps.Contest.StatusMessage(ctx, d.deps.Text), nil)
		return nil
	case d.is(text, "meme.action.new"), d.is(text, "common.back"):
		return d.toMainMenu(ctx, r, "menu.main")
	default:
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), d.memeMenu())
		return nil
	}
}

// generate schedules a job; the result is delivered from the worker goroutine.
func (d *Dispatcher) generate(ctx context.Context, r *request, req meme.Request) error {
	req.User = r.user
	req.ChatID = r.upd.ChatID
	chatID := req.ChatID
	_, err := d.deps.Pipeline.Generate(ctx, req, func(ctx context.Context, a domain.Artifact, err error) {
		d.deliver(ctx, chatID, a, err)
	})
	if err != nil {
		return err
	}
	d.reply(ctx, chatID, d.t("meme.generating"), nil)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, chatID int64, a domain.Artifact, err error) {
	if err != nil {
		d.fail(ctx, chatID, err)
		return
	}
	if err := d.deps.Sender.SendArtifact(ctx, chatID, a.Ref, d.t("meme.caption"), d.memeButtons(a.Ref)); err != nil {
		logger.Error(ctx, logger.CompDispatch, "artifact.send.fail",
			slog.String("ref", a.Ref),
			logger.Err(err),
		)
		return
	}
	d.reply(ctx, chatID, d.t("meme.actions"), d.memeMenu())
}
