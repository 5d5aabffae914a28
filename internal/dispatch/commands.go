package dispatch

import (
	"context"
	"strings"

	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/session"
)

type command struct {
	name        string
	description string
	// hidden commands work but are left out of the bot menu.
	hidden bool
	run    func(ctx context.Context, r *request) error
}

// CommandInfo describes a command for the bot menu.
type CommandInfo struct {
	Name        string
	Description string
}

func (d *Dispatcher) registerCommands() {
	d.ordered = []command{
		{name: "start", description: "Sign in and start over", run: d.cmdStart},
		{name: "help", description: "What this bot can do", run: d.cmdHelp},
		{name: "ai", description: "Generate a meme from a description", run: d.cmdAI},
		{name: "template", description: "Caption a meme template", run: d.cmdTemplate},
		{name: "contest", description: "Contest status and entries", run: d.cmdContest},
		{name: "premium", description: "Your premium status", run: d.cmdPremium},
		{name: "mymemes", description: "Your memes", run: d.cmdMyMemes},
		{name: "admin", description: "Admin console", hidden: true, run: d.cmdAdmin},
	}
	d.commands = make(map[string]command, len(d.ordered))
	for _, c := range d.ordered {
		d.commands[c.name] = c
	}
}

// Commands lists the visible commands in menu order.
func (d *Dispatcher) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(d.ordered))
	for _, c := range d.ordered {
		if c.hidden {
			continue
		}
		out = append(out, CommandInfo{Name: c.name, Description: c.description})
	}
	return out
}

func isCommand(text string) bool {
	return len(text) > 1 && text[0] == '/'
}

// commandName extracts "ai" from "/ai", "/AI@memebot" or "/ai extra words".
func commandName(text string) string {
	name := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// menuCommands maps main menu labels to the commands they stand for.
var menuCommands = []struct{ label, command string }{
	{"menu.ai", "ai"},
	{"menu.template", "template"},
	{"menu.contest", "contest"},
	{"menu.mymemes", "mymemes"},
	{"menu.premium", "premium"},
	{"menu.help", "help"},
}

func (d *Dispatcher) menuCommand(text string) (string, bool) {
	for _, m := range menuCommands {
		if d.is(text, m.label) {
			return m.command, true
		}
	}
	return "", false
}

func (d *Dispatcher) handleCommand(ctx context.Context, r *request, name string) error {
	if name != "start" {
		err := d.update(r, func(s *session.Session) error {
			s.LastCommand = "/" + name
			return nil
		})
		if err != nil {
			return err
		}
	}
	cmd, ok := d.commands[name]
	if !ok {
		d.reply(ctx, r.upd.ChatID, d.t("command.unknown"), nil)
		return nil
	}
	return cmd.run(ctx, r)
}

func (d *Dispatcher) cmdStart(ctx context.Context, r *request) error {
	err := d.update(r, func(s *session.Session) error {
		s.Reset()
		s.LastCommand = "/start"
		return s.Transition(session.StateWaitingForLogin)
	})
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("start.welcome"), d.loginKeyboard())
	return nil
}

func (d *Dispatcher) cmdHelp(ctx context.Context, r *request) error {
	d.reply(ctx, r.upd.ChatID, d.t("help.text"), d.mainMenu())
	return nil
}

func (d *Dispatcher) cmdAI(ctx context.Context, r *request) error {
	if !d.deps.Pipeline.Features().Enabled(domain.KindAI) {
		return &domain.FeatureDisabledError{Kind: domain.KindAI}
	}
	if err := d.moveTo(r, session.StateWaitingForAIDescription); err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("ai.prompt"), d.backOnly())
	return nil
}

func (d *Dispatcher) cmdTemplate(ctx context.Context, r *request) error {
	if len(d.deps.Pipeline.Templates().IDs()) == 0 {
		d.reply(ctx, r.upd.ChatID, d.t("template.empty"), nil)
		return nil
	}
	if err := d.moveTo(r, session.StateWaitingForTemplate); err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("template.choose"), d.templateKeyboard())
	return nil
}

func (d *Dispatcher) cmdContest(ctx context.Context, r *request) error {
	d.reply(ctx, r.upd.ChatID, d.deps.Contest.StatusMessage(ctx, d.deps.Text), nil)
	return d.showContest(ctx, r, 1)
}

func (d *Dispatcher) cmdPremium(ctx context.Context, r *request) error {
	if r.user.IsPremium {
		since := "-"
		if r.user.PremiumSince != nil {
			since = r.user.PremiumSince.UTC().Format("2006-01-02")
		}
		d.reply(ctx, r.upd.ChatID, d.t("premium.active", since), nil)
		return nil
	}
	d.reply(ctx, r.upd.ChatID, d.t("premium.inactive"), nil)
	return nil
}

func (d *Dispatcher) cmdMyMemes(ctx context.Context, r *request) error {
	return d.showMyMemes(ctx, r, 1)
}

// cmdAdmin opens the console for admins and asks everyone else for the password.
func (d *Dispatcher) cmdAdmin(ctx context.Context, r *request) error {
	if r.user.IsAdmin {
		return d.openAdminMenu(ctx, r)
	}
	err := d.update(r, func(s *session.Session) error {
		if err := s.Transition(session.StateWaitingForLogin); err != nil {
			return err
		}
		return s.Transition(session.StateWaitingForAdminPassword)
	})
	if err != nil {
		return err
	}
	d.reply(ctx, r.upd.ChatID, d.t("admin.password.prompt"), nil)
	return nil
}
