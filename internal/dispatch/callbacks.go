package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/memearena/core/logger"
	"github.com/m3rciful/memearena/internal/callback"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/session"
)

const pageSize = 5

func (d *Dispatcher) handleCallback(ctx context.Context, r *request) error {
	p, err := callback.Decode(r.upd.Callback.Data)
	if err != nil {
		r.ack = d.t("common.error")
		return err
	}
	switch p.Action {
	case callback.ActionPublish:
		return d.onPublishCallback(ctx, r, p.Ref)
	case callback.ActionContest:
		return d.onContestCallback(ctx, r, p.Ref)
	case callback.ActionVote:
		return d.onVote(ctx, r, p.ID)
	case callback.ActionPage:
		return d.onPage(ctx, r, p)
	case callback.ActionNew, callback.ActionBack:
		return d.toMainMenu(ctx, r, "menu.main")
	}
	r.ack = d.t("common.error")
	return &domain.ParseError{Data: r.upd.Callback.Data, Reason: "unhandled action"}
}

func (d *Dispatcher) onPublishCallback(ctx context.Context, r *request, ref string) error {
	_, err := d.deps.Memes.Publish(ctx, ref, r.user.ID, d.deps.Now().UTC())
	if errors.Is(err, domain.ErrArtifactNotFound) {
		r.ack = d.t("meme.not_found")
		return nil
	}
	if err != nil {
		return err
	}
	r.ack = d.t("meme.published")
	if r.sess.State == session.StateMemeGenerated && r.sess.LastArtifactRef == ref {
		return d.toMainMenu(ctx, r, "meme.published")
	}
	return nil
}

func (d *Dispatcher) onContestCallback(ctx context.Context, r *request, ref string) error {
	ok, err := d.deps.Contest.Submit(ctx, ref, r.user.ID)
	if err != nil {
		return err
	}
	if !ok {
		r.ack = d.t("contest.submit_failed")
		return nil
	}
	r.ack = d.t("contest.submitted")
	d.reply(ctx, r.upd.ChatID, d.deps.Contest.StatusMessage(ctx, d.deps.Text), nil)
	return nil
}

// onVote likes a meme. An unknown id is answered gracefully and leaves the session alone.
func (d *Dispatcher) onVote(ctx context.Context, r *request, id int64) error {
	a, err := d.deps.Memes.Like(ctx, id)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		r.ack = d.t("vote.not_found")
		return nil
	}
	if err != nil {
		return err
	}
	if err := d.deps.Users.AddLikes(ctx, a.OwnerID, 1); err != nil {
		logger.Warn(ctx, logger.CompDispatch, "vote.owner_likes.fail",
			slog.Int64("meme_id", a.ID),
			logger.Err(err),
		)
	}
	r.ack = d.t("vote.ok")
	return nil
}

func (d *Dispatcher) onPage(ctx context.Context, r *request, p callback.Payload) error {
	switch p.PageType {
	case callback.PageContest:
		return d.showContest(ctx, r, p.Page)
	case callback.PageMemes:
		return d.showMyMemes(ctx, r, p.Page)
	}
	r.ack = d.t("common.error")
	return &domain.ParseError{Data: r.upd.Callback.Data, Reason: fmt.Sprintf("unknown page type %q", p.PageType)}
}

// lister loads one page of memes and the total count.
type lister func(ctx context.Context, offset, limit int) ([]domain.Artifact, int, error)

// loadPage fetches page (1-based), clamping it to the last page.
func loadPage(ctx context.Context, list lister, page int) ([]domain.Artifact, int, int, error) {
	items, total, err := list(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, 0, err
	}
	pages := (total + pageSize - 1) / pageSize
	if len(items) == 0 && total > 0 && page > pages {
		page = pages
		items, total, err = list(ctx, (page-1)*pageSize, pageSize)
		if err != nil {
			return nil, 0, 0, err
		}
		pages = (total + pageSize - 1) / pageSize
	}
	return items, page, pages, nil
}

func (d *Dispatcher) showContest(ctx context.Context, r *request, page int) error {
	items, page, pages, err := loadPage(ctx, d.deps.Memes.ListContest, page)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		d.reply(ctx, r.upd.ChatID, d.t("contest.empty"), nil)
		return nil
	}
	lines := []string{d.t("contest.page", page, pages)}
	kb := &Keyboard{}
	var votes []Button
	for _, a := range items {
		lines = append(lines, d.t("contest.entry", a.ID, a.LikeCount))
		votes = append(votes, Button{Text: d.t("vote.button", a.ID), Data: callback.Vote(a.ID)})
	}
	kb.Inline = append(kb.Inline, votes)
	d.pager(kb, callback.PageContest, page, pages)
	d.reply(ctx, r.upd.ChatID, strings.Join(lines, "\n"), kb)
	return nil
}

func (d *Dispatcher) showMyMemes(ctx context.Context, r *request, page int) error {
	owner := r.user.ID
	list := func(ctx context.Context, offset, limit int) ([]domain.Artifact, int, error) {
		return d.deps.Memes.ListByOwner(ctx, owner, offset, limit)
	}
	items, page, pages, err := loadPage(ctx, list, page)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		d.reply(ctx, r.upd.ChatID, d.t("mymemes.empty"), nil)
		return nil
	}
	lines := []string{d.t("mymemes.page", page, pages)}
	for _, a := range items {
		lines = append(lines, d.t("mymemes.entry", a.ID, a.Kind, a.LikeCount, a.CreatedAt.UTC().Format("2006-01-02")))
	}
	kb := &Keyboard{}
	d.pager(kb, callback.PageMemes, page, pages)
	if len(kb.Inline) == 0 {
		kb = nil
	}
	d.reply(ctx, r.upd.ChatID, strings.Join(lines, "\n"), kb)
	return nil
}
