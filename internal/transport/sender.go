// Package transport adapts telebot updates and Bot API calls to the dispatcher.
package transport

import (
	"context"
	"io"
	"strings"

	"github.com/m3rciful/memearena/core/telegram/keyboard"
	tgsender "github.com/m3rciful/memearena/core/telegram/sender"
	"github.com/m3rciful/memearena/internal/dispatch"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the transport uses.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	File(file *tele.File) (io.ReadCloser, error)
}

// Locator resolves a stored artifact ref to a public URL or a local path.
type Locator interface {
	URL(ref string) string
}

// Sender delivers dispatcher output through the Bot API.
type Sender struct {
	api     API
	outbox  *tgsender.Outbox
	locator Locator
}

var _ dispatch.Sender = (*Sender)(nil)

// NewSender builds a Sender. Messages go out inline with retries; callback answers are queued.
func NewSender(api API, outbox *tgsender.Outbox, locator Locator) *Sender {
	return &Sender{api: api, outbox: outbox, locator: locator}
}

// SendText sends a text message.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string, kb *dispatch.Keyboard) error {
	opts := markupOpts(kb)
	return s.outbox.Do(ctx, "send.text", "sendMessage", func(context.Context) error {
		_, err := s.api.Send(tele.ChatID(chatID), text, opts...)
		return err
	})
}

// SendArtifact sends a stored meme as a photo.
func (s *Sender) SendArtifact(ctx context.Context, chatID int64, ref, caption string, kb *dispatch.Keyboard) error {
	opts := markupOpts(kb)
	photo := &tele.Photo{File: s.file(ref), Caption: caption}
	return s.outbox.Do(ctx, "send.photo", "sendPhoto", func(context.Context) error {
		_, err := s.api.Send(tele.ChatID(chatID), photo, opts...)
		return err
	})
}

// AnswerCallback acknowledges a button press, showing text as a toast when non-empty.
func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return s.outbox.Enqueue(ctx, "callback.answer", "answerCallbackQuery", func(context.Context) error {
		return s.api.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
	})
}

func (s *Sender) file(ref string) tele.File {
	loc := ref
	if s.locator != nil {
		loc = s.locator.URL(ref)
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return tele.FromURL(loc)
	}
	return tele.FromDisk(loc)
}

func markupOpts(kb *dispatch.Keyboard) []interface{} {
	if kb == nil {
		return nil
	}
	inline := make([][]keyboard.InlineBtn, len(kb.Inline))
	for i, row := range kb.Inline {
		inline[i] = make([]keyboard.InlineBtn, len(row))
		for j, b := range row {
			inline[i][j] = keyboard.InlineBtn{Text: b.Text, Data: b.Data}
		}
	}
	if m := keyboard.Merge(inline, kb.Reply); m != nil {
		return []interface{}{m}
	}
	return nil
}
