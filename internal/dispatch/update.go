// Package dispatch classifies inbound chat updates and routes them to the state-aware
// command, message, callback and admin handlers.
package dispatch

import (
	"context"

	"github.com/m3rciful/memearena/internal/domain"
)

// Update is one inbound chat event.
type Update struct {
	ID       int
	ChatID   int64
	From     domain.Profile
	Text     string
	Voice    *Voice
	Callback *Callback
}

// Voice is an audio message already fetched by the transport.
type Voice struct {
	Data     []byte
	Duration int
}

// Callback is an inline button press. It must always be answered.
type Callback struct {
	ID        string
	MessageID int
	Data      string
}

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard describes optional reply markup. Inline rows take precedence over Reply rows.
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
}

// Sender delivers outbound messages.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) error
	SendArtifact(ctx context.Context, chatID int64, ref, caption string, kb *Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Localizer renders catalog messages.
type Localizer interface {
	Text(key string, args ...any) string
}

// AdminAuth checks the admin password.
type AdminAuth interface {
	Verify(ctx context.Context, password string) bool
}
