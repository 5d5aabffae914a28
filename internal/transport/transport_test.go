package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/core/netutil"
	tgsender "github.com/m3rciful/memearena/core/telegram/sender"
	"github.com/m3rciful/memearena/internal/dispatch"
	"github.com/m3rciful/memearena/internal/meme"

	tele "gopkg.in/telebot.v4"
)

type sentMsg struct {
	to   tele.Recipient
	what interface{}
	opts []interface{}
}

type fakeAPI struct {
	mu       sync.Mutex
	sent     []sentMsg
	answered []string
	voice    []byte
	fetched  int
}

func (a *fakeAPI) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, sentMsg{to: to, what: what, opts: opts})
	return &tele.Message{}, nil
}

func (a *fakeAPI) Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	text := ""
	if len(resp) > 0 {
		text = resp[0].Text
	}
	a.answered = append(a.answered, c.ID+"="+text)
	return nil
}

func (a *fakeAPI) File(*tele.File) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetched++
	return io.NopCloser(bytes.NewReader(a.voice)), nil
}

type locator map[string]string

func (l locator) URL(ref string) string { return l[ref] }

func newSender(t *testing.T, api API, loc Locator) *Sender {
	t.Helper()
	outbox := tgsender.New(tgsender.Options{
		Workers: 1,
		Backoff: netutil.Backoff{Attempts: 1},
	})
	t.Cleanup(outbox.Close)
	return NewSender(api, outbox, loc)
}

func TestToUpdateStripsCallbackPrefix(t *testing.T) {
	upd, err := ToUpdate(&fakeAPI{}, tele.Update{
		ID: 9,
		Callback: &tele.Callback{
			ID:      "cb",
			Sender:  &tele.User{ID: 42, Username: "neo"},
			Data:    "\fvote:3",
			Message: &tele.Message{ID: 77, Chat: &tele.Chat{ID: 42}},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, upd.Callback)
	assert.Equal(t, "vote:3", upd.Callback.Data)
	assert.Equal(t, 77, upd.Callback.MessageID)
	assert.Equal(t, int64(42), upd.ChatID)
	assert.Equal(t, "neo", upd.From.Username)
}

func TestToUpdateText(t *testing.T) {
	upd, err := ToUpdate(&fakeAPI{}, tele.Update{
		ID: 1,
		Message: &tele.Message{
			Sender: &tele.User{ID: 5, FirstName: "Ada"},
			Chat:   &tele.Chat{ID: 5},
			Text:   "/ai",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "/ai", upd.Text)
	assert.Nil(t, upd.Voice)
	assert.Equal(t, "Ada", upd.From.FirstName)
}

func TestToUpdateVoiceIsCappedPastLimit(t *testing.T) {
	api := &fakeAPI{voice: make([]byte, meme.MaxVoiceBytes+10)}
	upd, err := ToUpdate(api, tele.Update{
		Message: &tele.Message{
			Sender: &tele.User{ID: 5},
			Voice:  &tele.Voice{Duration: 3},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, upd.Voice)
	assert.Len(t, upd.Voice.Data, meme.MaxVoiceBytes+1)
	assert.Equal(t, 3, upd.Voice.Duration)
	assert.Error(t, meme.ValidateVoice(upd.Voice.Data))
}

func TestToUpdateSkipsDownloadForOversizedVoice(t *testing.T) {
	api := &fakeAPI{}
	voice := &tele.Voice{}
	voice.FileSize = meme.MaxVoiceBytes + 1
	upd, err := ToUpdate(api, tele.Update{
		Message: &tele.Message{Sender: &tele.User{ID: 5}, Voice: voice},
	})

	require.NoError(t, err)
	assert.Empty(t, upd.Voice.Data)
	assert.Zero(t, api.fetched)
}

func TestToUpdateRejectsUnknownKinds(t *testing.T) {
	_, err := ToUpdate(&fakeAPI{}, tele.Update{ID: 3})
	assert.Error(t, err)
}

func TestSendArtifactPicksURLOrDisk(t *testing.T) {
	api := &fakeAPI{}
	s := newSender(t, api, locator{
		"a.png": "https://cdn.example.org/a.png",
		"b.png": "/var/memes/b.png",
	})
	ctx := context.Background()

	require.NoError(t, s.SendArtifact(ctx, 1, "a.png", "caption", &dispatch.Keyboard{
		Inline: [][]dispatch.Button{{{Text: "📢", Data: "publish:a.png"}}},
	}))
	require.NoError(t, s.SendArtifact(ctx, 1, "b.png", "", nil))

	require.Len(t, api.sent, 2)
	first := api.sent[0].what.(*tele.Photo)
	assert.Equal(t, "https://cdn.example.org/a.png", first.FileURL)
	assert.Equal(t, "caption", first.Caption)
	require.Len(t, api.sent[0].opts, 1)
	markup := api.sent[0].opts[0].(*tele.ReplyMarkup)
	assert.Equal(t, "publish:a.png", markup.InlineKeyboard[0][0].Data)

	second := api.sent[1].what.(*tele.Photo)
	assert.Equal(t, "/var/memes/b.png", second.FileLocal)
	assert.Empty(t, api.sent[1].opts)
}

func TestSendTextWithReplyKeyboard(t *testing.T) {
	api := &fakeAPI{}
	s := newSender(t, api, nil)

	require.NoError(t, s.SendText(context.Background(), 7, "hi", &dispatch.Keyboard{Reply: [][]string{{"a", "b"}}}))

	require.Len(t, api.sent, 1)
	assert.Equal(t, tele.ChatID(7), api.sent[0].to)
	assert.Equal(t, "hi", api.sent[0].what)
	markup := api.sent[0].opts[0].(*tele.ReplyMarkup)
	assert.Len(t, markup.ReplyKeyboard[0], 2)
}

func TestAnswerCallbackIsQueued(t *testing.T) {
	api := &fakeAPI{}
	s := newSender(t, api, nil)

	require.NoError(t, s.AnswerCallback(context.Background(), "cb1", "Vote counted."))

	assert.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.answered) == 1 && api.answered[0] == "cb1=Vote counted."
	}, 2*time.Second, 5*time.Millisecond)
}

type recordingHandler struct {
	mu      sync.Mutex
	updates []dispatch.Update
}

func (h *recordingHandler) Handle(_ context.Context, u dispatch.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
}

func TestRoutesForwardToHandler(t *testing.T) {
	h := &recordingHandler{}
	routes := Routes(&fakeAPI{}, h)
	require.Len(t, routes, 3)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)

	c := tele.NewContext(nil, tele.Update{
		ID:      4,
		Message: &tele.Message{Sender: &tele.User{ID: 3}, Chat: &tele.Chat{ID: 3}, Text: "hello"},
	})
	require.NoError(t, routes[0].Handler(c))

	require.Len(t, h.updates, 1)
	assert.Equal(t, "hello", h.updates[0].Text)
	assert.Equal(t, int64(3), h.updates[0].ChatID)
}

func TestBotCommands(t *testing.T) {
	cmds := BotCommands([]dispatch.CommandInfo{{Name: "ai", Description: "Generate"}})
	assert.Equal(t, []tele.Command{{Text: "ai", Description: "Generate"}}, cmds)
}
