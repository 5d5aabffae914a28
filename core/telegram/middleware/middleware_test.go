package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func messageCtx(userID int64, chatType tele.ChatType) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 1,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: chatType},
			Text:   "hi",
		},
	})
}

func callbackCtx(userID int64) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 2,
		Callback: &tele.Callback{
			ID:     "cb",
			Sender: &tele.User{ID: userID},
			Data:   "vote:1",
		},
	})
}

func counting(n *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*n++
		return nil
	}
}

func TestRateLimitDropsBurstPerUser(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: counting(&limited),
	})
	h := mw(counting(&handled))

	require.NoError(t, h(messageCtx(1, tele.ChatPrivate)))
	require.NoError(t, h(messageCtx(1, tele.ChatPrivate)))
	require.NoError(t, h(messageCtx(2, tele.ChatPrivate)))

	assert.Equal(t, 2, handled)
	assert.Equal(t, 1, limited)
}

func TestRateLimitHonoursExclusions(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})
	h := mw(counting(&handled))

	for range 3 {
		require.NoError(t, h(callbackCtx(1)))
	}
	assert.Equal(t, 3, handled)
}

func TestPrivateOnlyRejectsGroups(t *testing.T) {
	var handled, rejected int
	h := PrivateOnlyMiddleware(counting(&rejected))(counting(&handled))

	require.NoError(t, h(messageCtx(1, tele.ChatPrivate)))
	require.NoError(t, h(messageCtx(-100, tele.ChatSuperGroup)))

	assert.Equal(t, 1, handled)
	assert.Equal(t, 1, rejected)
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("kaboom") })

	var err error
	assert.NotPanics(t, func() { err = h(messageCtx(1, tele.ChatPrivate)) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	plain := errors.New("plain")
	assert.ErrorIs(t, RecoverMiddleware(func(tele.Context) error { return plain })(messageCtx(1, tele.ChatPrivate)), plain)
}

func TestUpdateKind(t *testing.T) {
	assert.Equal(t, "callback", UpdateKind(callbackCtx(1).Update()))
	assert.Equal(t, "message", UpdateKind(messageCtx(1, tele.ChatPrivate).Update()))
	assert.Equal(t, "other", UpdateKind(tele.Update{}))
}

// replyRecorder captures what a handler sends back without a bot.
type replyRecorder struct {
	tele.Context
	responses []string
	sent      []any
}

func (r *replyRecorder) Respond(resp ...*tele.CallbackResponse) error {
	text := ""
	if len(resp) > 0 && resp[0] != nil {
		text = resp[0].Text
	}
	r.responses = append(r.responses, text)
	return nil
}

func (r *replyRecorder) Send(what any, _ ...any) error {
	r.sent = append(r.sent, what)
	return nil
}

func TestLimitedReply(t *testing.T) {
	cb := &replyRecorder{Context: callbackCtx(1)}
	require.NoError(t, LimitedReply("easy")(cb))
	assert.Equal(t, []string{"easy"}, cb.responses)
	assert.Empty(t, cb.sent)

	msg := &replyRecorder{Context: messageCtx(1, tele.ChatPrivate)}
	require.NoError(t, LimitedReply("easy")(msg))
	assert.Equal(t, []any{"easy"}, msg.sent)
	assert.Empty(t, msg.responses)

	quiet := &replyRecorder{Context: messageCtx(1, tele.ChatPrivate)}
	require.NoError(t, LimitedReply("")(quiet))
	assert.Empty(t, quiet.sent)
}

func TestRateLimitAnswersLimitedCallback(t *testing.T) {
	var handled int
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: LimitedReply(""),
	})(counting(&handled))

	first := &replyRecorder{Context: callbackCtx(1)}
	second := &replyRecorder{Context: callbackCtx(1)}
	require.NoError(t, h(first))
	require.NoError(t, h(second))

	assert.Equal(t, 1, handled)
	assert.Empty(t, first.responses)
	assert.Equal(t, []string{""}, second.responses)
}
