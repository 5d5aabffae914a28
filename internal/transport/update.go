package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/m3rciful/memearena/internal/dispatch"
	"github.com/m3rciful/memearena/internal/domain"
	"github.com/m3rciful/memearena/internal/meme"

	tele "gopkg.in/telebot.v4"
)

// ToUpdate converts a telebot update. Voice notes are downloaded up to one byte past
// the size limit so validation can reject oversized ones.
func ToUpdate(api API, u tele.Update) (dispatch.Update, error) {
	out := dispatch.Update{ID: u.ID}

	switch {
	case u.Callback != nil:
		cb := u.Callback
		out.From = profile(cb.Sender)
		out.ChatID = out.From.ID
		out.Callback = &dispatch.Callback{
			ID:   cb.ID,
			Data: strings.TrimPrefix(cb.Data, "\f"),
		}
		if cb.Message != nil {
			out.Callback.MessageID = cb.Message.ID
			if cb.Message.Chat != nil {
				out.ChatID = cb.Message.Chat.ID
			}
		}
	case u.Message != nil:
		m := u.Message
		out.From = profile(m.Sender)
		out.ChatID = out.From.ID
		if m.Chat != nil {
			out.ChatID = m.Chat.ID
		}
		out.Text = m.Text
		if m.Voice != nil {
			v, err := fetchVoice(api, m.Voice)
			if err != nil {
				return dispatch.Update{}, err
			}
			out.Voice = v
		}
	default:
		return dispatch.Update{}, fmt.Errorf("transport: unsupported update %d", u.ID)
	}
	return out, nil
}

func profile(u *tele.User) domain.Profile {
	if u == nil {
		return domain.Profile{}
	}
	return domain.Profile{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LanguageCode: u.LanguageCode,
	}
}

func fetchVoice(api API, v *tele.Voice) (*dispatch.Voice, error) {
	out := &dispatch.Voice{Duration: v.Duration}
	if v.FileSize > meme.MaxVoiceBytes {
		// Leave Data empty; validation reports the limit without a download.
		return out, nil
	}
	rc, err := api.File(&v.File)
	if err != nil {
		return nil, fmt.Errorf("transport: fetch voice: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, meme.MaxVoiceBytes+1)); err != nil {
		return nil, fmt.Errorf("transport: read voice: %w", err)
	}
	out.Data = buf.Bytes()
	return out, nil
}
