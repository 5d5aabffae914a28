package callback

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memearena/internal/domain"
)

func TestDecodeValidPayloads(t *testing.T) {
	t.Parallel()

	cases := map[string]Payload{
		"publish:f3a9":   {Action: ActionPublish, Ref: "f3a9"},
		"contest:f3a9":   {Action: ActionContest, Ref: "f3a9"},
		"vote:9999":      {Action: ActionVote, ID: 9999},
		"page:contest:2": {Action: ActionPage, PageType: PageContest, Page: 2},
		"page:memes:1":   {Action: ActionPage, PageType: PageMemes, Page: 1},
		"new":            {Action: ActionNew},
		"back":           {Action: ActionBack},
	}
	for data, want := range cases {
		got, err := Decode(data)
		require.NoError(t, err, data)
		assert.Equal(t, want, got, data)
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		"",
		"vote:abc",
		"vote",
		"vote:1:2",
		"vote:-4",
		"publish",
		"publish:",
		"publish:a:b",
		"contest",
		"page:contest",
		"page:contest:x",
		"page:contest:0",
		"page::1",
		"new:1",
		"back:x",
		"explode:1",
	} {
		_, err := Decode(data)
		require.Error(t, err, data)
		var pe *domain.ParseError
		assert.True(t, errors.As(err, &pe), data)
		assert.Equal(t, "parse", pe.Code())
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := Publish("0b6f2c1e")
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "0b6f2c1e", got.Ref)

	page, err := Page(PageContest, 3)
	require.NoError(t, err)
	assert.Equal(t, "page:contest:3", page)
	assert.Equal(t, "vote:12", Vote(12))
	assert.Equal(t, "new", New())
}

func TestEncodeRejectsSeparatorAndOversize(t *testing.T) {
	t.Parallel()

	_, err := Publish("https://example.com/a.png")
	assert.Error(t, err)

	long := make([]byte, MaxDataLen)
	for i := range long {
		long[i] = 'a'
	}
	_, err = Contest(string(long))
	assert.Error(t, err)
}
