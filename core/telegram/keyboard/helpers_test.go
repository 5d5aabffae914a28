package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyButtonsLayout(t *testing.T) {
	m := ReplyButtons([]string{"a", "b"}, []string{"c"})

	require.Len(t, m.ReplyKeyboard, 2)
	assert.Len(t, m.ReplyKeyboard[0], 2)
	assert.Equal(t, "c", m.ReplyKeyboard[1][0].Text)
	assert.True(t, m.ResizeKeyboard)
}

func TestInlineButtonsKeepRawData(t *testing.T) {
	m := InlineButtonsRows([]InlineBtn{{Text: "👍 #4", Data: "vote:4"}}, nil)

	require.Len(t, m.InlineKeyboard, 1)
	assert.Equal(t, "vote:4", m.InlineKeyboard[0][0].Data)
	assert.Empty(t, m.InlineKeyboard[0][0].Unique)
}

func TestMergePrefersInline(t *testing.T) {
	assert.Nil(t, Merge(nil, nil))
	assert.NotEmpty(t, Merge(nil, [][]string{{"x"}}).ReplyKeyboard)

	m := Merge([][]InlineBtn{{{Text: "t", Data: "d"}}}, [][]string{{"x"}})
	assert.NotEmpty(t, m.InlineKeyboard)
	assert.Empty(t, m.ReplyKeyboard)
}
