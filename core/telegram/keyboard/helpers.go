// Package keyboard builds telebot reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is an inline button carrying raw callback data.
type InlineBtn struct {
	Text string
	Data string
}

// ReplyButtons builds a resizable reply keyboard from rows of labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard. Data is sent verbatim, without
// a telebot unique prefix, so every press reaches the OnCallback handler.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.Data}
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// Merge combines inline and reply layouts. Telegram accepts one markup per message,
// so a non-empty inline keyboard wins.
func Merge(inline [][]InlineBtn, reply [][]string) *tele.ReplyMarkup {
	for _, row := range inline {
		if len(row) > 0 {
			return InlineButtonsRows(inline...)
		}
	}
	if len(reply) > 0 {
		return ReplyButtons(reply...)
	}
	return nil
}
