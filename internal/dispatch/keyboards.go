package dispatch

import (
	"github.com/m3rciful/memearena/internal/callback"
)

func (d *Dispatcher) replyRows(keys ...[]string) *Keyboard {
	rows := make([][]string, 0, len(keys))
	for _, row := range keys {
		labels := make([]string, len(row))
		for i, k := range row {
			labels[i] = d.t(k)
		}
		rows = append(rows, labels)
	}
	return &Keyboard{Reply: rows}
}

func (d *Dispatcher) loginKeyboard() *Keyboard {
	return d.replyRows([]string{"login.user"}, []string{"login.admin"})
}

func (d *Dispatcher) mainMenu() *Keyboard {
	return d.replyRows(
		[]string{"menu.ai", "menu.template"},
		[]string{"menu.contest", "menu.mymemes"},
		[]string{"menu.premium", "menu.help"},
	)
}

func (d *Dispatcher) memeMenu() *Keyboard {
	return d.replyRows(
		[]string{"meme.action.publish", "meme.action.contest"},
		[]string{"meme.action.new", "common.back"},
	)
}

func (d *Dispatcher) backOnly() *Keyboard {
	return d.replyRows([]string{"common.back"})
}

// memeButtons is the inline keyboard attached to a freshly generated meme.
func (d *Dispatcher) memeButtons(ref string) *Keyboard {
	kb := &Keyboard{}
	var row []Button
	if data, err := callback.Publish(ref); err == nil {
		row = append(row, Button{Text: d.t("meme.action.publish"), Data: data})
	}
	if data, err := callback.Contest(ref); err == nil {
		row = append(row, Button{Text: d.t("meme.action.contest"), Data: data})
	}
	if len(row) > 0 {
		kb.Inline = append(kb.Inline, row)
	}
	kb.Inline = append(kb.Inline, []Button{{Text: d.t("meme.action.new"), Data: callback.New()}})
	return kb
}

func (d *Dispatcher) templateKeyboard() *Keyboard {
	ids := d.deps.Pipeline.Templates().IDs()
	rows := make([][]string, 0, len(ids)/2+2)
	for i := 0; i < len(ids); i += 2 {
		end := min(i+2, len(ids))
		rows = append(rows, append([]string(nil), ids[i:end]...))
	}
	rows = append(rows, []string{d.t("common.back")})
	return &Keyboard{Reply: rows}
}

func (d *Dispatcher) adminMenu() *Keyboard {
	return d.replyRows(
		[]string{"admin.btn.users", "admin.btn.stats"},
		[]string{"admin.btn.settings", "admin.btn.broadcast"},
		[]string{"admin.btn.templates", "admin.btn.end_contest"},
		[]string{"common.back"},
	)
}

func (d *Dispatcher) adminUsersMenu() *Keyboard {
	return d.replyRows(
		[]string{"admin.users.top", "admin.users.search"},
		[]string{"admin.users.premium", "admin.users.inactive"},
		[]string{"common.back"},
	)
}

func (d *Dispatcher) adminUserMenu() *Keyboard {
	return d.replyRows(
		[]string{"admin.user.toggle_premium", "admin.user.toggle_admin"},
		[]string{"admin.user.delete"},
		[]string{"common.back"},
	)
}

func (d *Dispatcher) adminSettingsMenu() *Keyboard {
	return d.replyRows(
		[]string{"admin.settings.toggle_ai", "admin.settings.toggle_voice"},
		[]string{"common.back"},
	)
}

// pager appends prev/next buttons for a paged list.
func (d *Dispatcher) pager(kb *Keyboard, pageType string, page, pages int) {
	var row []Button
	if page > 1 {
		if data, err := callback.Page(pageType, page-1); err == nil {
			row = append(row, Button{Text: d.t("page.prev"), Data: data})
		}
	}
	if page < pages {
		if data, err := callback.Page(pageType, page+1); err == nil {
			row = append(row, Button{Text: d.t("page.next"), Data: data})
		}
	}
	if len(row) > 0 {
		kb.Inline = append(kb.Inline, row)
	}
}
