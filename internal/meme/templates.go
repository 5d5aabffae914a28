package meme

import "sync"

// Template is a captionable meme background.
type Template struct {
	ID    string
	Title string
}

// DefaultTemplates are available until an admin edits the registry.
var DefaultTemplates = []Template{
	{ID: "drake", Title: "Drake Hotline Bling"},
	{ID: "distracted_boyfriend", Title: "Distracted Boyfriend"},
	{ID: "two_buttons", Title: "Two Buttons"},
	{ID: "change_my_mind", Title: "Change My Mind"},
	{ID: "expanding_brain", Title: "Expanding Brain"},
}

// Templates is a concurrency-safe template registry.
type Templates struct {
	mu    sync.RWMutex
	byID  map[string]Template
	order []string
}

// NewTemplates builds a registry seeded with initial.
func NewTemplates(initial ...Template) *Templates {
	t := &Templates{byID: make(map[string]Template)}
	for _, tpl := range initial {
		_ = t.Add(tpl)
	}
	return t
}

// List returns templates in insertion order.
func (t *Templates) List() []Template {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Template, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.byID[id])
	}
	return out
}

// Get looks up a template by id.
func (t *Templates) Get(id string) (Template, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tpl, ok := t.byID[id]
	return tpl, ok
}

// Add registers or retitles a template.
func (t *Templates) Add(tpl Template) error {
	if err := ValidateTemplateID(tpl.ID); err != nil {
		return err
	}
	if tpl.Title == "" {
		tpl.Title = tpl.ID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[tpl.ID]; !ok {
		t.order = append(t.order, tpl.ID)
	}
	t.byID[tpl.ID] = tpl
	return nil
}

// Remove deletes a template and reports whether it existed.
func (t *Templates) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// IDs returns the registered ids in insertion order.
func (t *Templates) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}
