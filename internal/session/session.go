package session

import "time"

// Session is the dialog context of one chat. Store hands out copies; mutate through Store.Update.
type Session struct {
	ChatID           int64
	State            State
	SelectedTemplate string
	TemplateLines    []string
	LastArtifactRef  string
	LastCommand      string
	Data             map[string]string
	LastActivity     time.Time
}

func newSession(chatID int64, now time.Time) Session {
	return Session{
		ChatID:       chatID,
		State:        StateIdle,
		Data:         map[string]string{},
		LastActivity: now,
	}
}

// Transition moves the session to st when the transition table allows it.
func (s *Session) Transition(st State) error {
	if !CanTransition(s.State, st) {
		return &TransitionError{From: s.State, To: st}
	}
	s.State = st
	return nil
}

// Reset returns the session to idle and drops every optional field.
func (s *Session) Reset() {
	s.State = StateIdle
	s.SelectedTemplate = ""
	s.TemplateLines = nil
	s.LastArtifactRef = ""
	s.LastCommand = ""
	s.Data = map[string]string{}
}

// Get reads a value from the session data bag.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Data[key]
	return v, ok
}

// Set stores a value in the session data bag.
func (s *Session) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

// Unset removes a value from the session data bag.
func (s *Session) Unset(key string) {
	delete(s.Data, key)
}

func (s Session) clone() Session {
	out := s
	if s.TemplateLines != nil {
		out.TemplateLines = append([]string(nil), s.TemplateLines...)
	}
	out.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}
