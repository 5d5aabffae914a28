// Package session keeps the per-chat dialog state machine and its in-memory store.
package session

import (
	"errors"
	"fmt"
)

// State identifies a dialog step.
type State string

const (
	StateIdle                    State = "idle"
	StateWaitingForLogin         State = "waiting_for_login"
	StateWaitingForAdminPassword State = "waiting_for_admin_password"
	StateWaitingForAIDescription State = "waiting_for_ai_description"
	StateWaitingForTemplate      State = "waiting_for_template_selection"
	StateWaitingForTemplateText  State = "waiting_for_template_text"
	StateMemeGenerated           State = "meme_generated"
	StateAdminMenu               State = "admin_menu"
	StateAdminUsersMenu          State = "admin_users_menu"
	StateAdminSettingsMenu       State = "admin_settings_menu"
	StateAdminBroadcastCompose   State = "admin_broadcast_compose"
	StateAdminUserSearch         State = "admin_user_search"
	StateAdminUserDetail         State = "admin_user_detail"
	StateAdminTemplateManagement State = "admin_template_management"
)

// States lists every dialog state.
var States = []State{
	StateIdle,
	StateWaitingForLogin,
	StateWaitingForAdminPassword,
	StateWaitingForAIDescription,
	StateWaitingForTemplate,
	StateWaitingForTemplateText,
	StateMemeGenerated,
	StateAdminMenu,
	StateAdminUsersMenu,
	StateAdminSettingsMenu,
	StateAdminBroadcastCompose,
	StateAdminUserSearch,
	StateAdminUserDetail,
	StateAdminTemplateManagement,
}

// Valid reports whether s is one of the enumerated states.
func (s State) Valid() bool {
	for _, v := range States {
		if v == s {
			return true
		}
	}
	return false
}

// IsAdmin reports whether s belongs to the admin console.
func (s State) IsAdmin() bool {
	switch s {
	case StateAdminMenu, StateAdminUsersMenu, StateAdminSettingsMenu, StateAdminBroadcastCompose,
		StateAdminUserSearch, StateAdminUserDetail, StateAdminTemplateManagement:
		return true
	}
	return false
}

// ErrIllegalTransition is wrapped by every TransitionError.
var ErrIllegalTransition = errors.New("illegal state transition")

// TransitionError reports a move the transition table does not allow.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: %s -> %s", ErrIllegalTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// Code implements the coded error contract used by handler logs.
func (e *TransitionError) Code() string { return "illegal_transition" }

// Entry points reachable from every state: commands and "back" buttons.
var universal = map[State]bool{
	StateIdle:                    true,
	StateWaitingForLogin:         true,
	StateWaitingForAIDescription: true,
	StateWaitingForTemplate:      true,
	StateAdminMenu:               true,
}

var transitions = map[State][]State{
	StateIdle:                    {StateMemeGenerated},
	StateWaitingForLogin:         {StateWaitingForAdminPassword},
	StateWaitingForAdminPassword: {},
	StateWaitingForAIDescription: {StateMemeGenerated},
	StateWaitingForTemplate:      {StateWaitingForTemplateText, StateMemeGenerated},
	StateWaitingForTemplateText:  {StateMemeGenerated},
	StateMemeGenerated:           {StateMemeGenerated},
	StateAdminMenu: {
		StateAdminUsersMenu,
		StateAdminSettingsMenu,
		StateAdminBroadcastCompose,
		StateAdminTemplateManagement,
	},
	StateAdminUsersMenu:          {StateAdminUserSearch},
	StateAdminUserSearch:         {StateAdminUserDetail, StateAdminUsersMenu},
	StateAdminUserDetail:         {StateAdminUsersMenu},
	StateAdminSettingsMenu:       {},
	StateAdminBroadcastCompose:   {},
	StateAdminTemplateManagement: {},
}

// CanTransition reports whether the table allows moving from one state to another.
// Staying in the same state is always allowed.
func CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || universal[to] {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
