// Package callback encodes and decodes inline button payloads of the form action[:arg]*.
package callback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/memearena/internal/domain"
)

// Action names a callback handler.
type Action string

const (
	ActionPublish Action = "publish"
	ActionContest Action = "contest"
	ActionVote    Action = "vote"
	ActionPage    Action = "page"
	ActionNew     Action = "new"
	ActionBack    Action = "back"
)

// Page types accepted by ActionPage.
const (
	PageContest = "contest"
	PageMemes   = "memes"
)

const sep = ":"

// MaxDataLen is the largest payload Telegram accepts for callback_data.
const MaxDataLen = 64

// Payload is a decoded callback. Only the fields of its action are set.
type Payload struct {
	Action   Action
	Ref      string // publish, contest
	ID       int64  // vote
	PageType string // page
	Page     int    // page, starts at 1
}

// Decode parses raw callback data and validates arity per action.
func Decode(data string) (Payload, error) {
	if data == "" {
		return Payload{}, parseErr(data, "empty payload")
	}
	parts := strings.Split(data, sep)
	action, args := Action(parts[0]), parts[1:]

	switch action {
	case ActionPublish, ActionContest:
		if len(args) != 1 || args[0] == "" {
			return Payload{}, parseErr(data, fmt.Sprintf("%s expects one reference", action))
		}
		return Payload{Action: action, Ref: args[0]}, nil
	case ActionVote:
		if len(args) != 1 {
			return Payload{}, parseErr(data, "vote expects one id")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return Payload{}, parseErr(data, "vote id must be a positive integer")
		}
		return Payload{Action: action, ID: id}, nil
	case ActionPage:
		if len(args) != 2 || args[0] == "" {
			return Payload{}, parseErr(data, "page expects a type and a number")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return Payload{}, parseErr(data, "page number must be >= 1")
		}
		return Payload{Action: action, PageType: args[0], Page: n}, nil
	case ActionNew, ActionBack:
		if len(args) != 0 {
			return Payload{}, parseErr(data, fmt.Sprintf("%s takes no arguments", action))
		}
		return Payload{Action: action}, nil
	default:
		return Payload{}, parseErr(data, fmt.Sprintf("unknown action %q", parts[0]))
	}
}

// Encode renders an action with its arguments. Arguments must not contain the separator.
func Encode(action Action, args ...string) (string, error) {
	if action == "" || strings.Contains(string(action), sep) {
		return "", fmt.Errorf("invalid callback action %q", action)
	}
	var b strings.Builder
	b.WriteString(string(action))
	for _, a := range args {
		if strings.Contains(a, sep) {
			return "", fmt.Errorf("callback argument %q contains %q", a, sep)
		}
		b.WriteString(sep)
		b.WriteString(a)
	}
	if b.Len() > MaxDataLen {
		return "", fmt.Errorf("callback payload exceeds %d bytes", MaxDataLen)
	}
	return b.String(), nil
}

// Publish encodes publish:<ref>.
func Publish(ref string) (string, error) { return Encode(ActionPublish, ref) }

// Contest encodes contest:<ref>.
func Contest(ref string) (string, error) { return Encode(ActionContest, ref) }

// Vote encodes vote:<id>.
func Vote(id int64) string {
	return string(ActionVote) + sep + strconv.FormatInt(id, 10)
}

// Page encodes page:<type>:<n>.
func Page(pageType string, n int) (string, error) {
	return Encode(ActionPage, pageType, strconv.Itoa(n))
}

// New encodes the main-menu reset action.
func New() string { return string(ActionNew) }

func parseErr(data, reason string) error {
	return &domain.ParseError{Data: data, Reason: reason}
}
