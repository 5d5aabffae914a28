package meme

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/memearena/internal/domain"
)

// Input limits for generation requests.
const (
	MaxDescriptionRunes = 500
	MaxTemplateLines    = 10
	MaxLineRunes        = 100
	MaxVoiceBytes       = 10 << 20
)

// Field names reported by ValidationError.
const (
	FieldDescription  = "description"
	FieldTemplate     = "template"
	FieldTemplateText = "template_text"
	FieldVoice        = "voice"
)

var templateIDRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,50}$`)

func invalid(field, reason string) error {
	return &domain.ValidationError{Field: field, Reason: reason}
}

// ValidateDescription trims and checks an AI prompt.
func ValidateDescription(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(FieldDescription, "empty")
	}
	if utf8.RuneCountInString(s) > MaxDescriptionRunes {
		return "", invalid(FieldDescription, "too long")
	}
	return s, nil
}

// ValidateTemplateID checks the template id alphabet and length.
func ValidateTemplateID(id string) error {
	if !templateIDRe.MatchString(id) {
		return invalid(FieldTemplate, "malformed id")
	}
	return nil
}

// ValidateTemplateText splits caption text into trimmed non-empty lines and checks the limits.
func ValidateTemplateText(text string) ([]string, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, invalid(FieldTemplateText, "empty")
	}
	if len(lines) > MaxTemplateLines {
		return nil, invalid(FieldTemplateText, "too many lines")
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) > MaxLineRunes {
			return nil, invalid(FieldTemplateText, "line too long")
		}
	}
	return lines, nil
}

// ValidateVoice checks a voice payload size.
func ValidateVoice(data []byte) error {
	if len(data) == 0 {
		return invalid(FieldVoice, "empty")
	}
	if len(data) > MaxVoiceBytes {
		return invalid(FieldVoice, "too large")
	}
	return nil
}
