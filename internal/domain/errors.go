package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrArtifactNotFound is returned when a meme does not exist or is not visible to the caller.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrUserNotFound is returned when a user id or username has no record.
	ErrUserNotFound = errors.New("user not found")
)

// Coded is implemented by errors that expose a stable machine-readable code for logs.
type Coded interface {
	Code() string
}

// CodeOf returns the code of the first coded error in err's chain, or "internal".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	switch {
	case errors.Is(err, ErrArtifactNotFound):
		return "artifact_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	}
	return "internal"
}

// ValidationError reports bad user input detected before any external call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Code implements Coded.
func (e *ValidationError) Code() string { return "validation" }

// LimitReachedError reports an exhausted daily quota.
type LimitReachedError struct {
	Kind     Kind
	ResetsAt time.Time
}

func (e *LimitReachedError) Error() string {
	return fmt.Sprintf("daily %s limit reached, resets at %s", e.Kind, e.ResetsAt.UTC().Format(time.RFC3339))
}

// Code implements Coded.
func (e *LimitReachedError) Code() string { return "limit_reached" }

// FeatureDisabledError reports a generation kind switched off at runtime.
type FeatureDisabledError struct {
	Kind Kind
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("%s generation is disabled", e.Kind)
}

// Code implements Coded.
func (e *FeatureDisabledError) Code() string { return "feature_disabled" }

// GenerationError wraps a generator or storage failure.
type GenerationError struct {
	Kind Kind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *GenerationError) Code() string { return "generation" }

// ParseError reports a malformed callback payload.
type ParseError struct {
	Data   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed callback %q: %s", e.Data, e.Reason)
}

// Code implements Coded.
func (e *ParseError) Code() string { return "parse" }

// AuthDeniedError reports a failed admin verification or a non-admin reaching an admin action.
type AuthDeniedError struct {
	UserID int64
}

func (e *AuthDeniedError) Error() string {
	return fmt.Sprintf("admin access denied for user %d", e.UserID)
}

// Code implements Coded.
func (e *AuthDeniedError) Code() string { return "auth_denied" }
