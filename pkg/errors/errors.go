// Package errors defines the domain error kinds shared by every meeting
// component. Callers wrap a sentinel with fmt.Errorf("...: %w", ErrX) and
// boundaries classify the result with KindOf.
package errors

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the meeting or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates the operation is not valid for the current
	// lifecycle state, e.g. submitting a chunk to an ended meeting.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyExists indicates an id collision in the registry.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTranscription indicates the speech-to-text backend failed or timed out.
	ErrTranscription = errors.New("transcription failed")

	// ErrGeneration indicates the language-model backend failed or timed out.
	ErrGeneration = errors.New("generation failed")

	// ErrUnauthorized indicates a missing or invalid API token.
	ErrUnauthorized = errors.New("unauthorized")
)

// Kind is the stable, machine-readable classification of an error.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindInvalidState  Kind = "invalid_state"
	KindTranscription Kind = "transcription"
	KindGeneration    Kind = "generation"
	KindUnauthorized  Kind = "unauthorized"
	KindInternal      Kind = "internal"
)

// KindOf classifies err by the first sentinel found in its chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyExists):
		return KindInvalidState
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrGeneration):
		return KindGeneration
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsAlreadyExists reports whether any error in err's chain is ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTranscription reports whether any error in err's chain is ErrTranscription.
func IsTranscription(err error) bool {
	return errors.Is(err, ErrTranscription)
}

// IsGeneration reports whether any error in err's chain is ErrGeneration.
func IsGeneration(err error) bool {
	return errors.Is(err, ErrGeneration)
}

// IsUnauthorized reports whether any error in err's chain is ErrUnauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
