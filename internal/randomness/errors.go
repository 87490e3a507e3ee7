package randomness

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the category for every caller error: sequences that are
// too short for the requested parameters, non-binary values, zero-length
// blocks and out-of-range parameters. All more specific sentinels below wrap
// it, so errors.Is(err, ErrInvalidInput) matches any of them.
var ErrInvalidInput = errors.New("invalid input")

// Sentinel errors for analysis failures. Use errors.Is to match against these
// when inspecting an *Error.
var (
	ErrEmptySequence        = fmt.Errorf("%w: bit sequence is empty", ErrInvalidInput)
	ErrNonBinaryValue       = fmt.Errorf("%w: bit values must be 0 or 1", ErrInvalidInput)
	ErrInvalidBlockSize     = fmt.Errorf("%w: block size must satisfy 1 <= M <= n", ErrInvalidInput)
	ErrInvalidPatternLength = fmt.Errorf("%w: pattern length must satisfy 0 <= m, m+1 < n and 2^(m+1) <= 2n", ErrInvalidInput)
	ErrInvalidParameter     = fmt.Errorf("%w: parameter out of range", ErrInvalidInput)
	ErrMismatchedVectors    = fmt.Errorf("%w: p-value vectors do not match", ErrInvalidInput)
)

// Error provides structured context for analysis failures. It records the
// operation name, the underlying sentinel, and an optional message.
type Error struct {
	Op  string // Operation that failed
	Err error  // Underlying (sentinel) error
	Msg string // Additional context
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError creates a new *Error with the given operation, sentinel, and message.
func newError(op string, err error, msg string) error {
	return &Error{
		Op:  op,
		Err: err,
		Msg: msg,
	}
}

// IsInvalidInput reports whether err belongs to the InvalidInput category.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
