package extract

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against a *ParseError.
var (
	ErrBadTimestamp    = errors.New("bad timestamp")
	ErrMalformedAction = errors.New("malformed action")
)

// ParseKind distinguishes the two fatal parse failures.
type ParseKind int

const (
	BadTimestamp ParseKind = iota + 1
	MalformedAction
)

func (k ParseKind) String() string {
	switch k {
	case BadTimestamp:
		return "bad timestamp"
	case MalformedAction:
		return "malformed action"
	default:
		return fmt.Sprintf("ParseKind(%d)", int(k))
	}
}

// ParseError fails a whole source. Raw holds the offending DATETIME or
// ACTION text.
type ParseError struct {
	Kind ParseKind
	Line int
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s at row %d: %q", e.Kind, e.Line, e.Raw)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrBadTimestamp:
		return e.Kind == BadTimestamp
	case ErrMalformedAction:
		return e.Kind == MalformedAction
	}
	return false
}

// Malformed builds a MalformedAction error. The reconstructor uses it for
// fields it re-parses from the raw action.
func Malformed(line int, raw string, err error) *ParseError {
	return &ParseError{Kind: MalformedAction, Line: line, Raw: raw, Err: err}
}
