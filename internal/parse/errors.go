package parse

import "fmt"

type Kind int

const (
	NotJSON Kind = iota
	UnrecognizedShape
	Empty
)

func (k Kind) String() string {
	switch k {
	case NotJSON:
		return "not-json"
	case UnrecognizedShape:
		return "unrecognized-shape"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Error classifies why a file could not be turned into a session.
type Error struct {
	Kind Kind
	Path string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse: %s", e.Kind)
	}
	return fmt.Sprintf("parse %s: %s", e.Path, e.Kind)
}

// Is matches on kind so callers can write errors.Is(err, parse.ErrEmpty).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Path == "" && t.Kind == e.Kind
}

var (
	ErrNotJSON           = &Error{Kind: NotJSON}
	ErrUnrecognizedShape = &Error{Kind: UnrecognizedShape}
	ErrEmpty             = &Error{Kind: Empty}
)
