// Package errkind classifies engine errors into the closed set described
// in the engine's error handling design, so callers at the process
// boundary (cmd/delta) can map a failure to an exit code and a
// user-facing category without string-sniffing error messages.
package errkind

import "fmt"

// Kind is one of the closed set of error categories the engine surfaces.
type Kind string

const (
	Configuration      Kind = "configuration"
	JournalCorruption  Kind = "journal_corruption"
	Composition        Kind = "composition"
	Transport          Kind = "transport"
	ToolInvocation     Kind = "tool_invocation"
	Hook               Kind = "hook"
	InteractionPending Kind = "interaction_pending"
	Session            Kind = "session"
	Signal             Kind = "signal"
)

// Error wraps an underlying cause with a Kind and an actionable next step.
type Error struct {
	Kind    Kind
	Next    string // suggested next step, shown to the user
	Err     error
}

func (e *Error) Error() string {
	if e.Next == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Kind, e.Err, e.Next)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified error.
func New(kind Kind, next string, err error) *Error {
	return &Error{Kind: kind, Next: next, Err: err}
}

// Wrap is New with no actionable next-step text.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
