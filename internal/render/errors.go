package render

import (
	"errors"
	"strings"
)

var (
	ErrCorruptTemplate   = errors.New("template archive is corrupt")
	ErrMissingVariable   = errors.New("template variable missing")
	ErrMalformedTemplate = errors.New("template markup malformed")
)

// Error is returned for every render failure. Kind is one of the sentinel
// errors above and matches with errors.Is.
type Error struct {
	Kind    error
	Part    string
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if len(e.Missing) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Part != "" {
		b.WriteString(" (")
		b.WriteString(e.Part)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func corrupt(err error) error {
	return &Error{Kind: ErrCorruptTemplate, Err: err}
}

func malformed(part, format string) error {
	return &Error{Kind: ErrMalformedTemplate, Part: part, Err: errors.New(format)}
}
