package generation

import (
	"strings"

	"legalhelp/api/internal/variables"
)

// Kind classifies a failed generation for callers.
type Kind string

const (
	KindInput      Kind = "input"
	KindNotFound   Kind = "not_found"
	KindNotReady   Kind = "not_ready"
	KindCompliance Kind = "compliance"
	KindRender     Kind = "render"
	KindInternal   Kind = "internal"
)

// Stage is a step of one generation request.
type Stage string

const (
	StageValidating Stage = "validating"
	StageFetching   Stage = "fetching"
	StageFormatting Stage = "formatting"
	StagePersisting Stage = "persisting"
	StageDone       Stage = "done"
)

// Error is returned by Generate for every terminal failure. Message is safe
// to show to callers; Err carries the cause for logs.
type Error struct {
	Kind       Kind
	Stage      Stage
	Message    string
	Missing    []string
	Fields     []variables.FieldError
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error during ")
	b.WriteString(string(e.Stage))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func inputError(msg string) *Error {
	return &Error{Kind: KindInput, Stage: StageValidating, Message: msg}
}
