package export

import (
	"context"
	"fmt"
	"time"

	"legalhelp/api/internal/normalize"
)

// Formatter turns variables into a finished document.
type Formatter struct {
	pdf          PDFEngine
	jurisdiction normalize.Jurisdiction
	now          func() time.Time
}

type Option func(*Formatter)

// WithJurisdiction overrides the display conventions used for normalization.
func WithJurisdiction(j normalize.Jurisdiction) Option {
	return func(f *Formatter) { f.jurisdiction = j }
}

// WithClock overrides the generation clock.
func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// NewFormatter creates a formatter printing PDFs through pdf.
func NewFormatter(pdf PDFEngine, opts ...Option) *Formatter {
	f := &Formatter{pdf: pdf, jurisdiction: normalize.Singapore, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format normalizes the request variables and produces the document. It
// never returns a partial buffer: every error or panic from a path yields a
// Result with Success false.
func (f *Formatter) Format(ctx context.Context, req Request) (res *Result) {
	generatedAt := req.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = f.now()
	}
	generatedAt = generatedAt.UTC()

	defer func() {
		if r := recover(); r != nil {
			res = failed(req, generatedAt, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	vars := f.jurisdiction.Variables(req.Variables).Values

	var (
		data []byte
		mime string
		err  error
	)
	switch req.Format {
	case FormatDOCX:
		data, err = f.exportDOCX(req, vars)
		mime = MimeDOCX
	case FormatPDF:
		data, err = f.exportPDF(ctx, req, vars, generatedAt)
		mime = MimePDF
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return failed(req, generatedAt, err)
	}

	return &Result{
		Success:     true,
		Data:        data,
		Filename:    Filename(req.Title, req.Format, generatedAt),
		MimeType:    mime,
		Version:     req.Version,
		GeneratedAt: generatedAt,
	}
}

func failed(req Request, at time.Time, err error) *Result {
	return &Result{
		Success:     false,
		Version:     req.Version,
		GeneratedAt: at,
		Error:       err.Error(),
		Err:         err,
	}
}
