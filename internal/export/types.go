// Package export produces the final DOCX or PDF for a generation request.
package export

import (
	"errors"
	"time"

	"legalhelp/api/internal/variables"
)

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const (
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePDF  = "application/pdf"
)

// ParseFormat accepts the request spelling of a format.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatPDF:
		return FormatPDF, true
	case FormatDOCX:
		return FormatDOCX, true
	}
	return "", false
}

// Request contains parameters for one formatting operation
type Request struct {
	Title       string
	Template    []byte // DOCX template bytes, unused for PDF
	Variables   map[string]any
	Definitions []variables.Definition
	Format      Format
	Notices     []string
	Watermark   bool
	Version     string
	GeneratedAt time.Time // zero means now
}

// Result is the outcome of one formatting operation. Data is set only when
// Success is true; Error and Err only when it is false.
type Result struct {
	Success     bool
	Data        []byte
	Filename    string
	MimeType    string
	Version     string
	GeneratedAt time.Time
	Error       string
	Err         error
}

var (
	// ErrContentUnavailable indicates the template bytes were missing.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates a format other than docx or pdf.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPanic indicates a formatting path panicked.
	ErrPanic = errors.New("export failed unexpectedly")
)
