package store

import (
	"errors"
	"time"

	"legalhelp/api/internal/variables"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrContentNotReady  = errors.New("template content not ready")
)

const (
	StatusPublished         = "published"
	ProcessingCompleted     = "completed"
	defaultProcessingStatus = "pending"
)

// Template is the read-only metadata of a legal template.
type Template struct {
	ID                  string
	Title               string
	Category            string
	Status              string
	SingaporeCompliant  bool
	LegalReviewRequired bool
	Variables           []variables.Definition
}

// PublishedTemplate is a published template together with its processed content.
type PublishedTemplate struct {
	Template
	Content    []byte
	StorageKey string
}

// GenerationRecord is one completed generation.
type GenerationRecord struct {
	TemplateID  string
	UserID      string
	Variables   map[string]any
	Format      string
	Filename    string
	Version     string
	GeneratedAt time.Time
}

type templateRow struct {
	ID                  string `db:"id"`
	Title               string `db:"title"`
	Category            string `db:"category"`
	Status              string `db:"status"`
	SingaporeCompliant  bool   `db:"singapore_compliant"`
	LegalReviewRequired bool   `db:"legal_review_required"`
	Variables           []byte `db:"variables"`
}

type contentRow struct {
	StorageKey       string `db:"storage_key"`
	FileData         []byte `db:"file_data"`
	ProcessingStatus string `db:"processing_status"`
}
