package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BlobReader loads template files kept in object storage.
type BlobReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type PostgresStore struct {
	db    *sqlx.DB
	blobs BlobReader
}

// NewPostgresStore creates a store. blobs may be nil when every template
// keeps its file inline.
func NewPostgresStore(db *sqlx.DB, blobs BlobReader) *PostgresStore {
	return &PostgresStore{db: db, blobs: blobs}
}

func (s *PostgresStore) DB() *sqlx.DB {
	return s.db
}

// GetPublishedTemplate returns a published template and its processed file.
// It fails with ErrTemplateNotFound when the template is absent or not
// published, and ErrContentNotReady when its content is missing or still
// being processed.
func (s *PostgresStore) GetPublishedTemplate(ctx context.Context, templateID string) (*PublishedTemplate, error) {
	if _, err := uuid.Parse(templateID); err != nil {
		return nil, ErrTemplateNotFound
	}

	var row templateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, title, COALESCE(category, '') AS category, status,
			singapore_compliant, legal_review_required,
			COALESCE(variables, '[]'::jsonb) AS variables
		FROM legal_templates
		WHERE id = $1 AND status = $2
	`, templateID, StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}

	tpl := Template{
		ID:                  row.ID,
		Title:               row.Title,
		Category:            row.Category,
		Status:              row.Status,
		SingaporeCompliant:  row.SingaporeCompliant,
		LegalReviewRequired: row.LegalReviewRequired,
	}
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &tpl.Variables); err != nil {
			return nil, fmt.Errorf("decode template variables: %w", err)
		}
	}

	var content contentRow
	err = s.db.GetContext(ctx, &content, `
		SELECT COALESCE(storage_key, '') AS storage_key, file_data,
			COALESCE(processing_status, $2) AS processing_status
		FROM template_contents
		WHERE template_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, templateID, defaultProcessingStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no content uploaded", ErrContentNotReady)
	}
	if err != nil {
		return nil, fmt.Errorf("get template content: %w", err)
	}
	if content.ProcessingStatus != ProcessingCompleted {
		return nil, fmt.Errorf("%w: processing status %s", ErrContentNotReady, content.ProcessingStatus)
	}

	out := &PublishedTemplate{Template: tpl, StorageKey: content.StorageKey, Content: content.FileData}
	if content.StorageKey != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("load template file %s: no blob store configured", content.StorageKey)
		}
		data, err := s.blobs.Get(ctx, content.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("load template file %s: %w", content.StorageKey, err)
		}
		out.Content = data
	}
	if len(out.Content) == 0 {
		return nil, fmt.Errorf("%w: empty template file", ErrContentNotReady)
	}
	return out, nil
}

func (s *PostgresStore) InsertGenerationHistory(ctx context.Context, rec GenerationRecord) error {
	vars, err := json.Marshal(rec.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generation_history (id, template_id, user_id, variables, output_format, filename, version, generated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
	`, uuid.NewString(), rec.TemplateID, rec.UserID, vars, rec.Format, rec.Filename, rec.Version, rec.GeneratedAt)
	if err != nil {
		return fmt.Errorf("insert generation history: %w", err)
	}
	return nil
}

// IncrementUsage bumps the per-format usage counter of a template.
func (s *PostgresStore) IncrementUsage(ctx context.Context, templateID, format string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO template_usage_stats (template_id, output_format, usage_count, last_used_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (template_id, output_format)
		DO UPDATE SET usage_count = template_usage_stats.usage_count + 1, last_used_at = NOW()
	`, templateID, format)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
