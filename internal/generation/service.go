// Package generation runs one document generation request from validation
// to the best-effort history and usage writes.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"legalhelp/api/internal/compliance"
	"legalhelp/api/internal/export"
	"legalhelp/api/internal/logger"
	"legalhelp/api/internal/metrics"
	"legalhelp/api/internal/normalize"
	"legalhelp/api/internal/render"
	"legalhelp/api/internal/store"
	"legalhelp/api/internal/variables"
)

const defaultPersistTimeout = 10 * time.Second

type TemplateStore interface {
	GetPublishedTemplate(ctx context.Context, templateID string) (*store.PublishedTemplate, error)
}

type HistoryStore interface {
	InsertGenerationHistory(ctx context.Context, rec store.GenerationRecord) error
}

type UsageCounter interface {
	IncrementUsage(ctx context.Context, templateID, format string) error
}

type Archive interface {
	Commit(templateID, userID, filename string, data []byte, author string) (string, error)
}

type Formatter interface {
	Format(ctx context.Context, req export.Request) *export.Result
}

// Request is one generation request. Nil GenerateVersion and SaveToHistory
// default to true.
type Request struct {
	TemplateID       string         `json:"template_id"`
	Variables        map[string]any `json:"variables"`
	OutputFormat     string         `json:"output_format"`
	UserID           string         `json:"user_id,omitempty"`
	GenerateVersion  *bool          `json:"generate_version,omitempty"`
	IncludeWatermark bool           `json:"include_watermark,omitempty"`
	LegalNotices     []string       `json:"legal_notices,omitempty"`
	SaveToHistory    *bool          `json:"save_to_history,omitempty"`
}

// Output is a finished document.
type Output struct {
	Data        []byte
	Filename    string
	MimeType    string
	Version     string
	GeneratedAt time.Time
	Compliance  compliance.Result
	Notices     []string
}

// TemplateDescription summarizes a published template for callers.
type TemplateDescription struct {
	ID                  string                 `json:"id"`
	Title               string                 `json:"title"`
	Category            string                 `json:"category,omitempty"`
	SingaporeCompliant  bool                   `json:"singaporeCompliant"`
	LegalReviewRequired bool                   `json:"legalReviewRequired"`
	Variables           []variables.Definition `json:"variables"`
	Placeholders        []string               `json:"placeholders"`
	Notices             []string               `json:"notices"`
}

type Deps struct {
	Templates TemplateStore
	History   HistoryStore
	Usage     UsageCounter
	Archive   Archive // nil disables the lineage archive
	Formatter Formatter
	Metrics   *metrics.Collector
	Logger    logger.Logger
}

type Option func(*Service)

func WithPolicy(p compliance.Policy) Option {
	return func(s *Service) { s.policy.Store(p) }
}

func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

func WithJurisdiction(j normalize.Jurisdiction) Option {
	return func(s *Service) { s.jurisdiction = j }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	templates TemplateStore
	history   HistoryStore
	usage     UsageCounter
	archive   Archive
	formatter Formatter
	metrics   *metrics.Collector
	log       logger.Logger
	tracer    trace.Tracer

	jurisdiction   normalize.Jurisdiction
	policy         atomic.Value
	persistTimeout time.Duration
	now            func() time.Time
	inflight       sync.WaitGroup
}

func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		templates:      deps.Templates,
		history:        deps.History,
		usage:          deps.Usage,
		archive:        deps.Archive,
		formatter:      deps.Formatter,
		metrics:        deps.Metrics,
		log:            deps.Logger,
		tracer:         otel.Tracer("legalhelp/api/internal/generation"),
		jurisdiction:   normalize.Singapore,
		persistTimeout: defaultPersistTimeout,
		now:            time.Now,
	}
	s.policy.Store(compliance.Advisory)
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.log == nil {
		s.log = logger.NewNoOpLogger()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPolicy switches the compliance policy for subsequent requests.
func (s *Service) SetPolicy(p compliance.Policy) {
	s.policy.Store(p)
}

func (s *Service) Policy() compliance.Policy {
	return s.policy.Load().(compliance.Policy)
}

// Generate produces the requested document. Every failure is a *Error.
// History and usage are written in the background after the document is
// ready; their failures are logged and never returned.
func (s *Service) Generate(ctx context.Context, req Request) (*Output, error) {
	start := s.now()
	formatLabel := "unknown"
	out, err := s.generate(ctx, req, &formatLabel)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailure
	}
	s.metrics.ObserveGeneration(formatLabel, status, s.now().Sub(start))
	return out, err
}

func (s *Service) generate(ctx context.Context, req Request, formatLabel *string) (*Output, error) {
	ctx, span := s.tracer.Start(ctx, "generation.Generate", trace.WithAttributes(
		attribute.String("template.id", req.TemplateID),
		attribute.String("output.format", req.OutputFormat),
	))
	defer span.End()

	log := s.log.With(map[string]interface{}{
		"template_id": req.TemplateID,
		"format":      req.OutputFormat,
	})

	format, err := validateRequest(req)
	if err != nil {
		return nil, s.fail(span, log, err)
	}
	*formatLabel = string(format)

	tpl, err := s.fetch(ctx, req.TemplateID)
	if err != nil {
		return nil, s.fail(span, log, err)
	}

	if err := variables.Check(tpl.Variables, req.Variables); err != nil {
		genErr := inputError("variables do not match the template")
		genErr.Err = err
		var mismatch *variables.MismatchError
		if errors.As(err, &mismatch) {
			genErr.Fields = mismatch.Fields
		}
		return nil, s.fail(span, log, genErr)
	}

	check := compliance.Check(req.Variables, s.jurisdiction.Variables(req.Variables))
	if !check.IsValid {
		s.metrics.ComplianceFailure()
		log.Warn("compliance check failed", map[string]interface{}{
			"errors": check.Errors,
			"policy": string(s.Policy()),
		})
	}
	if err := s.Policy().Enforce(check); err != nil {
		return nil, s.fail(span, log, &Error{
			Kind:       KindCompliance,
			Stage:      StageValidating,
			Message:    "variables failed compliance checks",
			Violations: check.Errors,
			Err:        err,
		})
	}

	notices := Notices(tpl.LegalReviewRequired, tpl.SingaporeCompliant, req.LegalNotices)

	res, err := s.format(ctx, export.Request{
		Title:       tpl.Title,
		Template:    tpl.Content,
		Variables:   req.Variables,
		Definitions: tpl.Variables,
		Format:      format,
		Notices:     notices,
		Watermark:   req.IncludeWatermark,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, s.fail(span, log, err)
	}

	version := ""
	if boolOr(req.GenerateVersion, true) {
		version = s.version(log, req, res)
	}

	out := &Output{
		Data:        res.Data,
		Filename:    res.Filename,
		MimeType:    res.MimeType,
		Version:     version,
		GeneratedAt: res.GeneratedAt,
		Compliance:  check,
		Notices:     notices,
	}

	s.persist(ctx, log, req, out, format)

	span.SetAttributes(attribute.String("document.version", version))
	log.Info("document generated", map[string]interface{}{
		"filename":   out.Filename,
		"version":    version,
		"bytes":      len(out.Data),
		"compliance": check.Status(),
	})
	return out, nil
}

func validateRequest(req Request) (export.Format, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return "", inputError("template_id is required")
	}
	if req.Variables == nil {
		return "", inputError("variables is required")
	}
	if strings.TrimSpace(req.OutputFormat) == "" {
		return "", inputError("output_format is required")
	}
	format, ok := export.ParseFormat(strings.ToLower(strings.TrimSpace(req.OutputFormat)))
	if !ok {
		return "", inputError("output_format must be docx or pdf")
	}
	return format, nil
}

func (s *Service) fetch(ctx context.Context, templateID string) (*store.PublishedTemplate, error) {
	ctx, span := s.tracer.Start(ctx, "generation.fetch")
	defer span.End()

	tpl, err := s.templates.GetPublishedTemplate(ctx, templateID)
	switch {
	case err == nil:
		return tpl, nil
	case errors.Is(err, store.ErrTemplateNotFound):
		return nil, &Error{Kind: KindNotFound, Stage: StageFetching, Message: "template not found", Err: err}
	case errors.Is(err, store.ErrContentNotReady):
		return nil, &Error{Kind: KindNotReady, Stage: StageFetching, Message: "template content is still being processed", Err: err}
	}
	return nil, &Error{Kind: KindInternal, Stage: StageFetching, Message: "template could not be loaded", Err: err}
}

func (s *Service) format(ctx context.Context, req export.Request) (*export.Result, error) {
	ctx, span := s.tracer.Start(ctx, "generation.format")
	defer span.End()

	res := s.formatter.Format(ctx, req)
	if res.Success {
		return res, nil
	}

	cause := res.Err
	if cause == nil {
		cause = errors.New(res.Error)
	}
	genErr := &Error{Kind: KindRender, Stage: StageFormatting, Message: "document could not be rendered", Err: cause}
	var renderErr *render.Error
	switch {
	case errors.As(cause, &renderErr) && errors.Is(cause, render.ErrMissingVariable):
		genErr.Message = "template placeholders have no value: " + strings.Join(renderErr.Missing, ", ")
		genErr.Missing = renderErr.Missing
	case errors.Is(cause, render.ErrCorruptTemplate):
		genErr.Message = "template file is corrupt"
	case errors.Is(cause, render.ErrMalformedTemplate):
		genErr.Message = "template has unbalanced sections"
	case errors.Is(cause, export.ErrUnsupportedFormat):
		genErr.Kind = KindInput
		genErr.Stage = StageValidating
		genErr.Message = "output_format must be docx or pdf"
	case errors.Is(cause, export.ErrPDFDependencyMissing), errors.Is(cause, export.ErrPanic):
		genErr.Kind = KindInternal
	}
	return nil, genErr
}

// version commits the document to its lineage archive. Documents the caller
// did not ask to keep get a timestamp version and are never written to disk.
func (s *Service) version(log logger.Logger, req Request, res *export.Result) string {
	fallback := fmt.Sprintf("v%d", res.GeneratedAt.UnixMilli())
	if s.archive == nil || !boolOr(req.SaveToHistory, true) {
		return fallback
	}
	v, err := s.archive.Commit(req.TemplateID, req.UserID, res.Filename, res.Data, req.UserID)
	if err != nil {
		s.metrics.PersistFailure("archive")
		log.WithError(err).Warn("lineage archive failed, using timestamp version", map[string]interface{}{
			"version": fallback,
		})
		return fallback
	}
	return v
}

// persist writes history and usage in the background. Both writes are
// attempted even when the other fails.
func (s *Service) persist(ctx context.Context, log logger.Logger, req Request, out *Output, format export.Format) {
	saveHistory := boolOr(req.SaveToHistory, true) && s.history != nil
	if !saveHistory && s.usage == nil {
		return
	}
	record := store.GenerationRecord{
		TemplateID:  req.TemplateID,
		UserID:      req.UserID,
		Variables:   req.Variables,
		Format:      string(format),
		Filename:    out.Filename,
		Version:     out.Version,
		GeneratedAt: out.GeneratedAt,
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
		defer cancel()
		ctx, span := s.tracer.Start(ctx, "generation.persist")
		defer span.End()

		var g errgroup.Group
		if saveHistory {
			g.Go(func() error {
				if err := s.history.InsertGenerationHistory(ctx, record); err != nil {
					s.metrics.PersistFailure("history")
					log.WithError(err).Error("failed to save generation history", nil)
					return err
				}
				return nil
			})
		}
		if s.usage != nil {
			g.Go(func() error {
				if err := s.usage.IncrementUsage(ctx, req.TemplateID, string(format)); err != nil {
					s.metrics.PersistFailure("usage")
					log.WithError(err).Error("failed to increment template usage", nil)
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
		}
	}()
}

// Drain waits for background persistence to finish or ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckCompliance validates vars as submitted and reports fields the
// normalizer could not format as warnings.
func (s *Service) CheckCompliance(vars map[string]any) compliance.Result {
	res := compliance.Check(vars, s.jurisdiction.Variables(vars))
	if !res.IsValid {
		s.metrics.ComplianceFailure()
	}
	return res
}

// DescribeTemplate lists what a caller needs to fill in a published template.
func (s *Service) DescribeTemplate(ctx context.Context, templateID string) (*TemplateDescription, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, inputError("template_id is required")
	}
	tpl, err := s.fetch(ctx, templateID)
	if err != nil {
		return nil, err
	}
	placeholders, err := render.Placeholders(tpl.Content)
	if err != nil {
		return nil, &Error{Kind: KindRender, Stage: StageFetching, Message: "template file is corrupt", Err: err}
	}
	defs := tpl.Variables
	if defs == nil {
		defs = []variables.Definition{}
	}
	return &TemplateDescription{
		ID:                  tpl.ID,
		Title:               tpl.Title,
		Category:            tpl.Category,
		SingaporeCompliant:  tpl.SingaporeCompliant,
		LegalReviewRequired: tpl.LegalReviewRequired,
		Variables:           defs,
		Placeholders:        placeholders,
		Notices:             Notices(tpl.LegalReviewRequired, tpl.SingaporeCompliant, nil),
	}, nil
}

func (s *Service) fail(span trace.Span, log logger.Logger, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var genErr *Error
	if errors.As(err, &genErr) {
		fields := map[string]interface{}{"kind": string(genErr.Kind), "stage": string(genErr.Stage)}
		if len(genErr.Missing) > 0 {
			fields["missing"] = genErr.Missing
		}
		if genErr.Kind == KindInternal || genErr.Kind == KindRender {
			log.WithError(err).Error("generation failed", fields)
		} else {
			log.Info("generation rejected", fields)
		}
	}
	return err
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
