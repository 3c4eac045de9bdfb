package app

import (
	"context"
	"sort"
	"time"

	"legalhelp/api/internal/compliance"
	"legalhelp/api/internal/generation"
	"legalhelp/api/internal/lineage"
	"legalhelp/api/internal/usage"
)

// Generator is the document generation surface served over HTTP.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Output, error)
	CheckCompliance(vars map[string]any) compliance.Result
	DescribeTemplate(ctx context.Context, templateID string) (*generation.TemplateDescription, error)
}

// UsageReader reads template usage counters.
type UsageReader interface {
	Usage(ctx context.Context, templateID string) (usage.Stats, error)
}

// VersionReader lists archived document versions of a template+user lineage.
type VersionReader interface {
	History(templateID, userID string, limit int) ([]lineage.Entry, error)
}

// Pinger is a dependency probed by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// readiness pings every dependency with a shared timeout.
func readiness(ctx context.Context, checks map[string]Pinger, timeout time.Duration) (bool, map[string]checkResult) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ok := true
	results := make(map[string]checkResult, len(checks))
	for _, name := range names {
		if err := checks[name].Ping(ctx); err != nil {
			ok = false
			results[name] = checkResult{Status: "error", Error: err.Error()}
			continue
		}
		results[name] = checkResult{Status: "ok"}
	}
	return ok, results
}
