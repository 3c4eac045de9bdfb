package export

import (
	"strings"

	"github.com/klauspost/compress/flate"

	"legalhelp/api/internal/render"
)

const (
	noticesKey     = "legal_notices"
	noticesTextKey = "legal_notices_text"
)

// exportDOCX fills the template and repackages it at maximum compression
func (f *Formatter) exportDOCX(req Request, vars map[string]any) ([]byte, error) {
	if len(req.Template) == 0 {
		return nil, ErrContentUnavailable
	}
	return render.Render(req.Template, withNotices(vars, req.Notices), render.WithCompression(flate.BestCompression))
}

// withNotices exposes the notices to templates unless the caller already
// supplied values under the same keys.
func withNotices(vars map[string]any, notices []string) map[string]any {
	out := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		out[k] = v
	}
	if _, ok := out[noticesKey]; !ok {
		items := make([]any, len(notices))
		for i, n := range notices {
			items[i] = map[string]any{"text": n}
		}
		out[noticesKey] = items
	}
	if _, ok := out[noticesTextKey]; !ok {
		out[noticesTextKey] = strings.Join(notices, "\n")
	}
	return out
}
