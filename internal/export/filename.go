package export

import (
	"regexp"
	"strings"
	"time"
)

var (
	filenameStrip  = regexp.MustCompile(`[^A-Za-z0-9 -]`)
	filenameSpaces = regexp.MustCompile(` +`)
)

const filenameStamp = "2006-01-02T15-04-05"

// sanitizeFilename keeps letters, digits, spaces and hyphens, turns runs of
// spaces into one hyphen and lowercases.
func sanitizeFilename(title string) string {
	result := filenameStrip.ReplaceAllString(title, "")
	result = filenameSpaces.ReplaceAllString(result, "-")
	result = strings.ToLower(result)
	if result == "" {
		result = "document"
	}
	return result
}

// Filename builds "<sanitized-title>-<YYYY-MM-DDTHH-MM-SS>.<ext>" in UTC.
func Filename(title string, format Format, at time.Time) string {
	return sanitizeFilename(title) + "-" + at.UTC().Format(filenameStamp) + "." + string(format)
}
