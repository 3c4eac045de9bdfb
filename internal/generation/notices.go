package generation

import "strings"

var baselineNotices = []string{
	"This document was generated from a standard template and does not constitute legal advice.",
	"The parties should read the whole document carefully before signing it.",
	"This document is intended for use under the laws of Singapore.",
}

const (
	legalReviewNotice = "Legal review by a qualified Singapore lawyer is recommended before this document is used."
	compliantNotice   = "This template has been prepared to comply with Singapore legal requirements."
)

// Notices assembles the legal notices for one document: the baseline set,
// the template flag notices, then the caller's extra notices. Blank extras
// are dropped.
func Notices(legalReviewRequired, singaporeCompliant bool, extra []string) []string {
	out := make([]string, 0, len(baselineNotices)+2+len(extra))
	out = append(out, baselineNotices...)
	if legalReviewRequired {
		out = append(out, legalReviewNotice)
	}
	if singaporeCompliant {
		out = append(out, compliantNotice)
	}
	for _, n := range extra {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
