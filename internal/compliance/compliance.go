// Package compliance checks variable sets against Singapore format rules.
package compliance

import (
	"fmt"
	"strings"

	"legalhelp/api/internal/normalize"
)

const (
	MsgNRIC  = "NRIC number must be in format S1234567A"
	MsgUEN   = "UEN number must be 8-10 digits followed by a letter"
	MsgPhone = "Phone number must be 8 digits"
)

// Result is one validation outcome. Warnings never affect IsValid.
type Result struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// Status is the short form sent in response headers.
func (r Result) Status() string {
	if r.IsValid {
		return "valid"
	}
	return "invalid"
}

// Validate applies the NRIC, UEN and phone rules, in that order, to the keys
// that are present and non-empty.
func Validate(vars map[string]any) Result {
	errs := make([]string, 0, 3)
	if v, ok := present(vars, normalize.KeyNRIC); ok && !normalize.NRICPattern.MatchString(v) {
		errs = append(errs, MsgNRIC)
	}
	if v, ok := present(vars, normalize.KeyUEN); ok && !normalize.UENPattern.MatchString(v) {
		errs = append(errs, MsgUEN)
	}
	if v, ok := present(vars, normalize.KeyPhone); ok && !normalize.PhonePattern.MatchString(normalize.Singapore.PhoneDigits(v)) {
		errs = append(errs, MsgPhone)
	}
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// Check validates the submitted values and warns about date and currency
// fields the normalizer could not format. Keys that only contain "date"
// inside a word, like candidate_name, are not warned about.
func Check(raw map[string]any, res normalize.Result) Result {
	out := Validate(raw)
	for _, key := range res.PassedThrough() {
		if key != normalize.KeyContractValue && !normalize.IsDateKey(key) {
			continue
		}
		if _, ok := present(res.Values, key); !ok {
			continue
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s could not be formatted and was used as submitted", key))
	}
	return out
}

func present(vars map[string]any, key string) (string, bool) {
	raw, ok := vars[key]
	if !ok || raw == nil {
		return "", false
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
