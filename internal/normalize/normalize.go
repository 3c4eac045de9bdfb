package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Outcome records what the batch normalizer did with one field.
type Outcome string

const (
	Normalized    Outcome = "normalized"
	PassedThrough Outcome = "passed_through"
	Untouched     Outcome = "untouched"
)

// Field keys with jurisdiction formatting rules.
const (
	KeyNRIC          = "nric_number"
	KeyUEN           = "uen_number"
	KeyPhone         = "phone_number"
	KeyContractValue = "contract_value"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Result is the outcome of normalizing a whole variable map.
type Result struct {
	Values map[string]any
	Fields map[string]Outcome
}

// PassedThrough lists the keys whose values had a formatting rule but could
// not be formatted, sorted.
func (r Result) PassedThrough() []string {
	var keys []string
	for k, o := range r.Fields {
		if o == PassedThrough {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func NRIC(raw string) string               { return Singapore.NRIC(raw) }
func UEN(raw string) string                { return Singapore.UEN(raw) }
func Phone(raw string) string              { return Singapore.Phone(raw) }
func Date(v any) any                       { return Singapore.Date(v) }
func Currency(v any) any                   { return Singapore.Currency(v) }
func Variables(vars map[string]any) Result { return Singapore.Variables(vars) }

// NRIC removes whitespace and uppercases. Values that do not then match
// NRICPattern are returned as given.
func (j Jurisdiction) NRIC(raw string) string {
	out, _ := j.nric(raw)
	return out
}

func (j Jurisdiction) nric(raw string) (string, Outcome) {
	cleaned := strings.ToUpper(stripSpace(raw))
	if NRICPattern.MatchString(cleaned) {
		return cleaned, Normalized
	}
	return raw, PassedThrough
}

// UEN removes whitespace and uppercases. UEN shapes vary, so nothing is rejected.
func (j Jurisdiction) UEN(raw string) string {
	out, _ := j.uen(raw)
	return out
}

func (j Jurisdiction) uen(raw string) (string, Outcome) {
	cleaned := strings.ToUpper(stripSpace(raw))
	if UENPattern.MatchString(cleaned) {
		return cleaned, Normalized
	}
	return cleaned, PassedThrough
}

// Phone formats an eight digit local number as "+65 XXXX XXXX".
func (j Jurisdiction) Phone(raw string) string {
	out, _ := j.phone(raw)
	return out
}

func (j Jurisdiction) phone(raw string) (string, Outcome) {
	digits := j.PhoneDigits(raw)
	if !PhonePattern.MatchString(digits) {
		return raw, PassedThrough
	}
	return j.PhonePrefix + " " + digits[:4] + " " + digits[4:], Normalized
}

// PhoneDigits strips everything but digits.
func (j Jurisdiction) PhoneDigits(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// Date renders v as DD/MM/YYYY in the jurisdiction zone. v may be a
// time.Time or a string in one of the accepted layouts; anything else is
// returned unchanged.
func (j Jurisdiction) Date(v any) any {
	out, _ := j.date(v)
	return out
}

func (j Jurisdiction) date(v any) (any, Outcome) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return v, PassedThrough
		}
		return t.In(j.Location).Format(j.DateLayout), Normalized
	case *time.Time:
		if t == nil {
			return v, PassedThrough
		}
		return j.date(*t)
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			parsed, err := time.ParseInLocation(layout, s, j.Location)
			if err == nil {
				return parsed.In(j.Location).Format(j.DateLayout), Normalized
			}
		}
	}
	return v, PassedThrough
}

// Currency renders a number or numeric string as "SGD 1,234.00". Strings
// already carrying the currency code or thousands separators are accepted.
func (j Jurisdiction) Currency(v any) any {
	out, _ := j.currency(v)
	return out
}

func (j Jurisdiction) currency(v any) (any, Outcome) {
	amount, ok := j.amount(v)
	if !ok {
		return v, PassedThrough
	}
	p := message.NewPrinter(j.Language)
	return j.Unit.String() + " " + p.Sprintf("%v", number.Decimal(amount, number.Scale(2))), Normalized
}

func (j Jurisdiction) amount(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimPrefix(s, j.Unit.String())
		s = strings.TrimPrefix(strings.TrimSpace(s), "S$")
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		s = stripSpace(s)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Variables applies the per-key rules to a whole map. Keys without a rule
// keep their value as submitted, whatever its type.
func (j Jurisdiction) Variables(vars map[string]any) Result {
	res := Result{
		Values: make(map[string]any, len(vars)),
		Fields: make(map[string]Outcome, len(vars)),
	}
	for key, val := range vars {
		out, outcome := j.field(key, val)
		res.Values[key] = out
		res.Fields[key] = outcome
	}
	return res
}

func (j Jurisdiction) field(key string, val any) (any, Outcome) {
	switch {
	case key == KeyNRIC:
		return stringRule(val, j.nric)
	case key == KeyUEN:
		return stringRule(val, j.uen)
	case key == KeyPhone:
		return stringRule(val, j.phone)
	case strings.Contains(key, "date"):
		return j.date(val)
	case key == KeyContractValue:
		return j.currency(val)
	}
	return val, Untouched
}

// IsDateKey reports whether "date" is a whole underscore-separated word of
// key, as in "start_date" but not "candidate_name".
func IsDateKey(key string) bool {
	for _, part := range strings.Split(key, "_") {
		if part == "date" {
			return true
		}
	}
	return false
}

func stringRule(val any, rule func(string) (string, Outcome)) (any, Outcome) {
	s, ok := scalarString(val)
	if !ok {
		return val, PassedThrough
	}
	out, outcome := rule(s)
	if outcome == PassedThrough && out == s {
		return val, outcome
	}
	return out, outcome
}

// scalarString renders strings and numbers; phone numbers often arrive as JSON numbers.
func scalarString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case json.Number:
		return n.String(), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	}
	return "", false
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
