// Package normalize turns raw form input into jurisdiction display strings.
//
// Every formatter is pure and total: malformed input is returned unchanged
// and rejection is left to the compliance package.
package normalize

import (
	"regexp"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Format definitions shared with the compliance validator.
var (
	NRICPattern  = regexp.MustCompile(`^[STFG][0-9]{7}[A-Z]$`)
	UENPattern   = regexp.MustCompile(`^[0-9]{8,10}[A-Z]$`)
	PhonePattern = regexp.MustCompile(`^[0-9]{8}$`)
)

// Jurisdiction holds the display conventions of one legal region.
type Jurisdiction struct {
	Code        string
	Name        string
	Unit        currency.Unit
	Location    *time.Location
	DateLayout  string
	PhonePrefix string
	Language    language.Tag
}

// Singapore is the only jurisdiction the platform serves.
var Singapore = Jurisdiction{
	Code:        "SG",
	Name:        "Singapore",
	Unit:        currency.MustParseISO("SGD"),
	Location:    time.FixedZone("SGT", 8*60*60),
	DateLayout:  "02/01/2006",
	PhonePrefix: "+65",
	Language:    language.English,
}

// WithCurrency returns a copy of j using the given ISO 4217 code.
func (j Jurisdiction) WithCurrency(code string) (Jurisdiction, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return j, err
	}
	j.Unit = unit
	return j, nil
}
