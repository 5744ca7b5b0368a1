// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package names maps a matched Patient back to the name-variant that
// caused the match and formats names for output.
package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/fhir-names/pkg/types"
)

// Matcher decides which name-variant of a Patient matched a search term.
// The zero value does full Unicode case folding.
type Matcher struct {
	// IgnoreAccents also strips combining marks before comparing, so
	// "Pelé" contains "pele".
	IgnoreAccents bool
}

// Extract scans p.Names in order and returns the first variant whose
// family name contains term, case-insensitively. When none matches the
// variant is nil. The birth date is always the record's own.
func (m Matcher) Extract(p types.Patient, term string) (*types.HumanName, *types.Date) {
	needle := m.fold(term)
	for i := range p.Names {
		if strings.Contains(m.fold(p.Names[i].Family), needle) {
			n := p.Names[i]
			return &n, p.BirthDate
		}
	}
	return nil, p.BirthDate
}

// Matches reports whether family contains term under m's folding rules.
func (m Matcher) Matches(family, term string) bool {
	return strings.Contains(m.fold(family), m.fold(term))
}

func (m Matcher) fold(s string) string {
	if m.IgnoreAccents {
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if out, _, err := transform.String(t, s); err == nil {
			s = out
		}
	}
	return cases.Fold().String(s)
}

// Extract is Matcher{}.Extract.
func Extract(p types.Patient, term string) (*types.HumanName, *types.Date) {
	return Matcher{}.Extract(p, term)
}
