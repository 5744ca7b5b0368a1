// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package names

import (
	"strings"

	"github.com/pdiddy/fhir-names/pkg/types"
)

// First returns the first element of s, or the zero value and false.
func First[T any](s []T) (T, bool) {
	if len(s) == 0 {
		var zero T
		return zero, false
	}
	return s[0], true
}

// GivenNames joins the given names of n with single spaces, skipping
// empty components.
func GivenNames(n types.HumanName) string {
	return joinNonEmpty(n.Given)
}

// FirstName returns the given names of the patient's first name-variant,
// or "" when it has none.
func FirstName(p types.Patient) string {
	n, ok := First(p.Names)
	if !ok {
		return ""
	}
	return GivenNames(n)
}

// Full renders n as a single string. Text wins when the server supplied it.
func Full(n types.HumanName) string {
	if strings.TrimSpace(n.Text) != "" {
		return strings.TrimSpace(n.Text)
	}
	parts := make([]string, 0, len(n.Prefix)+len(n.Given)+len(n.Suffix)+1)
	parts = append(parts, n.Prefix...)
	parts = append(parts, n.Given...)
	parts = append(parts, n.Family)
	parts = append(parts, n.Suffix...)
	return joinNonEmpty(parts)
}

// WithBirthDate renders "Given Family (YYYY-MM-DD)". The date suffix is
// omitted when bd is nil.
func WithBirthDate(n types.HumanName, bd *types.Date) string {
	s := Full(n)
	if bd == nil {
		return s
	}
	if s == "" {
		return "(" + bd.String() + ")"
	}
	return s + " (" + bd.String() + ")"
}

// PatientWithBirthDate renders the patient's first name-variant with its
// birth date. A patient without names renders the date alone.
func PatientWithBirthDate(p types.Patient) string {
	n, _ := First(p.Names)
	return WithBirthDate(n, p.BirthDate)
}

func joinNonEmpty(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}
