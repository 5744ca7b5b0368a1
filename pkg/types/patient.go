// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for fhir-names: the Patient
// model returned by the server, the paged search contract between the
// orchestrator and the query client, and the typed configuration.
package types

import (
	"fmt"
	"time"
)

// HumanName is one name-variant attached to a Patient.
type HumanName struct {
	// Use is the FHIR name use (official, usual, maiden, ...).
	Use string `json:"use,omitempty" yaml:"use,omitempty"`

	// Text is the full name as a single string, when the server supplies it.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Family is the surname component.
	Family string `json:"family,omitempty" yaml:"family,omitempty"`

	// Given lists given names in order.
	Given []string `json:"given,omitempty" yaml:"given,omitempty"`

	Prefix []string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix []string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

// Patient is the subset of a FHIR Patient resource the search reads.
type Patient struct {
	// ID is the logical id of the resource on the server.
	ID string `json:"id" yaml:"id"`

	// Names holds the name-variants in the order the server returned them.
	Names []HumanName `json:"name,omitempty" yaml:"names,omitempty"`

	// BirthDate is nil when the record carries no birth date.
	BirthDate *Date `json:"birthDate,omitempty" yaml:"birth_date,omitempty"`
}

// DatePrecision records how much of a FHIR date was specified.
type DatePrecision int

const (
	PrecisionYear DatePrecision = iota + 1
	PrecisionMonth
	PrecisionDay
)

var dateLayouts = map[DatePrecision]string{
	PrecisionYear:  "2006",
	PrecisionMonth: "2006-01",
	PrecisionDay:   "2006-01-02",
}

// Date is a FHIR date: YYYY, YYYY-MM or YYYY-MM-DD.
type Date struct {
	Time      time.Time
	Precision DatePrecision
}

// NewDate returns a day-precision Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{
		Time:      time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Precision: PrecisionDay,
	}
}

// ParseDate parses a FHIR date string, keeping its precision.
func ParseDate(s string) (Date, error) {
	var p DatePrecision
	switch len(s) {
	case 4:
		p = PrecisionYear
	case 7:
		p = PrecisionMonth
	case 10:
		p = PrecisionDay
	default:
		return Date{}, fmt.Errorf("invalid FHIR date %q", s)
	}
	t, err := time.Parse(dateLayouts[p], s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid FHIR date %q: %w", s, err)
	}
	return Date{Time: t, Precision: p}, nil
}

// String formats the date at its own precision.
func (d Date) String() string {
	layout, ok := dateLayouts[d.Precision]
	if !ok {
		layout = dateLayouts[PrecisionDay]
	}
	return d.Time.Format(layout)
}

// MarshalText implements encoding.TextMarshaler so dates serialize in
// FHIR form in JSON and YAML output.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
