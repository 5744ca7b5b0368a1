// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/fhir-names/internal/names"
	"github.com/pdiddy/fhir-names/pkg/types"
)

// ReadTerms reads one search term per line. Lines are trimmed; blank lines
// and lines starting with '#' are skipped. Order and duplicates are kept.
func ReadTerms(r io.Reader) ([]string, error) {
	var terms []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading terms: %w", err)
	}
	return terms, nil
}

// ReadTermsFile reads terms from the file at path (see ReadTerms).
func ReadTermsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening terms file: %w", err)
	}
	defer f.Close()
	return ReadTerms(f)
}

// RunFile is the on-disk record of a search session: what was searched,
// with which settings, and every read of the terms in the order it ran.
type RunFile struct {
	Terms  []string      `yaml:"terms"`
	Config RunFileConfig `yaml:"config"`
	Reads  []RunRead     `yaml:"reads"`
}

// RunFileConfig stores the settings shared by every read.
type RunFileConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	PageLimit int    `yaml:"page_limit"`
}

// RunRead is one pass over all terms.
type RunRead struct {
	// Read is the 1-based position of the read in the session.
	Read    int        `yaml:"read"`
	NoCache bool       `yaml:"no_cache"`
	Matches []RunMatch `yaml:"matches"`
	Summary RunSummary `yaml:"summary"`
}

// RunMatch is one printed match in serializable form.
type RunMatch struct {
	Term      string `yaml:"term"`
	Page      int    `yaml:"page"`
	PatientID string `yaml:"patient_id,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Family    string `yaml:"family,omitempty"`
	BirthDate string `yaml:"birth_date,omitempty"`
	Matched   bool   `yaml:"matched"`
}

// RunSummary stores per-term counts of one read and when it finished.
type RunSummary struct {
	Total     int            `yaml:"total"`
	Unmatched int            `yaml:"unmatched"`
	PerTerm   map[string]int `yaml:"per_term"`
	Timestamp time.Time      `yaml:"timestamp"`
}

// NewRunFile returns a RunFile with no reads.
func NewRunFile(terms []string, cfg RunFileConfig) *RunFile {
	return &RunFile{
		Terms:  append([]string(nil), terms...),
		Config: cfg,
	}
}

// AddRead appends a read built from the matches it printed and returns it.
func (rf *RunFile) AddRead(noCache bool, matches []Match) RunRead {
	rr := RunRead{
		Read:    len(rf.Reads) + 1,
		NoCache: noCache,
		Summary: RunSummary{
			Total:     len(matches),
			PerTerm:   make(map[string]int),
			Timestamp: time.Now().UTC(),
		},
	}
	for _, m := range matches {
		rm := RunMatch{
			Term:      m.Term,
			Page:      m.Page,
			PatientID: m.Patient.ID,
			Matched:   m.Name != nil,
		}
		if m.Name != nil {
			rm.Name = names.Full(*m.Name)
			rm.Family = m.Name.Family
		} else {
			rr.Summary.Unmatched++
		}
		if m.BirthDate != nil {
			rm.BirthDate = m.BirthDate.String()
		}
		rr.Matches = append(rr.Matches, rm)
		rr.Summary.PerTerm[m.Term]++
	}
	rf.Reads = append(rf.Reads, rr)
	return rr
}

// WriteRunFile saves rf as YAML to path.
func WriteRunFile(path string, rf *RunFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("marshaling run file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRunFile loads a previously saved run file from disk.
func ReadRunFile(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w", err)
	}
	var rf RunFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing run file: %w", err)
	}
	return &rf, nil
}

// ParsedBirthDate parses the stored birth date, or returns nil when absent.
func (m RunMatch) ParsedBirthDate() (*types.Date, error) {
	if m.BirthDate == "" {
		return nil, nil
	}
	d, err := types.ParseDate(m.BirthDate)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
