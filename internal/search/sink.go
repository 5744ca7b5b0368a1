// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pdiddy/fhir-names/internal/names"
)

// Sink receives every match, in page order and then record order. A
// non-nil error stops the run.
type Sink interface {
	Print(m Match) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(m Match) error

// Print calls f(m).
func (f SinkFunc) Print(m Match) error { return f(m) }

// Discard is a Sink that drops every match.
var Discard Sink = SinkFunc(func(Match) error { return nil })

const noMatchLabel = "<no matching name>"

// TextSink writes one line per match: the matched name with its birth date.
type TextSink struct {
	W io.Writer
}

// Print writes the formatted match to s.W.
func (s TextSink) Print(m Match) error {
	_, err := fmt.Fprintln(s.W, FormatMatch(m))
	return err
}

// FormatMatch renders a match as "Given Family (YYYY-MM-DD)". A record with
// no matching name-variant renders as "<no matching name>" plus the date.
func FormatMatch(m Match) string {
	if m.Name == nil {
		if m.BirthDate == nil {
			return noMatchLabel
		}
		return noMatchLabel + " (" + m.BirthDate.String() + ")"
	}
	return names.WithBirthDate(*m.Name, m.BirthDate)
}

// Collector keeps every match in memory.
type Collector struct {
	mu      sync.Mutex
	matches []Match
}

// Print appends m.
func (c *Collector) Print(m Match) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, m)
	return nil
}

// Matches returns a copy of the collected matches in arrival order.
func (c *Collector) Matches() []Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Match(nil), c.matches...)
}

// Reset drops the collected matches.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = nil
}

// MultiSink hands each match to every sink in order and stops at the first error.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(m Match) error {
		for _, s := range sinks {
			if err := s.Print(m); err != nil {
				return err
			}
		}
		return nil
	})
}

// FormatStats writes recorder stats as a human-readable table to w.
func FormatStats(stats []TermStats, w io.Writer) {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No requests recorded.")
		return
	}

	fmt.Fprintf(w, "%-24s  %-8s  %-13s  %-8s  %-20s  %s\n",
		"Term", "Searches", "Continuations", "Failures", "Records", "Response times")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, st := range stats {
		term := truncate(st.Term, 24)
		records := make([]string, len(st.Records))
		for i, n := range st.Records {
			records[i] = fmt.Sprintf("%d", n)
		}
		times := make([]string, len(st.ResponseTimes))
		for i, d := range st.ResponseTimes {
			times[i] = fmt.Sprintf("%dms", d.Milliseconds())
		}
		fmt.Fprintf(w, "%-24s  %-8d  %-13d  %-8d  %-20s  %s\n",
			term, st.Searches, st.Continuations, st.Failures,
			strings.Join(records, ","), strings.Join(times, ","))
	}
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
