// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PageRequest describes a page fetch about to be issued.
type PageRequest struct {
	Term string
	// Page is the 1-based page number within the term's search.
	Page int
	// Continuation is true when following a next link rather than
	// issuing the initial search.
	Continuation bool
	NoCache      bool
}

// PageResponse describes the outcome of a page fetch.
type PageResponse struct {
	Request PageRequest
	Records int
	HasNext bool
	Elapsed time.Duration
	Err     error
}

// Observer is notified around every page fetch. Observers are for
// instrumentation only and cannot influence the search.
type Observer interface {
	BeforeRequest(req PageRequest)
	AfterResponse(resp PageResponse)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Before func(PageRequest)
	After  func(PageResponse)
}

// BeforeRequest calls o.Before if set.
func (o ObserverFuncs) BeforeRequest(req PageRequest) {
	if o.Before != nil {
		o.Before(req)
	}
}

// AfterResponse calls o.After if set.
func (o ObserverFuncs) AfterResponse(resp PageResponse) {
	if o.After != nil {
		o.After(resp)
	}
}

// LogObserver logs every page fetch.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver returns an observer writing to logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "search").Logger()}
}

// BeforeRequest logs the request at debug level.
func (l *LogObserver) BeforeRequest(req PageRequest) {
	l.logger.Debug().
		Str("term", req.Term).
		Int("page", req.Page).
		Bool("continuation", req.Continuation).
		Bool("no_cache", req.NoCache).
		Msg("requesting page")
}

// AfterResponse logs the response, or the failure at error level.
func (l *LogObserver) AfterResponse(resp PageResponse) {
	if resp.Err != nil {
		l.logger.Error().Err(resp.Err).
			Str("term", resp.Request.Term).
			Int("page", resp.Request.Page).
			Dur("elapsed", resp.Elapsed).
			Msg("page request failed")
		return
	}
	l.logger.Info().
		Str("term", resp.Request.Term).
		Int("page", resp.Request.Page).
		Int("records", resp.Records).
		Bool("has_next", resp.HasNext).
		Dur("elapsed", resp.Elapsed).
		Msg("page received")
}

// TermStats aggregates the responses seen for one term across runs.
type TermStats struct {
	Term string
	// Searches counts initial search requests (one per run of the term).
	Searches int
	// Continuations counts next-page requests.
	Continuations int
	// Failures counts requests that returned an error.
	Failures int
	// ResponseTimes holds the elapsed time of each initial search, in order.
	ResponseTimes []time.Duration
	// Records holds, per initial search, the number of records received
	// across all pages of that search.
	Records []int
}

// Recorder is an Observer that collects TermStats. It is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	order []string
	stats map[string]*TermStats
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{stats: make(map[string]*TermStats)}
}

// BeforeRequest implements Observer.
func (r *Recorder) BeforeRequest(PageRequest) {}

// AfterResponse implements Observer.
func (r *Recorder) AfterResponse(resp PageResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()

	term := resp.Request.Term
	st, ok := r.stats[term]
	if !ok {
		st = &TermStats{Term: term}
		r.stats[term] = st
		r.order = append(r.order, term)
	}

	if resp.Request.Continuation {
		st.Continuations++
	} else {
		st.Searches++
		st.ResponseTimes = append(st.ResponseTimes, resp.Elapsed)
		st.Records = append(st.Records, 0)
	}
	if resp.Err != nil {
		st.Failures++
		return
	}
	if n := len(st.Records); n > 0 {
		st.Records[n-1] += resp.Records
	}
}

// Stats returns a copy of the collected stats in first-seen term order.
func (r *Recorder) Stats() []TermStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TermStats, 0, len(r.order))
	for _, term := range r.order {
		st := *r.stats[term]
		st.ResponseTimes = append([]time.Duration(nil), st.ResponseTimes...)
		st.Records = append([]int(nil), st.Records...)
		out = append(out, st)
	}
	return out
}

// Term returns the stats for one term.
func (r *Recorder) Term(term string) (TermStats, bool) {
	for _, st := range r.Stats() {
		if st.Term == term {
			return st, true
		}
	}
	return TermStats{}, false
}
