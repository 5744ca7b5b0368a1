// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search walks paged FHIR Patient searches for a list of family-name
// terms and hands every returned record, mapped to the name-variant that
// matched its term, to a Sink.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/fhir-names/internal/names"
	"github.com/pdiddy/fhir-names/pkg/types"
)

const (
	resourcePatient = "Patient"
	filterFamily    = "family"
	sortGiven       = "given"

	// PageSize is the _count sent with every search. Together with the
	// sort on given name it keeps the order within a page stable.
	PageSize = 100
)

// ErrNoTerms is returned by Run when no search terms were added.
var ErrNoTerms = errors.New("no search terms: add at least one family name to search on")

// Client issues paged searches against the server.
type Client interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.Page, error)
	// NextPage follows the continuation link of page. It must only be
	// called when page.HasNext() is true.
	NextPage(ctx context.Context, page *types.Page) (*types.Page, error)
}

// Match is what the Printer hands to its Sink for each record.
type Match struct {
	// Term is the search term that produced the record.
	Term string

	// Page is the 1-based page of the term's search the record came from.
	Page int

	// Name is the first name-variant whose family contains Term, or nil.
	Name *types.HumanName

	// BirthDate is the record's birth date, or nil.
	BirthDate *types.Date

	// Patient is a copy of the source record.
	Patient types.Patient
}

// Builder collects the search configuration. Build freezes it into a Printer.
type Builder struct {
	terms     []string
	pageLimit int
	noCache   bool
	matcher   names.Matcher
	sink      Sink
	observers []Observer
}

// NewBuilder returns a Builder with caching enabled and no page limit.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTerm appends a family-name term. Duplicates are kept and searched
// again; empty terms are ignored.
func (b *Builder) AddTerm(term string) *Builder {
	if term != "" {
		b.terms = append(b.terms, term)
	}
	return b
}

// AddTerms appends each term in order.
func (b *Builder) AddTerms(terms ...string) *Builder {
	for _, t := range terms {
		b.AddTerm(t)
	}
	return b
}

// PageLimit caps the pages fetched per term. n <= 0 fetches until the
// server stops advertising a next link.
func (b *Builder) PageLimit(n int) *Builder {
	b.pageLimit = n
	return b
}

// NoCache sends the no-cache directive with every search when true.
func (b *Builder) NoCache(bypass bool) *Builder {
	b.noCache = bypass
	return b
}

// Matcher replaces the default case-insensitive matcher.
func (b *Builder) Matcher(m names.Matcher) *Builder {
	b.matcher = m
	return b
}

// Sink sets where matches go. Without one, matches are discarded.
func (b *Builder) Sink(s Sink) *Builder {
	b.sink = s
	return b
}

// Observe attaches observers called around every page fetch.
func (b *Builder) Observe(o ...Observer) *Builder {
	b.observers = append(b.observers, o...)
	return b
}

// Build returns a Printer with a private copy of the configuration.
// Later changes to the Builder do not affect it.
func (b *Builder) Build(client Client) *Printer {
	sink := b.sink
	if sink == nil {
		sink = Discard
	}
	return &Printer{
		client:    client,
		terms:     append([]string(nil), b.terms...),
		pageLimit: b.pageLimit,
		noCache:   b.noCache,
		matcher:   b.matcher,
		sink:      sink,
		observers: append([]Observer(nil), b.observers...),
	}
}

// Printer searches each term in order and prints every match. It is
// immutable; Run may be called more than once.
type Printer struct {
	client    Client
	terms     []string
	pageLimit int
	noCache   bool
	matcher   names.Matcher
	sink      Sink
	observers []Observer
}

// Terms returns a copy of the configured terms.
func (p *Printer) Terms() []string {
	return append([]string(nil), p.terms...)
}

// Run searches every term in order. Pages and records are processed
// strictly in server order. The first client or sink error stops the run.
func (p *Printer) Run(ctx context.Context) error {
	if len(p.terms) == 0 {
		return ErrNoTerms
	}
	for _, term := range p.terms {
		if err := p.runTerm(ctx, term); err != nil {
			return err
		}
	}
	return nil
}

// NewRequest returns the Patient search for one family-name term: PageSize
// records per page, sorted by given name.
func NewRequest(term string, noCache bool) types.SearchRequest {
	return types.SearchRequest{
		ResourceType: resourcePatient,
		FilterField:  filterFamily,
		FilterValue:  term,
		PageSize:     PageSize,
		SortField:    sortGiven,
		NoCache:      noCache,
	}
}

func (p *Printer) runTerm(ctx context.Context, term string) error {
	req := NewRequest(term, p.noCache)

	fetched := 1
	page, err := p.fetch(term, fetched, false, func() (*types.Page, error) {
		return p.client.Search(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("searching %q: %w", term, err)
	}

	for {
		for _, rec := range page.Patients {
			name, bd := p.matcher.Extract(rec, term)
			m := Match{Term: term, Page: fetched, Name: name, BirthDate: bd, Patient: rec}
			if err := p.sink.Print(m); err != nil {
				return fmt.Errorf("printing %q page %d: %w", term, fetched, err)
			}
		}

		if !page.HasNext() || (p.pageLimit > 0 && fetched >= p.pageLimit) {
			return nil
		}

		current := page
		fetched++
		page, err = p.fetch(term, fetched, true, func() (*types.Page, error) {
			return p.client.NextPage(ctx, current)
		})
		if err != nil {
			return fmt.Errorf("fetching %q page %d: %w", term, fetched, err)
		}
	}
}

// fetch wraps one client call with the observer hooks.
func (p *Printer) fetch(term string, page int, continuation bool, call func() (*types.Page, error)) (*types.Page, error) {
	req := PageRequest{Term: term, Page: page, Continuation: continuation, NoCache: p.noCache}
	for _, o := range p.observers {
		o.BeforeRequest(req)
	}

	start := time.Now()
	result, err := call()
	if err == nil && result == nil {
		err = errors.New("client returned no page")
	}

	resp := PageResponse{Request: req, Elapsed: time.Since(start), Err: err}
	if err == nil {
		resp.Records = len(result.Patients)
		resp.HasNext = result.HasNext()
	}
	for _, o := range p.observers {
		o.AfterResponse(resp)
	}
	return result, err
}
