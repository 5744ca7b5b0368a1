// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchRequest is one paged search issued by the orchestrator.
type SearchRequest struct {
	// ResourceType is the FHIR resource searched (e.g. "Patient").
	ResourceType string

	// FilterField and FilterValue form the single search parameter
	// (e.g. family=Smith).
	FilterField string
	FilterValue string

	// PageSize is sent as _count.
	PageSize int

	// SortField is sent as _sort (ascending).
	SortField string

	// NoCache asks the server and intermediaries to skip cached responses.
	NoCache bool
}

// Page is one batch of search results.
type Page struct {
	// Patients holds the records on this page in server order.
	Patients []Patient

	// Next is the continuation link; empty when this is the last page.
	Next string

	// NoCache carries the cache directive of the originating search so
	// continuation requests use the same one.
	NoCache bool
}

// HasNext reports whether the server advertised a continuation link.
func (p *Page) HasNext() bool {
	return p != nil && p.Next != ""
}
