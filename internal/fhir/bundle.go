// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fhir

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/fhir-names/pkg/types"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	// Diagnostics is taken from an OperationOutcome body when the server sent one.
	Diagnostics string
}

func (e *StatusError) Error() string {
	if e.Diagnostics == "" {
		return fmt.Sprintf("FHIR server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("FHIR server returned HTTP %d: %s", e.StatusCode, e.Diagnostics)
}

func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return se
	}
	var oo operationOutcome
	if json.Unmarshal(body, &oo) == nil && oo.ResourceType == "OperationOutcome" {
		se.Diagnostics = oo.diagnostics()
	}
	return se
}

// decodeBundle reads a searchset Bundle into a Page. Entries that are not
// Patient resources (OperationOutcome, _include results) are skipped.
func decodeBundle(r io.Reader, logger zerolog.Logger) (*types.Page, error) {
	var b bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, err
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("expected a Bundle, got resourceType %q", b.ResourceType)
	}

	page := &types.Page{Next: b.link("next")}
	for i, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var hdr resourceHeader
		if err := json.Unmarshal(e.Resource, &hdr); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if hdr.ResourceType != "Patient" {
			continue
		}
		p, err := decodePatient(e.Resource, logger)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		page.Patients = append(page.Patients, p)
	}
	return page, nil
}

// decodePatient decodes one Patient. A birthDate that is not a valid FHIR
// date is logged and treated as absent so the record is still printed.
func decodePatient(raw json.RawMessage, logger zerolog.Logger) (types.Patient, error) {
	var pr patientResource
	if err := json.Unmarshal(raw, &pr); err != nil {
		return types.Patient{}, fmt.Errorf("decoding Patient: %w", err)
	}
	p := types.Patient{ID: pr.ID, Names: pr.Name}
	if pr.BirthDate != "" {
		d, err := types.ParseDate(pr.BirthDate)
		if err != nil {
			logger.Warn().Err(err).Str("patient", pr.ID).Msg("ignoring invalid birthDate")
			return p, nil
		}
		p.BirthDate = &d
	}
	return p, nil
}

// FHIR JSON structures.
type bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []bundleLink  `json:"link"`
	Entry        []bundleEntry `json:"entry"`
}

func (b bundle) link(relation string) string {
	for _, l := range b.Link {
		if l.Relation == relation {
			return l.URL
		}
	}
	return ""
}

type bundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type bundleEntry struct {
	FullURL  string          `json:"fullUrl"`
	Resource json.RawMessage `json:"resource"`
}

type resourceHeader struct {
	ResourceType string `json:"resourceType"`
}

type patientResource struct {
	ID        string            `json:"id"`
	Name      []types.HumanName `json:"name"`
	BirthDate string            `json:"birthDate"`
}

type operationOutcome struct {
	ResourceType string `json:"resourceType"`
	Issue        []struct {
		Severity    string `json:"severity"`
		Code        string `json:"code"`
		Diagnostics string `json:"diagnostics"`
	} `json:"issue"`
}

func (o operationOutcome) diagnostics() string {
	var parts []string
	for _, is := range o.Issue {
		switch {
		case is.Diagnostics != "":
			parts = append(parts, is.Diagnostics)
		case is.Code != "":
			parts = append(parts, is.Severity+": "+is.Code)
		}
	}
	return strings.Join(parts, "; ")
}
