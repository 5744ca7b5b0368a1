// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fhir-names/internal/httputil"
	"github.com/pdiddy/fhir-names/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const sampleBundleJSON = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "link": [
    {"relation": "self", "url": "http://fhir.test/baseR4/Patient?family=SMITH"},
    {"relation": "next", "url": "%s"}
  ],
  "entry": [
    {
      "fullUrl": "http://fhir.test/baseR4/Patient/1",
      "resource": {
        "resourceType": "Patient",
        "id": "1",
        "name": [
          {"use": "official", "family": "Smith", "given": ["Ann", "Marie"]},
          {"use": "maiden", "family": "Jones", "given": ["Ann"]}
        ],
        "birthDate": "1973-09-19"
      }
    },
    {
      "fullUrl": "http://fhir.test/baseR4/Patient/2",
      "resource": {"resourceType": "Patient", "id": "2", "name": [{"family": "Smithson"}], "birthDate": "1980"}
    },
    {
      "resource": {"resourceType": "OperationOutcome", "issue": [{"severity": "information", "code": "informational"}]}
    },
    {
      "resource": {"resourceType": "Patient", "id": "3"}
    }
  ]
}`

func bundleWithNext(next string) string {
	return fmt.Sprintf(sampleBundleJSON, next)
}

func emptyBundle() string {
	return `{"resourceType":"Bundle","type":"searchset","entry":[]}`
}

func testClient(t *testing.T, ts *httptest.Server, cfg types.ServerConfig) *Client {
	t.Helper()
	cfg.BaseURL = ts.URL + "/baseR4"
	c, err := NewClient(cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	return c.WithHTTPClient(ts.Client())
}

// --- NewClient ---

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(types.ServerConfig{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, DefaultUserAgent, c.cfg.UserAgent)
}

func TestNewClientInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.ServerConfig
	}{
		{"negative timeout", types.ServerConfig{Timeout: -time.Second}},
		{"bad scheme", types.ServerConfig{BaseURL: "ftp://fhir.test"}},
		{"unparseable", types.ServerConfig{BaseURL: "http://[::1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

// --- SearchURL ---

func TestSearchURL(t *testing.T) {
	c, err := NewClient(types.ServerConfig{BaseURL: "http://fhir.test/baseR4/"}, zerolog.Nop())
	require.NoError(t, err)

	got, err := c.SearchURL(types.SearchRequest{
		ResourceType: "Patient",
		FilterField:  "family",
		FilterValue:  "O'Brien Smith",
		PageSize:     100,
		SortField:    "given",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://fhir.test/baseR4/Patient?_count=100&_sort=given&family=O%27Brien+Smith", got)

	_, err = c.SearchURL(types.SearchRequest{})
	assert.Error(t, err)
}

// --- Search ---

func TestSearchRequestAndDecode(t *testing.T) {
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/fhir+json")
		fmt.Fprint(w, bundleWithNext("http://fhir.test/baseR4?_getpages=abc&_getpagesoffset=100"))
	}))
	defer ts.Close()

	c := testClient(t, ts, types.ServerConfig{UserAgent: "test/0.1", BearerToken: "s3cret"})
	page, err := c.Search(context.Background(), types.SearchRequest{
		ResourceType: "Patient", FilterField: "family", FilterValue: "SMITH", PageSize: 100, SortField: "given",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/baseR4/Patient", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "SMITH", q.Get("family"))
	assert.Equal(t, "100", q.Get("_count"))
	assert.Equal(t, "given", q.Get("_sort"))
	assert.Equal(t, "application/fhir+json", got.Header.Get("Accept"))
	assert.Equal(t, "test/0.1", got.Header.Get("User-Agent"))
	assert.Equal(t, "Bearer s3cret", got.Header.Get("Authorization"))
	assert.Empty(t, got.Header.Get("Cache-Control"))

	assert.True(t, page.HasNext())
	assert.False(t, page.NoCache)
	require.Len(t, page.Patients, 3, "OperationOutcome entry is skipped")

	p0 := page.Patients[0]
	assert.Equal(t, "1", p0.ID)
	require.Len(t, p0.Names, 2)
	assert.Equal(t, "Smith", p0.Names[0].Family)
	assert.Equal(t, []string{"Ann", "Marie"}, p0.Names[0].Given)
	assert.Equal(t, "maiden", p0.Names[1].Use)
	require.NotNil(t, p0.BirthDate)
	assert.Equal(t, "1973-09-19", p0.BirthDate.String())

	p1 := page.Patients[1]
	require.NotNil(t, p1.BirthDate)
	assert.Equal(t, types.PrecisionYear, p1.BirthDate.Precision)

	p2 := page.Patients[2]
	assert.Empty(t, p2.Names)
	assert.Nil(t, p2.BirthDate)
}

func TestSearchNoCacheHeader(t *testing.T) {
	var cacheControl []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl = append(cacheControl, r.Header.Get("Cache-Control"))
		if r.URL.Query().Get("_getpages") != "" {
			fmt.Fprint(w, emptyBundle())
			return
		}
		fmt.Fprint(w, bundleWithNext("/baseR4?_getpages=abc"))
	}))
	defer ts.Close()

	c := testClient(t, ts, types.ServerConfig{})
	page, err := c.Search(context.Background(), types.SearchRequest{ResourceType: "Patient", NoCache: true})
	require.NoError(t, err)
	assert.True(t, page.NoCache)

	_, err = c.NextPage(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, []string{"no-cache", "no-cache"}, cacheControl)
}

func TestNextPageFollowsLink(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.RequestURI())
		fmt.Fprint(w, emptyBundle())
	}))
	defer ts.Close()

	c := testClient(t, ts, types.ServerConfig{})
	next := ts.URL + "/baseR4?_getpages=abc&_getpagesoffset=100&_count=100"
	page, err := c.NextPage(context.Background(), &types.Page{Next: next})
	require.NoError(t, err)
	assert.False(t, page.HasNext())
	assert.Empty(t, page.Patients)
	assert.Equal(t, []string{"/baseR4?_getpages=abc&_getpagesoffset=100&_count=100"}, paths)
}

func TestNextPageWithoutLink(t *testing.T) {
	c, err := NewClient(types.ServerConfig{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = c.NextPage(context.Background(), &types.Page{})
	assert.ErrorIs(t, err, ErrNoNextPage)
}

// --- errors ---

func TestSearchStatusError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantDiag string
	}{
		{
			name:     "operation outcome",
			status:   http.StatusBadRequest,
			body:     `{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"processing","diagnostics":"Unknown search parameter \"famly\""}]}`,
			wantDiag: `Unknown search parameter "famly"`,
		},
		{
			name:     "issue without diagnostics",
			status:   http.StatusInternalServerError,
			body:     `{"resourceType":"OperationOutcome","issue":[{"severity":"fatal","code":"exception"}]}`,
			wantDiag: "fatal: exception",
		},
		{
			name:   "plain text",
			status: http.StatusBadGateway,
			body:   "upstream down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := testClient(t, ts, types.ServerConfig{})
			_, err := c.Search(context.Background(), types.SearchRequest{ResourceType: "Patient"})

			var se *StatusError
			require.True(t, errors.As(err, &se), "error %v should be a *StatusError", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantDiag, se.Diagnostics)
			assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", tt.status))
		})
	}
}

func TestSearchRetriesOn429(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, emptyBundle())
	}))
	defer ts.Close()

	c := testClient(t, ts, types.ServerConfig{MaxRetries: 2})
	_, err := c.Search(context.Background(), types.SearchRequest{ResourceType: "Patient"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSearchMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", "<html>", "parsing FHIR response"},
		{"not a bundle", `{"resourceType":"Patient","id":"1"}`, "expected a Bundle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()

			c := testClient(t, ts, types.ServerConfig{})
			_, err := c.Search(context.Background(), types.SearchRequest{ResourceType: "Patient"})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should contain %q", err, tt.want)
		})
	}
}

func TestSearchInvalidBirthDateKeepsRecord(t *testing.T) {
	body := `{"resourceType":"Bundle","entry":[
	  {"resource":{"resourceType":"Patient","id":"good","name":[{"family":"Smith"}],"birthDate":"1970-02-28"}},
	  {"resource":{"resourceType":"Patient","id":"bad","name":[{"family":"Smith"}],"birthDate":"1970-02-30"}},
	  {"resource":{"resourceType":"Patient","id":"garbled","birthDate":"19-09-1973"}}
	]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	var logs strings.Builder
	cfg := types.ServerConfig{BaseURL: ts.URL + "/baseR4"}
	c, err := NewClient(cfg, zerolog.New(&logs))
	require.NoError(t, err)
	c.WithHTTPClient(ts.Client())

	page, err := c.Search(context.Background(), types.SearchRequest{ResourceType: "Patient"})
	require.NoError(t, err)
	require.Len(t, page.Patients, 3)

	require.NotNil(t, page.Patients[0].BirthDate)
	assert.Equal(t, "1970-02-28", page.Patients[0].BirthDate.String())

	assert.Equal(t, "bad", page.Patients[1].ID)
	assert.Nil(t, page.Patients[1].BirthDate)
	require.Len(t, page.Patients[1].Names, 1)

	assert.Equal(t, "garbled", page.Patients[2].ID)
	assert.Nil(t, page.Patients[2].BirthDate)

	assert.Contains(t, logs.String(), `"patient":"bad"`)
	assert.Contains(t, logs.String(), "ignoring invalid birthDate")
}
