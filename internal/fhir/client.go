// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fhir is a minimal FHIR R4 REST client for paged resource
// searches returning JSON Bundles.
package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/fhir-names/internal/httputil"
	"github.com/pdiddy/fhir-names/pkg/types"
)

const (
	// DefaultBaseURL is the public HAPI FHIR R4 test server.
	DefaultBaseURL = "http://hapi.fhir.org/baseR4"

	// DefaultTimeout matches the socket timeout the public server needs
	// for large unsorted searches.
	DefaultTimeout = 200 * time.Second

	DefaultUserAgent = "fhir-names/0.1"

	mediaTypeFHIRJSON = "application/fhir+json"
)

// ErrNoNextPage is returned by NextPage for a page without a next link.
var ErrNoNextPage = errors.New("page has no next link")

// Client issues FHIR searches over HTTP.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	cfg        types.ServerConfig
	logger     zerolog.Logger
}

// NewClient validates cfg and returns a Client. Zero values in cfg take
// the package defaults.
func NewClient(cfg types.ServerConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("invalid timeout %v", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", cfg.BaseURL)
	}

	return &Client{
		base:       base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.With().Str("client", "fhir").Logger(),
	}, nil
}

// WithHTTPClient replaces the underlying http.Client (tests use the
// httptest server's client). It returns c for chaining.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the server base the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SearchURL builds the search URL for req:
// {base}/{type}?{field}={value}&_count={n}&_sort={field}.
func (c *Client) SearchURL(req types.SearchRequest) (string, error) {
	if req.ResourceType == "" {
		return "", errors.New("search request has no resource type")
	}
	params := url.Values{}
	if req.FilterField != "" {
		params.Set(req.FilterField, req.FilterValue)
	}
	if req.PageSize > 0 {
		params.Set("_count", strconv.Itoa(req.PageSize))
	}
	if req.SortField != "" {
		params.Set("_sort", req.SortField)
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + url.PathEscape(req.ResourceType)
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// Search runs the search and returns its first page.
func (c *Client) Search(ctx context.Context, req types.SearchRequest) (*types.Page, error) {
	u, err := c.SearchURL(req)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, u, req.NoCache)
}

// NextPage follows page's next link, reusing the cache directive of the
// search that produced it.
func (c *Client) NextPage(ctx context.Context, page *types.Page) (*types.Page, error) {
	if !page.HasNext() {
		return nil, ErrNoNextPage
	}
	next, err := c.base.Parse(page.Next)
	if err != nil {
		return nil, fmt.Errorf("parsing next link %q: %w", page.Next, err)
	}
	return c.get(ctx, next.String(), page.NoCache)
}

func (c *Client) get(ctx context.Context, u string, noCache bool) (*types.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", mediaTypeFHIRJSON)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if c.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	if noCache {
		req.Header.Set("Cache-Control", "no-cache")
	}

	c.logger.Debug().Str("url", u).Bool("no_cache", noCache).Msg("GET")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.cfg.MaxRetries, c.logger)
	if err != nil {
		return nil, fmt.Errorf("FHIR request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	page, err := decodeBundle(resp.Body, c.logger)
	if err != nil {
		return nil, fmt.Errorf("parsing FHIR response: %w", err)
	}
	page.NoCache = noCache
	return page, nil
}
