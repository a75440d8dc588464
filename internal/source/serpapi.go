// Package source fetches raw event listings from the SerpAPI Google Events
// engine. All trust-boundary coercion of the provider's loosely typed
// payload happens here; downstream packages see fully typed data.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/citypulse/eventsync/internal/config"
	"github.com/citypulse/eventsync/internal/models"
)

const (
	defaultBaseURL = "https://serpapi.com/search.json"

	// The provider controls page size; Google Events returns 10 per page.
	pageSize = 10

	// Hard ceiling on the pagination offset. Guards against a provider
	// that loops or keeps returning duplicates.
	maxOffset = 200
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	query      string
	language   string
	country    string
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     cfg.SerpAPIKey,
		query:      cfg.SearchQuery,
		language:   cfg.LocaleLanguage,
		country:    cfg.LocaleCountry,
	}
}

// searchResponse is the subset of the provider response the pipeline
// consumes. A populated Error field in an otherwise successful response is a
// logical failure and aborts the fetch.
type searchResponse struct {
	Error  string              `json:"error,omitempty"`
	Events []models.RawListing `json:"events_results"`
}

// FetchListings pages through the search API from offset 0, accumulating
// listings until cap is reached, a page comes back empty, or the offset
// ceiling is hit.
//
// A non-success HTTP status on any page stops pagination early and returns
// whatever accumulated so far; a single bad page never fails the whole run.
// A provider-reported logical error is fatal, as is a missing API key.
func (c *Client) FetchListings(ctx context.Context, cap int) ([]models.RawListing, error) {
	if c.apiKey == "" {
		return nil, models.ErrMissingAPIKey
	}

	var all []models.RawListing
	for start := 0; len(all) < cap && start <= maxOffset; start += pageSize {
		slog.Info("Fetching listings page", "offset", start)

		page, ok, err := c.fetchPage(ctx, start)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Page-level HTTP failure. Keep what we have.
			slog.Warn("Stopping pagination early after page failure", "offset", start, "accumulated", len(all))
			break
		}
		if len(page) == 0 {
			break // no more results
		}

		all = append(all, page...)
	}

	if len(all) > cap {
		all = all[:cap]
	}
	slog.Info("Total listings fetched", "count", len(all))
	return all, nil
}

// fetchPage returns ok=false for a recoverable page-level HTTP failure and a
// non-nil error only for fatal conditions.
func (c *Client) fetchPage(ctx context.Context, start int) ([]models.RawListing, bool, error) {
	params := url.Values{}
	params.Set("engine", "google_events")
	params.Set("q", c.query)
	params.Set("hl", c.language)
	params.Set("gl", c.country)
	params.Set("api_key", c.apiKey)
	params.Set("start", fmt.Sprintf("%d", start))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create search request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("search request failed at offset %d: %w", start, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		slog.Error("Search API returned non-success status", "status", res.StatusCode, "offset", start)
		io.Copy(io.Discard, res.Body)
		return nil, false, nil
	}

	var payload searchResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("malformed search response at offset %d: %w", start, err)
	}
	if payload.Error != "" {
		return nil, false, fmt.Errorf("search API reported error: %s", payload.Error)
	}

	return payload.Events, true, nil
}
