// Package fred implements the FRED/ALFRED source connector: series
// observations over HTTP, with full-vintage fetches for revision-tracked
// series.
package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"macrokit-datalake/internal/domain"
)

// Error taxonomy for the source connector. Auth failures are fatal to a
// run; rate limits and upstream outages are retried with bounded backoff
// before surfacing as a table-level failure.
var (
	ErrAuth                = errors.New("authentication failed")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.stlouisfed.org/fred"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxElapsed = 2 * time.Minute
	DefaultPageLimit  = 100000

	// sourceName tags observations delivered by this connector.
	sourceName = "FRED"

	// vintageOpenEnd is the sentinel FRED uses for the currently-open
	// realtime window. Mapped to a nil end time.
	vintageOpenEnd = "9999-12-31"

	// vintageHistoryStart requests every release ever published.
	vintageHistoryStart = "1776-07-04"
)

// Client is a FRED HTTP API client.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxElapsed time.Duration
	pageLimit  int
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxElapsed bounds the total retry budget per request.
func WithMaxElapsed(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxElapsed = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a FRED client. The API key is required.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fred client: %w: api key is required", ErrAuth)
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxElapsed: DefaultMaxElapsed,
		pageLimit:  DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// observationsResponse is the raw series/observations payload.
type observationsResponse struct {
	Count        int              `json:"count"`
	Offset       int              `json:"offset"`
	Limit        int              `json:"limit"`
	Observations []rawObservation `json:"observations"`
}

type rawObservation struct {
	RealtimeStart string `json:"realtime_start"`
	RealtimeEnd   string `json:"realtime_end"`
	Date          string `json:"date"`
	Value         string `json:"value"`
}

// FetchObservations retrieves the current values of a series within
// [start, end]. Missing values ('.') are surfaced as rows flagged
// Missing for the staging layer to drop and count.
func (c *Client) FetchObservations(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("observation_start", start.Format("2006-01-02"))
	params.Set("observation_end", end.Format("2006-01-02"))

	rows, err := c.fetchAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch observations %s: %w", seriesID, err)
	}
	return convertObservations(seriesID, rows, false)
}

// FetchVintages retrieves the full revision history of a series within
// [start, end]: every release ever published, each carrying its
// realtime window. The open window's end is nil.
func (c *Client) FetchVintages(ctx context.Context, seriesID string, start, end time.Time) ([]*domain.RawObservation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("observation_start", start.Format("2006-01-02"))
	params.Set("observation_end", end.Format("2006-01-02"))
	params.Set("realtime_start", vintageHistoryStart)
	params.Set("realtime_end", vintageOpenEnd)

	rows, err := c.fetchAll(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetch vintages %s: %w", seriesID, err)
	}
	return convertObservations(seriesID, rows, true)
}

// fetchAll pages through series/observations until count is exhausted.
func (c *Client) fetchAll(ctx context.Context, params url.Values) ([]rawObservation, error) {
	var all []rawObservation
	offset := 0
	for {
		page := url.Values{}
		for k, v := range params {
			page[k] = v
		}
		page.Set("api_key", c.apiKey)
		page.Set("file_type", "json")
		page.Set("limit", fmt.Sprintf("%d", c.pageLimit))
		page.Set("offset", fmt.Sprintf("%d", offset))

		resp, err := c.get(ctx, "/series/observations", page)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Observations...)
		offset += len(resp.Observations)
		if offset >= resp.Count || len(resp.Observations) == 0 {
			return all, nil
		}
	}
}

// get performs one API request, retrying retryable failures with
// exponential backoff bounded by maxElapsed.
func (c *Client) get(ctx context.Context, path string, params url.Values) (*observationsResponse, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed

	var result *observationsResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", ErrUpstreamUnavailable, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w (429)", ErrRateLimited)
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
			// FRED reports a bad api_key as 400.
			return backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, string(body)))
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
		}

		var parsed observationsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal response: %w", err))
		}
		result = &parsed
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func convertObservations(seriesID string, rows []rawObservation, vintaged bool) ([]*domain.RawObservation, error) {
	out := make([]*domain.RawObservation, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, fmt.Errorf("parse observation date %q: %w", row.Date, err)
		}

		obs := &domain.RawObservation{
			SeriesID:        seriesID,
			ObservationDate: date,
			Source:          sourceName,
		}

		if row.Value == "." || row.Value == "" {
			obs.Missing = true
		} else {
			v, err := strconv.ParseFloat(row.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("parse value %q for %s: %w", row.Value, seriesID, err)
			}
			obs.Value = v
		}

		if vintaged {
			rs, err := time.Parse("2006-01-02", row.RealtimeStart)
			if err != nil {
				return nil, fmt.Errorf("parse realtime_start %q: %w", row.RealtimeStart, err)
			}
			obs.RealtimeStart = &rs
			if row.RealtimeEnd != "" && row.RealtimeEnd != vintageOpenEnd {
				re, err := time.Parse("2006-01-02", row.RealtimeEnd)
				if err != nil {
					return nil, fmt.Errorf("parse realtime_end %q: %w", row.RealtimeEnd, err)
				}
				obs.RealtimeEnd = &re
			}
		}

		out = append(out, obs)
	}
	return out, nil
}
