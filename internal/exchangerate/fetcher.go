// Package exchangerate provides the USD to THB rate used to price OCR usage.
// Rates are fetched from a public API, cached for an hour and fall back to a
// fixed default whenever the API cannot be reached.
package exchangerate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultURL is the open exchange rate endpoint with USD as base currency.
const DefaultURL = "https://open.er-api.com/v6/latest/USD"

const maxResponseBytes = 1 << 20

// ErrInvalidResponse is returned when the API answers without a THB rate.
var ErrInvalidResponse = errors.New("invalid exchange rate data")

// Rate is a USD to THB conversion rate with its provenance.
type Rate struct {
	Rate       float64 `json:"rate"`
	LastUpdate string  `json:"lastUpdate"`
	NextUpdate string  `json:"nextUpdate"`
	Source     string  `json:"source"`
}

// Fetcher retrieves the latest rate from an upstream provider.
type Fetcher interface {
	Fetch(ctx context.Context) (Rate, error)
}

// HTTPFetcher fetches rates from an open.er-api.com compatible endpoint.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher for url with the given request timeout.
func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context) (Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return Rate{}, fmt.Errorf("build exchange rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rate{}, fmt.Errorf("failed to fetch exchange rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("failed to fetch exchange rate: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Rate{}, fmt.Errorf("read exchange rate response: %w", err)
	}
	return parseResponse(body)
}

func parseResponse(body []byte) (Rate, error) {
	if !gjson.ValidBytes(body) {
		return Rate{}, ErrInvalidResponse
	}
	res := gjson.ParseBytes(body)
	if res.Get("result").String() != "success" {
		return Rate{}, ErrInvalidResponse
	}
	thb := res.Get("rates.THB")
	if !thb.Exists() || thb.Float() <= 0 {
		return Rate{}, ErrInvalidResponse
	}
	return Rate{
		Rate:       thb.Float(),
		LastUpdate: res.Get("time_last_update_utc").String(),
		NextUpdate: res.Get("time_next_update_utc").String(),
		Source:     res.Get("provider").String(),
	}, nil
}
