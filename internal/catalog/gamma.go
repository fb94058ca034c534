// Package catalog syncs market snapshots from the Gamma REST API into the
// local catalog. The pipeline treats synced rows as read-only except for
// the workflow status column it owns.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GammaClient is a thin read-only client for the Gamma markets endpoint.
type GammaClient struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gamma API error (%d): %s", e.Status, e.Body)
}

func NewGammaClient(httpClient *http.Client, host string) *GammaClient {
	if host == "" {
		host = "https://gamma-api.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GammaClient{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *GammaClient) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// GammaMarket is the subset of the Gamma market payload the pipeline keeps.
// Outcomes and OutcomePrices arrive as JSON-encoded strings.
type GammaMarket struct {
	ID            string  `json:"id"`
	Slug          string  `json:"slug"`
	Question      string  `json:"question"`
	Outcomes      string  `json:"outcomes"`
	OutcomePrices string  `json:"outcomePrices"`
	VolumeNum     float64 `json:"volumeNum"`
	LiquidityNum  float64 `json:"liquidityNum"`
	EndDate       string  `json:"endDate"`
	Active        bool    `json:"active"`
	Closed        bool    `json:"closed"`
}

type GetMarketsParams struct {
	Limit  int
	Offset int
	Closed *bool
}

func (c *GammaClient) GetMarkets(ctx context.Context, params *GetMarketsParams) ([]GammaMarket, []json.RawMessage, error) {
	query := url.Values{}
	if params != nil {
		if params.Limit > 0 {
			query.Set("limit", fmt.Sprintf("%d", params.Limit))
		}
		if params.Offset > 0 {
			query.Set("offset", fmt.Sprintf("%d", params.Offset))
		}
		if params.Closed != nil {
			query.Set("closed", fmt.Sprintf("%t", *params.Closed))
		}
	}
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, nil, err
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, nil, fmt.Errorf("failed to parse markets payload: %w", err)
	}
	out := make([]GammaMarket, 0, len(raws))
	for _, raw := range raws {
		var m GammaMarket
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, raws, nil
}

// DecodeStringArray handles Gamma's double-encoded array fields, e.g.
// "[\"Yes\", \"No\"]".
func DecodeStringArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return out
		}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "\"")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
