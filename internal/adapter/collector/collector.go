// Package collector talks to the upstream post collector service. The
// coordinator asks it to fetch posts for one country; collection mechanics
// (sources, deduplication, storage) live on the collector's side.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkrasnow/worldmood/internal/domain"
)

// Client implements the fetch executor against the collector's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type collectRequest struct {
	Country string `json:"country"`
}

type collectResponse struct {
	PostsStored int `json:"posts_stored"`
}

// Fetch asks the collector to pull posts for one country. Any transport or
// protocol failure becomes an errored outcome; the scheduler turns those
// into backoff, so no error value is surfaced here.
func (c *Client) Fetch(ctx context.Context, country string) domain.FetchOutcome {
	erred := domain.FetchOutcome{Country: country, Erred: true}

	body, err := json.Marshal(collectRequest{Country: country})
	if err != nil {
		return erred
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/collect", bytes.NewReader(body))
	if err != nil {
		return erred
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("collector request failed", "country", country, "error", err)
		return erred
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("collector returned non-OK status", "country", country, "status", resp.StatusCode)
		return erred
	}

	var parsed collectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		slog.Warn("collector response malformed", "country", country, "error", err)
		return erred
	}
	return domain.FetchOutcome{Country: country, PostsStored: parsed.PostsStored}
}
