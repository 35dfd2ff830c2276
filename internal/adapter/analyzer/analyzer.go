// Package analyzer drives the emotion analyzer's model lifecycle over its
// admin API. The resource manager decides when to load and unload; this
// client only carries out the calls.
package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client implements the resource acquirer against the analyzer's admin API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Model loading can take a while on cold starts.
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Acquire asks the analyzer to load its model into memory.
func (c *Client) Acquire(ctx context.Context) error {
	return c.post(ctx, "/model/load")
}

// Release asks the analyzer to drop its model.
func (c *Client) Release(ctx context.Context) error {
	return c.post(ctx, "/model/unload")
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build analyzer request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("analyzer request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer %s returned status %d", path, resp.StatusCode)
	}
	return nil
}
