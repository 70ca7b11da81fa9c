// Package sleeper provides a client for the public Sleeper fantasy API.
// The API is unauthenticated and serves plain JSON.
package sleeper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.sleeper.app/v1"

// ClientConfig configures a Sleeper API client.
type ClientConfig struct {
	// HTTPClient is the underlying client; a 30s-timeout client is used when nil
	HTTPClient *http.Client
	// BaseURL overrides the API host (tests)
	BaseURL string
}

// Client is a read-only Sleeper API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Sleeper client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{httpClient: httpClient, baseURL: baseURL}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build Sleeper request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Sleeper request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s (status %d)", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Sleeper response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode Sleeper response for %s: %w", path, err)
	}
	return nil
}

// Transactions fetches a league's transactions for a single round/week.
func (c *Client) Transactions(ctx context.Context, leagueID string, round int) ([]map[string]any, error) {
	var transactions []map[string]any
	path := fmt.Sprintf("/league/%s/transactions/%d", leagueID, round)
	if err := c.get(ctx, path, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// League fetches a league's metadata. Used as a reachability check.
func (c *Client) League(ctx context.Context, leagueID string) (map[string]any, error) {
	var league map[string]any
	if err := c.get(ctx, "/league/"+leagueID, &league); err != nil {
		return nil, err
	}
	return league, nil
}
