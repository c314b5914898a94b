package loadcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// client is a cookie-less HTTP client; every visit starts without an
// identity so the server mints a fresh one.
type client struct {
	http       *http.Client
	baseURL    string
	cookieName string
}

func newClient(cfg *Config) *client {
	return &client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cookieName: cfg.cookieName(),
	}
}

type countResponse struct {
	Count int64 `json:"count"`
}

func (c *client) do(ctx context.Context, method, url string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// count reads the global counter.
func (c *client) count(ctx context.Context) (int64, error) {
	resp, body, err := c.do(ctx, http.MethodGet, c.baseURL+"/count")
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("count: status %d: %s", resp.StatusCode, body)
	}
	var out countResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("count: decode: %w", err)
	}
	return out.Count, nil
}

// visit clicks once as a new visitor and returns the minted id.
func (c *client) visit(ctx context.Context) Visit {
	resp, body, err := c.do(ctx, http.MethodPost, c.baseURL+"/increment")
	if err != nil {
		return Visit{Err: err}
	}
	var id string
	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName {
			id = ck.Value
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Visit{ID: id, Err: fmt.Errorf("increment: status %d: %s", resp.StatusCode, body)}
	}
	if id == "" {
		return Visit{Err: fmt.Errorf("increment: no %q cookie in response", c.cookieName)}
	}
	var out countResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Visit{ID: id, Err: fmt.Errorf("increment: decode: %w", err)}
	}
	return Visit{ID: id, Count: out.Count}
}

// healthy reports whether url answers 200.
func (c *client) healthy(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, _, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}
