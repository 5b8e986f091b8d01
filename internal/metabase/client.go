// Package metabase backs up Metabase dashboards, collections and cards
// through its REST API.
package metabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrAuth is returned when Metabase rejects the credentials or the session
// endpoint cannot be reached. Nothing else can proceed without a session.
var ErrAuth = errors.New("metabase authentication failed")

const sessionHeader = "X-Metabase-Session"

// maxResponse caps a single API response body.
const maxResponse = 64 << 20

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 30s timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = httpClient
	}
}

// Client talks to one Metabase instance. Call Login before anything else.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	session    string
}

// NewClient returns a Client for the instance at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login opens a session. Any failure wraps ErrAuth.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("%w: decode session: %v", ErrAuth, err)
	}
	if out.ID == "" {
		return fmt.Errorf("%w: response has no session id", ErrAuth)
	}
	c.session = out.ID
	return nil
}

// ListDashboards returns the raw dashboard list.
func (c *Client) ListDashboards(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/dashboard")
}

// GetDashboard returns one dashboard with its cards.
func (c *Client) GetDashboard(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/api/dashboard/"+url.PathEscape(id))
}

// ListCollections returns the raw collection list.
func (c *Client) ListCollections(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/collection")
}

// GetCollectionItems lists what a collection contains. The root
// collection's id is "root".
func (c *Client) GetCollectionItems(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/api/collection/"+url.PathEscape(id)+"/items")
}

// ListCards returns every saved question.
func (c *Client) ListCards(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/card")
}

// GetCard returns one saved question.
func (c *Client) GetCard(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/api/card/"+url.PathEscape(id))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(sessionHeader, c.session)
	req.Header.Set("Accept", "application/json")

	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("GET %s: response is not JSON", path)
	}
	return data, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
