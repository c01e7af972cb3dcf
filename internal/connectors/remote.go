package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"productimport/internal/catalog"
	"productimport/internal/logger"
	"productimport/internal/selection"
)

const DefaultFetchTimeout = 10 * time.Second

type APICredentials struct {
	APIURL string `json:"apiUrl"`
	APIKey string `json:"apiKey"`
}

// Remote pulls product items from a third-party JSON API.
type Remote struct {
	timeout time.Duration
	logger  *logger.Logger
	client  *http.Client
}

func NewRemote(timeout time.Duration, log *logger.Logger) *Remote {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Remote{
		timeout: timeout,
		logger:  log,
		client:  &http.Client{},
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (r *Remote) WithHTTPClient(c *http.Client) *Remote {
	r.client = c
	return r
}

// FromAPI fetches and maps the items behind creds. Fetch failures are
// logged and yield no products.
func (r *Remote) FromAPI(ctx context.Context, creds APICredentials, tokens []selection.Token, keyMappings map[string]string) []catalog.Product {
	items, err := r.FetchItems(ctx, creds)
	if err != nil {
		r.logger.Error("Failed to fetch products from %s: %v", creds.APIURL, err)
		return nil
	}
	r.logger.Info("Fetched %d items from %s", len(items), creds.APIURL)
	return FromItems(items, tokens, keyMappings)
}

// FetchItems issues an authenticated GET and extracts the item list: the
// body itself when it is an array, otherwise the first property holding a
// non-empty array.
func (r *Remote) FetchItems(ctx context.Context, creds APICredentials) ([]map[string]interface{}, error) {
	if creds.APIURL == "" {
		return nil, fmt.Errorf("api url is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, creds.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient(ctx, creds.APIKey).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	return extractItems(body)
}

func (r *Remote) httpClient(ctx context.Context, apiKey string) *http.Client {
	if apiKey == "" {
		return r.client
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiKey,
		TokenType:   "Bearer",
	}))
}

func extractItems(body []byte) ([]map[string]interface{}, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if body[0] == '[' {
		items, _, err := decodeArray(body)
		return items, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("unexpected response shape")
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		items, n, err := decodeArray(raw)
		if err != nil {
			return nil, err
		}
		// The first non-empty array wins even when none of its elements
		// are objects.
		if n > 0 {
			return items, nil
		}
	}
	return nil, nil
}

// decodeArray keeps the object elements of a JSON array and reports the
// array's full length.
func decodeArray(raw []byte) ([]map[string]interface{}, int, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var elems []interface{}
	if err := dec.Decode(&elems); err != nil {
		return nil, 0, fmt.Errorf("failed to decode items: %w", err)
	}
	items := make([]map[string]interface{}, 0, len(elems))
	for _, e := range elems {
		if m, ok := e.(map[string]interface{}); ok {
			items = append(items, m)
		}
	}
	return items, len(elems), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
