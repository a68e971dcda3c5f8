package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 100
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
// Follows Interface Segregation Principle.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, e.Body)
}

// BaseClient contains common fields and functionality for all API clients.
// Follows DRY principle by extracting shared code.
type BaseClient struct {
	BaseURL    string
	HTTPClient HTTPClient
	MaxPages   int

	authorize func(req *http.Request)
	limiter   *rate.Limiter
	logger    Logger
}

// NewBaseClient creates a base client. authorize sets the platform's
// authentication headers on every request.
func NewBaseClient(config ClientConfig, httpClient HTTPClient, authorize func(req *http.Request)) *BaseClient {
	logger := config.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	limit := rate.Inf
	if config.APIDelay > 0 {
		limit = rate.Every(config.APIDelay)
	}
	return &BaseClient{
		BaseURL:    config.BaseURL,
		HTTPClient: httpClient,
		MaxPages:   config.MaxPages,
		authorize:  authorize,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// GetJSON performs a GET and decodes the JSON body into result.
// The response headers are returned for continuation tokens and links.
func (c *BaseClient) GetJSON(ctx context.Context, url string, result interface{}) (http.Header, error) {
	return c.do(ctx, http.MethodGet, url, nil, result)
}

// PostJSON performs a POST with a JSON body and decodes the JSON answer.
func (c *BaseClient) PostJSON(ctx context.Context, url string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, url, payload, result)
	return err
}

// do performs one paced HTTP request.
// Follows Single Level of Abstraction Principle (SLAP).
func (c *BaseClient) do(ctx context.Context, method, url string, payload []byte, result interface{}) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authorize != nil {
		c.authorize(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return resp.Header, nil
}

// Partial handles a failed sub-request of one entity (its notes, commits,
// jobs...). The entity is kept without that data, so Partial only logs and
// returns nil, unless the run was cancelled.
func (c *BaseClient) Partial(ctx context.Context, err error, what string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	c.logger.Warnf("failed to get %s, continuing without it: %v", what, err)
	return nil
}

// Paginate calls fetch with page numbers starting at 1 until a page returns
// fewer than DefaultPageSize items or MaxPages is reached.
func (c *BaseClient) Paginate(ctx context.Context, fetch func(page int) (int, error)) error {
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := fetch(page)
		if err != nil {
			return err
		}
		if n < DefaultPageSize || (c.MaxPages > 0 && page >= c.MaxPages) {
			return nil
		}
	}
}

// PaginateToken calls fetch with continuation tokens until none is returned
// or MaxPages is reached. The first call receives "".
func (c *BaseClient) PaginateToken(ctx context.Context, fetch func(token string) (string, error)) error {
	token := ""
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := fetch(token)
		if err != nil {
			return err
		}
		if next == "" || (c.MaxPages > 0 && page >= c.MaxPages) {
			return nil
		}
		token = next
	}
}
