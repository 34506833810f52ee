package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for Config.
const (
	DefaultBaseURL = "https://test.kode-t.ru"
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes bounds the response read; the collection is fetched whole.
	maxBodyBytes = 32 << 20
)

// Payload is a raw response body.
type Payload []byte

// Fetcher performs the network call for one sync cycle.
type Fetcher interface {
	FetchAll(ctx context.Context) (Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (Payload, error)

// FetchAll calls f.
func (f FetcherFunc) FetchAll(ctx context.Context) (Payload, error) {
	return f(ctx)
}

// Config controls the HTTP client.
type Config struct {
	BaseURL     string
	RecipesPath string // default DefaultRecipesPath
	Timeout     time.Duration
	UserAgent   string
}

// Client performs requests against the recipe service.
type Client struct {
	cfg Config
	hc  *http.Client
}

// Compile-time interface check.
var _ Fetcher = (*Client)(nil)

// NewClient builds a client with defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "larder"
	}
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchAll issues GetAllRecipes and returns the raw body.
func (c *Client) FetchAll(ctx context.Context) (Payload, error) {
	return c.Do(ctx, GetAllRecipes{Resource: c.cfg.RecipesPath})
}

// Do performs req and returns the body of a 2xx response. Every failure,
// including non-2xx statuses, is a *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (Payload, error) {
	url := c.cfg.BaseURL + req.Path()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method(), url, nil)
	if err != nil {
		return nil, &TransportError{Op: req.Path(), Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: req.Path(), Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	slog.Debug("remote response",
		"method", req.Method(),
		"url", url,
		"status", resp.StatusCode,
		"latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         req.Path(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Op: req.Path(), Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &TransportError{Op: req.Path(), Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	return Payload(body), nil
}
