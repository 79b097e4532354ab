package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AngelCh415/quasr/internal/utils"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx: %d body=%s", e.Code, e.Body)
}

type Client struct {
	base    string
	httpc   HTTPClient
	retries int
	backoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(c HTTPClient) Option { return func(cl *Client) { cl.httpc = c } }

// WithRetries retries transport errors and 5xx responses n more times.
func WithRetries(n int, base time.Duration) Option {
	return func(cl *Client) { cl.retries, cl.backoff = n, base }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query posts a DSL document to the server's /query endpoint and returns the CSV body.
func (c *Client) Query(ctx context.Context, body []byte) ([]byte, error) {
	return c.post(ctx, "/query", body)
}

// SQL asks the server to compile a DSL document without executing it.
func (c *Client) SQL(ctx context.Context, body []byte) ([]byte, error) {
	return c.post(ctx, "/sql", body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if c.base == "" {
		return nil, errors.New("empty url")
	}
	var out []byte
	err := utils.NewBackoff(c.backoff, c.retries).Do(ctx, func(int) error {
		b, err := c.once(ctx, path, body)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Code < 500 {
				return utils.Permanent(err)
			}
			return err
		}
		out = b
		return nil
	})
	return out, err
}

func (c *Client) once(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return io.ReadAll(resp.Body)
}
