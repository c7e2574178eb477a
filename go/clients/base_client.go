package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrUpstream marks failures to talk to an external API: network errors,
// non-2xx responses and unreadable bodies
var ErrUpstream = errors.New("upstream request failed")

// RequestObserver is told about every request once it finishes
type RequestObserver interface {
	ObserveRequest(endpoint string, status int, duration time.Duration, err error)
}

type BaseClient struct {
	baseURL  string
	client   *http.Client
	headers  map[string]string
	observer RequestObserver
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

func (c *BaseClient) SetObserver(observer RequestObserver) {
	c.observer = observer
}

// MakeRequest performs one request; there are no retries
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) ([]byte, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		sep := "?"
		if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	status := 0
	responseBody, err := c.do(req, &status)
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, time.Since(start), err)
	}
	return responseBody, err
}

func (c *BaseClient) do(req *http.Request, status *int) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUpstream, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	*status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: API returned status code: %d, response: %s", ErrUpstream, resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUpstream, err)
	}

	return responseBody, nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, query, nil)
}
