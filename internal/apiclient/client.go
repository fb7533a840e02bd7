// Package apiclient talks to the remote files API that owns the uploads
// namespace. Every method returns either a domain value or an error: expected
// conditions (missing file, quota, malformed body) come back as *Error, while
// failures of the HTTP layer itself are returned untouched.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fruitsalade/uploadsfs/internal/logging"
	"github.com/fruitsalade/uploadsfs/internal/metrics"
)

// DefaultTimeout applies to every non-upload request.
const DefaultTimeout = 10 * time.Second

// Client issues authenticated requests against the files API.
// A Client holds only immutable configuration and is safe for concurrent use.
type Client struct {
	baseURL     string
	siteID      int
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	SiteID      int
	AccessToken string

	// HTTPClient overrides the default client. Per-request timeouts are
	// applied through the request context, not http.Client.Timeout.
	HTTPClient *http.Client

	// RequestsPerSecond caps the outgoing request rate; 0 disables the cap.
	RequestsPerSecond float64
}

// New creates a new client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		siteID:      cfg.SiteID,
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// APIURL joins the base URL and path with exactly one slash.
func (c *Client) APIURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

type requestOptions struct {
	Headers       map[string]string
	Timeout       time.Duration
	Body          []byte
	ContentLength int64
}

// response is a fully read HTTP response; the body is drained before the
// request's timeout context is released.
type response struct {
	StatusCode int
	Body       []byte
}

// callAPI sends one request. Caller headers override the auth headers.
func (c *Client) callAPI(ctx context.Context, operation, path, method string, opts requestOptions) (*response, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	url := c.APIURL(path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-Client-Site-ID", strconv.Itoa(c.siteID))
	req.Header.Set("X-Access-Token", c.accessToken)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.Body != nil {
		req.ContentLength = opts.ContentLength
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(operation, 0, time.Since(start))
		logging.Debug("files api request failed",
			zap.String("operation", operation),
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordAPIRequest(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, err
	}

	logging.Debug("files api request",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("timeout", timeout),
		zap.Duration("duration", time.Since(start)))

	return &response{StatusCode: resp.StatusCode, Body: data}, nil
}

// IsFile reports whether path exists on the files API.
func (c *Client) IsFile(ctx context.Context, path string) (bool, error) {
	resp, err := c.callAPI(ctx, "is_file", path, http.MethodGet, requestOptions{
		Headers: map[string]string{"X-Action": "file_exists"},
	})
	if err != nil {
		return false, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &Error{
			Code:       CodeIsFileFailed,
			Message:    fmt.Sprintf("Failed to check if file `%s` exists (response code: %d)", path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
}

// DeleteFile removes path from the files API.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	resp, err := c.callAPI(ctx, "delete_file", path, http.MethodDelete, requestOptions{})
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Code:       CodeDeleteFileFailed,
			Message:    fmt.Sprintf("Failed to delete file `%s` (response code: %d)", path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// GetFile returns the contents of path. The body may be empty.
func (c *Client) GetFile(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.callAPI(ctx, "get_file", path, http.MethodGet, requestOptions{})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:       CodeGetFileFailed,
			Message:    fmt.Sprintf("Failed to get file `%s` (response code: %d)", path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return resp.Body, nil
}
