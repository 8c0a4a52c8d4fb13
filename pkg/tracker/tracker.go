// Package tracker provides the wire types and HTTP client for the Hardware
// Tracker asset service. Tests can point the same client at the in-memory
// simulator from pkg/tracksim instead of a live deployment.
package tracker

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

	"github.com/cenkalti/backoff/v4"
)

var ErrNotFound = errors.New("not found")

// APIKeyHeader carries the key on authenticated requests. The service also
// accepts the key as the APIKeyParam query parameter.
const (
	APIKeyHeader = "X-Tracker-API-Key"
	APIKeyParam  = "key"
)

// Outcome codes used in error documents.
const (
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not-found"
	ErrCodeMalformedRequest = "malformed-request"
	ErrCodeMethodNotAllowed = "method-not-allowed"
	ErrCodeUnavailable      = "unavailable"
)

type API struct {
	Assets   *AssetService
	Projects *ProjectService
}

func NewAPI(httpClient *http.Client, baseURL, apiKey string, opts ...Option) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(client)
	}
	return &API{
		Assets:   &AssetService{client: client},
		Projects: &ProjectService{client: client},
	}
}

type Option func(*Client)

// WithRetryPolicy makes the client retry failed calls. Each call draws a
// fresh policy from the constructor. Only transport errors and 5xx responses
// are retried; every 4xx outcome is final.
func WithRetryPolicy(policy func() backoff.BackOff) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// DefaultRetryPolicy matches the settings used against live deployments.
func DefaultRetryPolicy() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
		backoff.WithMaxElapsedTime(30*time.Second),
	)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      func() backoff.BackOff
}

// Error is the error document returned by the tracker API, annotated with
// request details on the client side.
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Method     string `json:"-"`
	URL        string `json:"-"`
}

func (e Error) Error() string {
	if e.Method == "" && e.URL == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%d): %s %s", e.Code, e.Message, e.StatusCode, e.Method, e.URL)
}

func newError(res *http.Response, body []byte, reqURL string) error {
	e := Error{
		StatusCode: res.StatusCode,
		Method:     res.Request.Method,
		URL:        reqURL,
	}
	if len(body) > 0 && json.Valid(body) {
		_ = json.Unmarshal(body, &e)
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(res.StatusCode)
	}
	return e
}

// Call performs one API request. A 404 maps to ErrNotFound; other error
// responses are returned as Error values.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, reqBody, resPayload any) error {
	if c.retry == nil {
		return c.call(ctx, method, path, query, reqBody, resPayload)
	}
	return backoff.Retry(func() error {
		err := c.call(ctx, method, path, query, reqBody, resPayload)
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(c.retry(), ctx))
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var apiErr Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, reqBody, resPayload any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bd io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		bd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bd)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	} else if res.StatusCode >= 400 {
		return newError(res, body, reqURL)
	}

	if resPayload != nil && len(body) > 0 && json.Valid(body) {
		return json.Unmarshal(body, resPayload)
	}
	return nil
}
