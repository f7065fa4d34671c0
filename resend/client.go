package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production Resend API endpoint.
	DefaultBaseURL = "https://api.resend.com"

	defaultUserAgent  = "resend-mcp-go"
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	maxBackoff        = 10 * time.Second
	maxResponseBytes  = 8 << 20

	idempotencyKeyHeader = "Idempotency-Key"
)

// ErrMissingID is returned when an operation that addresses a single
// resource is called with an empty identifier.
var ErrMissingID = errors.New("resend: missing resource identifier")

// Client issues authenticated calls to the Resend API on behalf of a single
// API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger

	Emails            *EmailsService
	Contacts          *ContactsService
	Broadcasts        *BroadcastsService
	Domains           *DomainsService
	Segments          *SegmentsService
	Topics            *TopicsService
	ContactProperties *ContactPropertiesService
	APIKeys           *APIKeysService
	Webhooks          *WebhooksService
}

type service struct {
	client *Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, such as a test
// server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit sets the per-client request rate. Resend allows two requests
// per second per team by default.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRetries sets how many times a retryable failure is retried and the
// initial backoff between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a client bound to apiKey. It performs no network I/O.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		userAgent:  defaultUserAgent,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Emails = (*EmailsService)(&service{client: c})
	c.Contacts = (*ContactsService)(&service{client: c})
	c.Broadcasts = (*BroadcastsService)(&service{client: c})
	c.Domains = (*DomainsService)(&service{client: c})
	c.Segments = (*SegmentsService)(&service{client: c})
	c.Topics = (*TopicsService)(&service{client: c})
	c.ContactProperties = (*ContactPropertiesService)(&service{client: c})
	c.APIKeys = (*APIKeysService)(&service{client: c})
	c.Webhooks = (*WebhooksService)(&service{client: c})

	return c
}

// Error is a failure reported by the Resend API.
type Error struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("resend: %s (%d): %s", e.Name, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("resend: status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type requestOptions struct {
	idempotencyKey string
	query          url.Values
}

type requestOption func(*requestOptions)

func withIdempotencyKey(key string) requestOption {
	return func(o *requestOptions) {
		if key == "" {
			key = uuid.NewString()
		}
		o.idempotencyKey = key
	}
}

func withQuery(q url.Values) requestOption {
	return func(o *requestOptions) { o.query = q }
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...requestOption) error {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("resend: encode %s %s: %w", method, path, err)
		}
		payload = b
	}

	target := c.baseURL + path
	if len(ro.query) > 0 {
		target += "?" + ro.query.Encode()
	}

	retryServerErrors := method == http.MethodGet || method == http.MethodDelete || ro.idempotencyKey != ""

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("resend: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("resend: build %s %s: %w", method, path, err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if ro.idempotencyKey != "" {
			req.Header.Set(idempotencyKeyHeader, ro.idempotencyKey)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if retryServerErrors && attempt < c.maxRetries {
				c.log.WarnContext(ctx, "resend.request.retry", slog.String("method", method), slog.String("path", path), slog.Int("attempt", attempt+1), slog.String("err", err.Error()))
				if err := sleep(ctx, c.backoffFor(attempt, nil)); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("resend: %s %s: %w", method, path, err)
		}

		data, readErr := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
		_ = res.Body.Close()

		if res.StatusCode >= 400 {
			apiErr := decodeError(res.StatusCode, data)
			retry := res.StatusCode == http.StatusTooManyRequests || (res.StatusCode >= 500 && retryServerErrors)
			if retry && attempt < c.maxRetries {
				c.log.WarnContext(ctx, "resend.request.retry", slog.String("method", method), slog.String("path", path), slog.Int("attempt", attempt+1), slog.Int("status", res.StatusCode))
				if err := sleep(ctx, c.backoffFor(attempt, res)); err != nil {
					return err
				}
				continue
			}
			return apiErr
		}

		if readErr != nil {
			return fmt.Errorf("resend: read %s %s: %w", method, path, readErr)
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("resend: decode %s %s: %w", method, path, err)
		}
		return nil
	}
}

func decodeError(status int, data []byte) *Error {
	apiErr := &Error{StatusCode: status}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	// Some error bodies omit statusCode.
	apiErr.StatusCode = status
	return apiErr
}

func (c *Client) backoffFor(attempt int, res *http.Response) time.Duration {
	if res != nil {
		if s := res.Header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
				return min(time.Duration(secs)*time.Second, maxBackoff)
			}
		}
	}
	return min(c.backoff<<attempt, maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resourcePath(collection string, id string, rest ...string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", ErrMissingID
	}
	p := "/" + collection + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p, nil
}
