package papersources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/domain"
)

const (
	// DefaultTimeout bounds every outbound request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent is sent when the caller does not set one.
	DefaultUserAgent = "Helixir-CitationEnrichment/1.0"

	maxErrorBody    = 1 << 20
	maxResponseBody = 10 << 20
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Source names the provider in errors.
	Source string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MinInterval is the minimum spacing between requests.
	MinInterval time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "x-api-key").
	APIKeyHeader string
}

// HTTPClient wraps http.Client with per-provider request spacing.
// It performs exactly one round trip per call; retry policy belongs to the
// caller. It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Source == "" {
		cfg.Source = "provider"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.MinInterval),
		config:      cfg,
	}
}

// RateLimiter exposes the client's limiter.
func (c *HTTPClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Do waits for the rate limiter, sets the User-Agent and optional API key
// headers, and executes the request once. Transport failures are returned as
// transient domain errors; context cancellation is returned unchanged.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")

	if err := c.rateLimiter.Wait(req.Context()); err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.NewExternalAPIError(c.config.Source, 0, "request failed", err)
	}
	return resp, nil
}

// GetJSON issues a GET request, classifies the response status and decodes a
// successful body into out. id is used for not-found errors.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckResponse(c.config.Source, id, resp); err != nil {
		return err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return domain.NewExternalAPIError(c.config.Source, resp.StatusCode, "decoding response", err)
	}
	return nil
}

// CheckResponse maps a provider response onto the domain error taxonomy:
// 404 is not found, 429 or a throttling message is rate limited, and any
// other non-2xx status is transient.
func CheckResponse(source, id string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return domain.NewNotFoundError("paper", id)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		drain(resp.Body)
		return domain.NewRateLimitError(source, RetryAfter(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return domain.NewExternalAPIError(source, resp.StatusCode, "failed to read error response", err)
	}

	message := errorMessage(body)
	if looksThrottled(message) {
		return domain.NewRateLimitError(source, RetryAfter(resp))
	}
	return domain.NewExternalAPIError(source, resp.StatusCode, message, nil)
}

// RetryAfter parses the Retry-After header as seconds or an HTTP date.
// It returns zero when the header is absent or unusable.
func RetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}
	return 0
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Message != "" {
			return eb.Message
		}
	}
	return strings.TrimSpace(string(body))
}

func looksThrottled(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "rate limit") || strings.Contains(m, "too many requests")
}

func drain(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	}
}
