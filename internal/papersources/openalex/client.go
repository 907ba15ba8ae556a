package openalex

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/helixir/citation-enrichment-service/internal/domain"
	"github.com/helixir/citation-enrichment-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultDelay is the minimum spacing between fallback requests.
	DefaultDelay = 2 * time.Second

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// selectFields limits the payload to what the fallback record needs.
	selectFields = "id,display_name,cited_by_count,publication_year,primary_location,concepts"

	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	Timeout time.Duration

	// Delay is the minimum spacing between requests; negative disables spacing.
	Delay time.Duration
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
}

// Client is the title-based fallback provider.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

// Ensure Client implements TitleSource interface.
var _ papersources.TitleSource = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := papersources.DefaultUserAgent
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:      sourceName,
		Timeout:     cfg.Timeout,
		MinInterval: cfg.Delay,
		UserAgent:   userAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// FetchByTitle searches for the title and adapts the top result. It makes a
// single attempt. A missing match or a zero citation count is reported as
// domain.ErrFallbackRejected.
func (c *Client) FetchByTitle(ctx context.Context, title string) (domain.CitationRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.CitationRecord{}, domain.NewValidationError("title", "must not be empty")
	}

	searchURL, err := c.buildSearchURL(title)
	if err != nil {
		return domain.CitationRecord{}, fmt.Errorf("building search URL: %w", err)
	}

	var resp SearchResponse
	if err := c.httpClient.GetJSON(ctx, searchURL, title, &resp); err != nil {
		return domain.CitationRecord{}, err
	}

	if len(resp.Results) == 0 {
		return domain.CitationRecord{}, domain.NewRejectedError(sourceName, "no match for title")
	}

	work := resp.Results[0]
	if work.CitedByCount <= 0 {
		return domain.CitationRecord{}, domain.NewRejectedError(sourceName, "zero citations")
	}

	year := work.PublicationYear
	return domain.NewCitationRecord(
		work.CitedByCount,
		0,
		0,
		&year,
		work.venue(),
		work.fields(),
		domain.RecordSourceFallback,
	), nil
}

// buildSearchURL constructs the works search URL for a title query.
func (c *Client) buildSearchURL(title string) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	worksURL := baseURL.JoinPath("works")
	q := worksURL.Query()
	q.Set("search", title)
	q.Set("per-page", "1")
	q.Set("select", selectFields)
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}
	worksURL.RawQuery = q.Encode()

	return worksURL.String(), nil
}
