package semanticscholar

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
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultDelay is the minimum spacing between requests without an API key.
	DefaultDelay = time.Second

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// citationFields is the list of fields to request from the API.
	citationFields = "citationCount,influentialCitationCount,referenceCount,year,fieldsOfStudy,publicationVenue,s2FieldsOfStudy"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// Delay is the minimum spacing between requests.
	// Defaults to DefaultDelay if zero; negative disables spacing.
	Delay time.Duration

	// UserAgent overrides the default User-Agent header.
	UserAgent string
}

// Client is the primary citation provider.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

// Compile-time check that Client implements papersources.CitationSource.
var _ papersources.CitationSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       sourceName,
			Timeout:      cfg.Timeout,
			MinInterval:  cfg.Delay,
			UserAgent:    cfg.UserAgent,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
	}
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// FetchCitations performs one lookup of the paper with the given normalized
// arXiv identifier.
func (c *Client) FetchCitations(ctx context.Context, id string) (domain.CitationRecord, error) {
	path := (&url.URL{Path: "/paper/arXiv:" + id}).EscapedPath()
	paperURL := fmt.Sprintf("%s%s?fields=%s", c.config.BaseURL, path, citationFields)

	var result PaperResult
	if err := c.httpClient.GetJSON(ctx, paperURL, id, &result); err != nil {
		return domain.CitationRecord{}, err
	}

	return convertToRecord(result), nil
}

// convertToRecord adapts the raw API payload into a domain record.
// Null counts become zero.
func convertToRecord(result PaperResult) domain.CitationRecord {
	venue := result.Venue
	if result.PublicationVenue != nil && result.PublicationVenue.Name != "" {
		venue = result.PublicationVenue.Name
	}

	return domain.NewCitationRecord(
		deref(result.CitationCount),
		deref(result.InfluentialCitationCount),
		deref(result.ReferenceCount),
		result.Year,
		venue,
		mergeFields(result.FieldsOfStudy, result.S2FieldsOfStudy),
		domain.RecordSourcePrimary,
	)
}

// mergeFields returns fieldsOfStudy followed by unseen s2 categories,
// de-duplicated with order preserved.
func mergeFields(fos []string, s2 []S2Field) []string {
	seen := make(map[string]struct{}, len(fos)+len(s2))
	fields := make([]string, 0, len(fos)+len(s2))
	add := func(f string) {
		f = strings.TrimSpace(f)
		if f == "" {
			return
		}
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	for _, f := range fos {
		add(f)
	}
	for _, f := range s2 {
		add(f.Category)
	}
	return fields
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
