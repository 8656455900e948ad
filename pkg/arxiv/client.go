// Package arxiv fetches recent papers from the arXiv Atom API, with
// query validation and time-expiring memoization of search results.
package arxiv

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shahryar908/researchy/pkg/cache"
	"github.com/shahryar908/researchy/pkg/logging"
)

const (
	defaultBaseURL    = "https://export.arxiv.org/api/query"
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 5
	defaultCacheTTL   = 10 * time.Minute
)

// forbidden characters in the normalized query string. Space can only
// appear if normalization was bypassed; it is checked all the same.
const forbiddenChars = `()" `

// Entry is one paper from a search result.
type Entry struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Authors    []string `json:"authors"`
	Categories []string `json:"categories"`
	PDF        string   `json:"pdf,omitempty"`
}

// Result is the parsed response of one search.
type Result struct {
	Entries []Entry `json:"entries"`
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the arXiv query endpoint.
	BaseURL string

	// Timeout for HTTP requests.
	Timeout time.Duration

	// MaxResults is the default result cap when the caller passes <= 0.
	MaxResults int

	// CacheTTL is how long search results are memoized.
	CacheTTL time.Duration

	// Cache memoizes successful searches. Nil disables memoization.
	Cache cache.Cache

	// Logger for cache hits and upstream calls. Nil discards.
	Logger *slog.Logger
}

// Client queries the arXiv Atom API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	keyer      cache.Keyer
	logger     *slog.Logger
}

// NewClient creates an arXiv client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		keyer:      cache.NewDefaultKeyer(),
		logger:     logger,
	}
}

// NormalizeQuery lowercases the topic and joins its words with "+",
// the form the arXiv API expects for all-field searches.
func NormalizeQuery(topic string) string {
	return strings.Join(strings.Fields(strings.ToLower(topic)), "+")
}

// validateQuery rejects normalized queries containing characters the
// arXiv query grammar cannot take, naming the offending character.
func validateQuery(query string) error {
	for _, ch := range forbiddenChars {
		if strings.ContainsRune(query, ch) {
			return &InvalidQueryError{Char: string(ch), Query: query}
		}
	}
	return nil
}

// Search fetches recent papers about a topic, newest first. Results are
// memoized keyed by the normalized query and result cap; an empty result
// set is returned as-is, not as an error.
func (c *Client) Search(ctx context.Context, topic string, maxResults int) (*Result, error) {
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	query := NormalizeQuery(topic)
	if err := validateQuery(query); err != nil {
		return nil, err
	}

	key, err := c.keyer.Key("arxiv_search", map[string]any{
		"query":       query,
		"max_results": maxResults,
	})
	if err != nil {
		return nil, err
	}

	if c.cfg.Cache != nil {
		if data, err := c.cfg.Cache.Get(ctx, key); err == nil {
			var cached Result
			if err := json.Unmarshal(data, &cached); err == nil {
				c.logger.Debug("arxiv cache hit", "query", query)
				return &cached, nil
			}
		}
	}

	result, err := c.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	if c.cfg.Cache != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = c.cfg.Cache.Set(ctx, key, data, c.cfg.CacheTTL)
		}
	}

	return result, nil
}

func (c *Client) fetch(ctx context.Context, query string, maxResults int) (*Result, error) {
	// The query is already normalized to word characters joined by "+",
	// which the arXiv API expects verbatim.
	u := fmt.Sprintf("%s?search_query=all:%s&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		c.cfg.BaseURL, query, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug("arxiv request", "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return ParseFeed(body)
}

// Atom feed structures for the arXiv API.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title      string         `xml:"title"`
	Summary    string         `xml:"summary"`
	Authors    []atomAuthor   `xml:"author"`
	Categories []atomCategory `xml:"category"`
	Links      []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ParseFeed parses an arXiv Atom response. Entry order follows document
// order; the PDF link is the first link typed application/pdf, empty
// when the entry has none.
func ParseFeed(data []byte) (*Result, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse atom xml: %w", err)
	}

	entries := make([]Entry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		entry := Entry{
			Title:   strings.TrimSpace(e.Title),
			Summary: strings.TrimSpace(e.Summary),
		}
		for _, a := range e.Authors {
			entry.Authors = append(entry.Authors, a.Name)
		}
		for _, cat := range e.Categories {
			entry.Categories = append(entry.Categories, cat.Term)
		}
		for _, l := range e.Links {
			if l.Type == "application/pdf" {
				entry.PDF = l.Href
				break
			}
		}
		entries = append(entries, entry)
	}

	return &Result{Entries: entries}, nil
}
