package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobcompass/internal/config"
	"jobcompass/internal/errcode"
	"jobcompass/internal/listing"
	"jobcompass/internal/logger"
)

const maxErrorBody = 512

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	maxResults int
	logger     *zap.Logger
}

// NewTavilyClient builds a client from configuration. A missing API key is only
// reported when Search is called.
func NewTavilyClient(cfg config.TavilyConfig, log *zap.Logger) *TavilyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &TavilyClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		maxResults: maxResults,
		logger:     logger.OrNop(log).With(zap.String("provider", TypeTavily)),
	}
}

func (c *TavilyClient) Name() string { return TypeTavily }

func (c *TavilyClient) Configured() bool { return c.apiKey != "" }

type tavilyRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Search posts the query to /search and maps every hit to a Result.
func (c *TavilyClient) Search(ctx context.Context, req Request) ([]Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: Tavily API key is not configured", ErrNotConfigured)
	}

	domains := req.Domains
	if len(domains) == 0 {
		domains = listing.DefaultDomains
	}
	exclude := req.ExcludeDomains
	if len(exclude) == 0 {
		exclude = listing.ExcludedDomains
	}
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = c.maxResults
	}

	body, err := json.Marshal(tavilyRequest{
		Query:             req.Query,
		SearchDepth:       "advanced",
		IncludeRawContent: true,
		MaxResults:        maxResults,
		IncludeDomains:    domains,
		ExcludeDomains:    exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavily request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("tavily search request",
		zap.String("query", req.Query),
		zap.Strings("include_domains", domains),
		zap.Int("max_results", maxResults),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errcode.Upstream("tavily search failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errcode.Upstream("tavily search failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errcode.Upstream("tavily search failed", fmt.Errorf("decode response: %w", err))
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, hit := range decoded.Results {
		raw, err := json.Marshal(hit)
		if err != nil {
			return nil, fmt.Errorf("marshal tavily hit: %w", err)
		}
		content := hit.RawContent
		if strings.TrimSpace(content) == "" {
			content = hit.Content
		}
		meta := map[string]any{"score": hit.Score}
		if hit.PublishedDate != "" {
			meta["published_date"] = hit.PublishedDate
		}
		results = append(results, Result{
			Title:    hit.Title,
			URL:      hit.URL,
			Content:  content,
			Metadata: meta,
			Raw:      raw,
		})
	}

	c.logger.Debug("tavily search response", zap.Int("results", len(results)))
	return results, nil
}
