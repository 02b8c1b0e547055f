// Package search wraps a Tavily-style web search provider as an agent tool.
//
// The adapter never returns an error to the caller: provider failures and
// empty result sets come back as descriptive strings the model can reason
// about, so a broken search degrades the answer instead of the evaluation.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/tool"
	"github.com/shoplab-ai/shoplab/tool/cache"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 3
	snippetLimit      = 300
)

// Config holds web-search provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Cache      cache.Cache
}

// Client calls the search provider and formats results for the model.
type Client struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
	cache      cache.Cache
	logger     *slog.Logger
}

// New creates a search client.
func New(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Client{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		httpClient: &http.Client{},
		cache:      config.Cache,
		logger:     logging.WithComponent("web_search"),
	}
}

type searchRequest struct {
	APIKey string `json:"api_key"`
	Query  string `json:"query"`
}

type searchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Search queries the provider and returns a formatted result block.
func (c *Client) Search(ctx context.Context, query string) string {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, "search:"+query); ok {
			c.logger.Debug("search cache hit", "query", query)
			return cached
		}
	}

	results, err := c.fetch(ctx, query)
	if err != nil {
		c.logger.Warn("web search failed", "query", query, "error", err)
		return fmt.Sprintf("Web search failed for '%s': %v", query, err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No relevant search results found for '%s'", query)
	}

	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Web search results for '%s':\n\n", query)
	for i, result := range results {
		fmt.Fprintf(&sb, "Result %d:\n", i+1)
		fmt.Fprintf(&sb, "Title: %s\n", result.Title)
		fmt.Fprintf(&sb, "URL: %s\n", result.URL)
		fmt.Fprintf(&sb, "Content: %s...\n\n", truncate(stripHTML(result.Content), snippetLimit))
	}
	summary := sb.String()

	if c.cache != nil {
		c.cache.Set(ctx, "search:"+query, summary)
	}
	return summary
}

func (c *Client) fetch(ctx context.Context, query string) ([]searchResult, error) {
	body, err := json.Marshal(searchRequest{APIKey: c.apiKey, Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Results, nil
}

// Tool returns the registry entry exposing this client to agents.
func (c *Client) Tool() *tool.Tool {
	return &tool.Tool{
		Name:        "web_search",
		Description: "Search the web for current market prices, competitor information, and general product data",
		ResultKey:   "search_results",
		Parameters: []tool.Parameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query to look for current information",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			return c.Search(ctx, query), nil
		},
	}
}

// stripHTML flattens markup some providers leak into content snippets.
func stripHTML(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return content
	}
	return text
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
