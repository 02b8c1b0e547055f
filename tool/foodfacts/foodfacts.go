// Package foodfacts wraps the OpenFoodFacts product database as an agent tool.
// Like the search adapter it never fails outward: lookup problems become
// descriptive strings fed back into the model conversation.
package foodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/tool"
	"github.com/shoplab-ai/shoplab/tool/cache"
)

const (
	defaultBaseURL = "https://world.openfoodfacts.org"
	maxTags        = 10
	requestTimeout = 10 * time.Second
)

// Config holds ingredient database configuration.
type Config struct {
	BaseURL string
	Cache   cache.Cache
}

// Client queries the product database for ingredient information.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	logger     *slog.Logger
}

// New creates an ingredient lookup client.
func New(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      config.Cache,
		logger:     logging.WithComponent("ingredient_lookup"),
	}
}

type productRecord struct {
	ProductName     string   `json:"product_name"`
	IngredientsText string   `json:"ingredients_text"`
	IngredientsTags []string `json:"ingredients_tags"`
	Brands          string   `json:"brands"`
	Categories      string   `json:"categories"`
}

type searchResponse struct {
	Products []productRecord `json:"products"`
}

// Lookup searches the database by product name, optionally narrowed by
// category, and returns a formatted ingredient block. The unscoped query runs
// first; the category-scoped one only when the first yields no ingredient text.
func (c *Client) Lookup(ctx context.Context, productName, category string) string {
	cacheKey := "ingredients:" + productName + "|" + category
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			c.logger.Debug("ingredient cache hit", "product", productName)
			return cached
		}
	}

	queries := []url.Values{{
		"search_terms": {productName},
		"json":         {"1"},
	}}
	if category != "" {
		queries = append(queries, url.Values{
			"search_terms": {productName},
			"categories":   {category},
			"json":         {"1"},
		})
	}

	for _, query := range queries {
		record, err := c.fetch(ctx, query)
		if err != nil {
			c.logger.Warn("ingredient lookup failed", "product", productName, "error", err)
			return fmt.Sprintf("Network error searching OpenFoodFacts: %v", err)
		}
		if record == nil || strings.TrimSpace(record.IngredientsText) == "" {
			continue
		}

		result := formatRecord(record, productName)
		if c.cache != nil {
			c.cache.Set(ctx, cacheKey, result)
		}
		return result
	}

	return fmt.Sprintf("No ingredient data found for '%s' in OpenFoodFacts database", productName)
}

func (c *Client) fetch(ctx context.Context, query url.Values) (*productRecord, error) {
	endpoint := c.baseURL + "/cgi/search.pl?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("database returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(parsed.Products) == 0 {
		return nil, nil
	}
	// The first product is the most relevant match.
	return &parsed.Products[0], nil
}

func formatRecord(record *productRecord, fallbackName string) string {
	name := record.ProductName
	if strings.TrimSpace(name) == "" {
		name = fallbackName
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found product: %s\n", name)
	fmt.Fprintf(&sb, "Ingredients: %s\n", record.IngredientsText)
	fmt.Fprintf(&sb, "Brand: %s\n", orNotSpecified(record.Brands))
	fmt.Fprintf(&sb, "Categories: %s", orNotSpecified(record.Categories))

	if len(record.IngredientsTags) > 0 {
		tags := record.IngredientsTags
		if len(tags) > maxTags {
			tags = tags[:maxTags]
		}
		fmt.Fprintf(&sb, "\nIngredient tags: %s", strings.Join(tags, ", "))
	}
	return sb.String()
}

func orNotSpecified(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Not specified"
	}
	return value
}

// Tool returns the registry entry exposing this client to agents.
func (c *Client) Tool() *tool.Tool {
	return &tool.Tool{
		Name:        "lookup_product_ingredients",
		Description: "Look up product ingredients using the OpenFoodFacts database",
		ResultKey:   "ingredient_data",
		Parameters: []tool.Parameter{
			{
				Name:        "product_name",
				Type:        "string",
				Description: "The product name to search for ingredients",
				Required:    true,
			},
			{
				Name:        "category",
				Type:        "string",
				Description: "The product category to help narrow the search",
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			productName, _ := args["product_name"].(string)
			category, _ := args["category"].(string)
			return c.Lookup(ctx, productName, category), nil
		},
	}
}
