package foodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shoplab-ai/shoplab/tool/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&Config{BaseURL: srv.URL}), srv
}

func productsJSON(products ...map[string]any) string {
	data, _ := json.Marshal(map[string]any{"products": products})
	return string(data)
}

func TestLookupFormatsProduct(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsJSON(map[string]any{
			"product_name":     "Dark Chocolate Bar",
			"ingredients_text": "cocoa mass, sugar, cocoa butter",
			"ingredients_tags": []string{"en:cocoa-mass", "en:sugar"},
			"brands":           "ChocoCo",
			"categories":       "Snacks, Chocolates",
		}))
	})

	result := client.Lookup(context.Background(), "Dark Chocolate Bar", "")

	for _, want := range []string{
		"Found product: Dark Chocolate Bar",
		"Ingredients: cocoa mass, sugar, cocoa butter",
		"Brand: ChocoCo",
		"Categories: Snacks, Chocolates",
		"Ingredient tags: en:cocoa-mass, en:sugar",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("result missing %q:\n%s", want, result)
		}
	}
}

func TestLookupFallbacksForMissingFields(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsJSON(map[string]any{
			"ingredients_text": "water, salt",
		}))
	})

	result := client.Lookup(context.Background(), "Mystery Snack", "")

	if !strings.Contains(result, "Found product: Mystery Snack") {
		t.Errorf("expected input name fallback, got:\n%s", result)
	}
	if !strings.Contains(result, "Brand: Not specified") {
		t.Errorf("expected brand fallback, got:\n%s", result)
	}
	if !strings.Contains(result, "Categories: Not specified") {
		t.Errorf("expected categories fallback, got:\n%s", result)
	}
	if strings.Contains(result, "Ingredient tags:") {
		t.Errorf("expected no tags line without tags, got:\n%s", result)
	}
}

func TestLookupCapsIngredientTags(t *testing.T) {
	tags := make([]string, 15)
	for i := range tags {
		tags[i] = fmt.Sprintf("en:tag-%d", i)
	}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, productsJSON(map[string]any{
			"product_name":     "Tagged",
			"ingredients_text": "stuff",
			"ingredients_tags": tags,
		}))
	})

	result := client.Lookup(context.Background(), "Tagged", "")

	if strings.Contains(result, "en:tag-10") {
		t.Errorf("expected at most 10 tags, got:\n%s", result)
	}
	if !strings.Contains(result, "en:tag-9") {
		t.Errorf("expected tenth tag present, got:\n%s", result)
	}
}

func TestLookupSkipsProductsWithoutIngredients(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Query().Get("categories"))
		if r.URL.Query().Get("categories") == "" {
			fmt.Fprint(w, productsJSON(map[string]any{"product_name": "NoInfo"}))
			return
		}
		fmt.Fprint(w, productsJSON(map[string]any{
			"product_name":     "Scoped Match",
			"ingredients_text": "oats, honey",
		}))
	})

	result := client.Lookup(context.Background(), "Granola", "Breakfast")

	if len(calls) != 2 {
		t.Fatalf("expected unscoped then scoped query, got %d calls", len(calls))
	}
	if calls[0] != "" || calls[1] != "Breakfast" {
		t.Errorf("unexpected query order: %v", calls)
	}
	if !strings.Contains(result, "Found product: Scoped Match") {
		t.Errorf("expected scoped match, got:\n%s", result)
	}
}

func TestLookupNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"products":[]}`)
	})

	result := client.Lookup(context.Background(), "Unknown Thing", "")

	want := "No ingredient data found for 'Unknown Thing' in OpenFoodFacts database"
	if result != want {
		t.Errorf("got %q, want %q", result, want)
	}
}

func TestLookupServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := client.Lookup(context.Background(), "Anything", "")

	if !strings.Contains(result, "Network error searching OpenFoodFacts") {
		t.Errorf("expected network error string, got %q", result)
	}
}

func TestLookupUnreachableHost(t *testing.T) {
	client := New(&Config{BaseURL: "http://127.0.0.1:1"})

	result := client.Lookup(context.Background(), "Anything", "")

	if !strings.Contains(result, "Network error searching OpenFoodFacts") {
		t.Errorf("expected network error string, got %q", result)
	}
}

func TestLookupUsesCache(t *testing.T) {
	var hits int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, productsJSON(map[string]any{
			"product_name":     "Cached",
			"ingredients_text": "sugar",
		}))
	})
	client.cache = cache.NewMemory(0)

	first := client.Lookup(context.Background(), "Cached", "Sweets")
	second := client.Lookup(context.Background(), "Cached", "Sweets")

	if hits != 1 {
		t.Errorf("expected single upstream call, got %d", hits)
	}
	if first != second {
		t.Errorf("cached result mismatch:\n%s\nvs\n%s", first, second)
	}
}

func TestToolDefinition(t *testing.T) {
	client := New(nil)
	def := client.Tool()

	if def.Name != "lookup_product_ingredients" {
		t.Errorf("unexpected tool name %q", def.Name)
	}
	if def.ResultKey != "ingredient_data" {
		t.Errorf("unexpected result key %q", def.ResultKey)
	}
	if err := def.ValidateArgs(map[string]any{}); err == nil {
		t.Error("expected product_name to be required")
	}
	if err := def.ValidateArgs(map[string]any{"product_name": "x"}); err != nil {
		t.Errorf("category should be optional: %v", err)
	}
}
