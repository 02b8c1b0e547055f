// Package product defines the immutable product attributes an evaluation runs on.
package product

import (
	"fmt"
	"strings"

	"github.com/shoplab-ai/shoplab/config"
)

// Attributes describes the product under evaluation. It is owned by the
// caller and never mutated by the evaluation engine.
type Attributes struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
	Ingredients string   `json:"ingredients,omitempty"`
	Reviews     string   `json:"reviews,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
}

// Validate checks the attributes an evaluation cannot run without.
func (a Attributes) Validate() error {
	v := config.NewValidator()
	v.RequireNonEmpty("name", strings.TrimSpace(a.Name))
	v.RequireNonEmpty("brand", strings.TrimSpace(a.Brand))
	v.RequirePositiveFloat("price", a.Price)
	if a.Rating != nil {
		v.ValidateFloatRange("rating", *a.Rating, 0, 5)
	}
	return v.Error()
}

// NameOrUnknown returns the product name or "Unknown" when absent.
func (a Attributes) NameOrUnknown() string {
	return orDefault(a.Name, "Unknown")
}

// BrandOrUnknown returns the brand or "Unknown" when absent.
func (a Attributes) BrandOrUnknown() string {
	return orDefault(a.Brand, "Unknown")
}

// CategoryOrUnknown returns the category or "Unknown" when absent.
func (a Attributes) CategoryOrUnknown() string {
	return orDefault(a.Category, "Unknown")
}

// DescriptionOrDefault returns the description or a placeholder when absent.
func (a Attributes) DescriptionOrDefault() string {
	return orDefault(a.Description, "No description")
}

// ReviewsOrDefault returns the review text or a placeholder when absent.
func (a Attributes) ReviewsOrDefault() string {
	return orDefault(a.Reviews, "No reviews available")
}

// IngredientsOrDefault returns the ingredient text or "Not specified".
func (a Attributes) IngredientsOrDefault() string {
	return orDefault(a.Ingredients, "Not specified")
}

// HasIngredients reports whether the caller supplied any ingredient text.
func (a Attributes) HasIngredients() bool {
	return strings.TrimSpace(a.Ingredients) != ""
}

// RatingOrNA renders the average rating or "N/A" when absent.
func (a Attributes) RatingOrNA() string {
	if a.Rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *a.Rating)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
