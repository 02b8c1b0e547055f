package evaluation

import (
	"fmt"

	"github.com/shoplab-ai/shoplab/product"
)

// RoleIngredientSafety is the role whose "avoid" verdict vetoes the overall
// recommendation. The name doubles as the aggregation key, so it must stay
// stable across releases.
const RoleIngredientSafety = "Ingredient Safety"

const defaultRoleWeight = 0.25

// Role describes one evaluation specialty: its identity, its system prompt,
// how it frames a product for analysis, and its share of the overall score.
type Role struct {
	Name        string
	Emoji       string
	Description string
	SystemPrompt string
	Weight      float64
	BuildPrompt func(product.Attributes) string
}

// DefaultRoles returns the standard evaluation panel in catalog order. The
// order is load-bearing: strengths and concerns are reported in it.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:        "Cost Analysis",
			Emoji:       "💰",
			Description: "Evaluates pricing, value proposition, and cost-effectiveness",
			Weight:      defaultRoleWeight,
			SystemPrompt: `You are a cost analysis expert specializing in product pricing evaluation.
Your task is to analyze products based on:
- Price competitiveness in the market
- Value for money proposition
- Cost-effectiveness
- Price-to-quality ratio
- Long-term value

You have access to a web search tool that can find current market prices, competitor information, and pricing trends.

Provide a score from 0-100 (higher is better) and detailed reasoning.
Format your response with:
- SCORE: [number]
- REASONING: [detailed analysis]
- KEY FACTORS: [bullet points]

If you need current market data, use the web search tool by responding with the search query in your reasoning.`,
			BuildPrompt: func(p product.Attributes) string {
				return fmt.Sprintf(`Analyze the cost-effectiveness of this product:

Product Name: %s
Price: $%v
Brand: %s
Category: %s
Description: %s

User Reviews: %s
Average Rating: %s

Please provide a comprehensive cost analysis with a score (0-100) and detailed reasoning.
If you need current market data, search for: "%s price comparison %s"`,
					p.NameOrUnknown(), p.Price, p.BrandOrUnknown(), p.CategoryOrUnknown(),
					truncateToTokens(p.DescriptionOrDefault(), fieldTokenBudget),
					truncateToTokens(p.ReviewsOrDefault(), fieldTokenBudget),
					p.RatingOrNA(), p.Name, p.Category)
			},
		},
		{
			Name:        "Supplier Trust",
			Emoji:       "🤝",
			Description: "Assesses supplier reliability, reputation, and trustworthiness",
			Weight:      defaultRoleWeight,
			SystemPrompt: `You are a supplier trust and reputation expert.
Your task is to evaluate suppliers based on:
- Brand reputation and history
- Customer service quality
- Delivery reliability
- Return and refund policies
- Overall trustworthiness

Provide a score from 0-100 (higher is better) and detailed reasoning.
Format your response with:
- SCORE: [number]
- REASONING: [detailed analysis]
- TRUST FACTORS: [bullet points]`,
			BuildPrompt: func(p product.Attributes) string {
				return fmt.Sprintf(`Evaluate the supplier trustworthiness for this product:

Brand: %s
Product: %s
Category: %s

User Reviews: %s
Average Rating: %s

Based on the brand name and user feedback, assess the supplier's trustworthiness.
Provide a score (0-100) and detailed reasoning.`,
					p.BrandOrUnknown(), p.NameOrUnknown(), p.CategoryOrUnknown(),
					truncateToTokens(p.ReviewsOrDefault(), fieldTokenBudget), p.RatingOrNA())
			},
		},
		{
			Name:        "Sustainability",
			Emoji:       "🌱",
			Description: "Analyzes environmental impact and sustainability practices",
			Weight:      defaultRoleWeight,
			SystemPrompt: `You are a sustainability and environmental impact expert.
Your task is to evaluate products based on:
- Environmental footprint
- Sustainable sourcing practices
- Packaging and waste
- Carbon footprint
- Ethical production

Provide a score from 0-100 (higher is better) and detailed reasoning.
Format your response with:
- SCORE: [number]
- REASONING: [detailed analysis]
- SUSTAINABILITY FACTORS: [bullet points]`,
			BuildPrompt: func(p product.Attributes) string {
				return fmt.Sprintf(`Analyze the sustainability of this product:

Product: %s
Brand: %s
Category: %s
Description: %s
Ingredients: %s

Evaluate the environmental impact and sustainability practices.
Provide a score (0-100) and detailed reasoning.`,
					p.NameOrUnknown(), p.BrandOrUnknown(), p.CategoryOrUnknown(),
					truncateToTokens(p.DescriptionOrDefault(), fieldTokenBudget),
					truncateToTokens(p.IngredientsOrDefault(), fieldTokenBudget))
			},
		},
		{
			Name:        RoleIngredientSafety,
			Emoji:       "🔬",
			Description: "Assesses ingredient safety and health implications",
			Weight:      defaultRoleWeight,
			SystemPrompt: `You are an ingredient safety and health expert.
Your task is to evaluate products based on:
- Ingredient safety profiles
- Potential health risks
- Allergen presence
- Chemical safety
- Overall health impact

You have access to multiple tools:
- web_search: For general web queries and current market data
- lookup_product_ingredients: For finding ingredient lists in the OpenFoodFacts database

Provide a score from 0-100 (higher is better) and detailed reasoning.
Format your response with:
- SCORE: [number]
- REASONING: [detailed analysis]
- SAFETY FACTORS: [bullet points]
- CONCERNS: [any red flags]

CRITICAL: If ingredients are not provided in the product data, you MUST use the lookup_product_ingredients tool to find ingredient information. Do not give a low score just because ingredients aren't listed - search for them first!`,
			BuildPrompt: func(p product.Attributes) string {
				searchSuggestion := ""
				if !p.HasIngredients() {
					searchSuggestion = fmt.Sprintf(
						"Since no ingredients are provided, I MUST use the lookup_product_ingredients tool to find ingredient information for '%s' in the %s category.",
						p.Name, p.Category)
				}

				return fmt.Sprintf(`Evaluate the ingredient safety of this product:

Product: %s
Category: %s
Description: %s

Ingredients List: %s

%s

Analyze each ingredient for safety, potential health risks, and overall health impact.
Provide a score (0-100) and detailed reasoning with specific ingredient concerns if any.`,
					p.NameOrUnknown(), p.CategoryOrUnknown(),
					truncateToTokens(p.DescriptionOrDefault(), fieldTokenBudget),
					truncateToTokens(p.IngredientsOrDefault(), fieldTokenBudget),
					searchSuggestion)
			},
		},
	}
}
