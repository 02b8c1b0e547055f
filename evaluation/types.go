// Package evaluation runs role-specialized analysis agents against a product
// and aggregates their verdicts into a single purchase recommendation.
package evaluation

// Recommendation is an agent's (or the aggregate) purchase advice.
type Recommendation string

const (
	RecommendBuy     Recommendation = "buy"
	RecommendNeutral Recommendation = "neutral"
	RecommendAvoid   Recommendation = "avoid"
	RecommendError   Recommendation = "error"
)

// Verdict is a single agent's analysis result. A failed analysis is still a
// Verdict, with recommendation "error" and zeroed score/confidence.
type Verdict struct {
	Score          int            `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	Confidence     int            `json:"confidence"`
	Details        map[string]any `json:"details"`
	SearchResults  string         `json:"search_results,omitempty"`
	IngredientData string         `json:"ingredient_data,omitempty"`
}

// IsError reports whether this verdict represents a failed analysis.
func (v *Verdict) IsError() bool {
	return v.Recommendation == RecommendError
}

// attachToolOutput stores a tool's raw output under its result key.
func (v *Verdict) attachToolOutput(key, output string) {
	switch key {
	case "search_results":
		v.SearchResults = output
	case "ingredient_data":
		v.IngredientData = output
	default:
		if v.Details == nil {
			v.Details = make(map[string]any)
		}
		v.Details[key] = output
	}
}

// Outcome is the aggregated evaluation across all agents. AgentResults holds
// one verdict per configured role, error verdicts included.
type Outcome struct {
	OverallScore          int                 `json:"overall_score"`
	OverallRecommendation Recommendation      `json:"overall_recommendation"`
	AgentResults          map[string]*Verdict `json:"agent_results"`
	KeyStrengths          []string            `json:"key_strengths"`
	KeyConcerns           []string            `json:"key_concerns"`
	Confidence            int                 `json:"confidence"`
}
