package evaluation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const fallbackConfidence = 75

var digitsPattern = regexp.MustCompile(`\d+`)

// decodeVerdict unmarshals raw model output after stripping code fences.
func decodeVerdict(raw string) (*Verdict, error) {
	clean := sanitizeJSON(raw)

	// Scores and confidences arrive as arbitrary JSON numbers.
	var wire struct {
		Score          float64        `json:"score"`
		Recommendation Recommendation `json:"recommendation"`
		Reasoning      string         `json:"reasoning"`
		Confidence     float64        `json:"confidence"`
		Details        map[string]any `json:"details"`
	}
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}

	v := &Verdict{
		Score:          int(wire.Score),
		Recommendation: wire.Recommendation,
		Reasoning:      wire.Reasoning,
		Confidence:     int(wire.Confidence),
		Details:        wire.Details,
	}
	if v.Details == nil {
		v.Details = make(map[string]any)
	}
	return v, nil
}

func sanitizeJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = trimmed[3:]
		trimmed = strings.TrimPrefix(trimmed, "json")
		trimmed = strings.TrimPrefix(trimmed, "JSON")
		if idx := strings.Index(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
	}
	return strings.TrimSpace(trimmed)
}

// parseLooseVerdict recovers a verdict from free-form model output. It scans
// for a line mentioning a score or rating, takes its first integer (wrapped
// modulo 100 when out of range), and derives the recommendation from the
// usual thresholds. The full text becomes the reasoning.
func parseLooseVerdict(raw string) *Verdict {
	score := 50

	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "score") && !strings.Contains(lower, "rating") {
			continue
		}
		if match := digitsPattern.FindString(line); match != "" {
			if n, err := strconv.Atoi(match); err == nil {
				score = n
				if score > 100 {
					score = score % 100
				}
				break
			}
		}
	}

	recommendation := RecommendAvoid
	switch {
	case score >= 70:
		recommendation = RecommendBuy
	case score >= 40:
		recommendation = RecommendNeutral
	}

	return &Verdict{
		Score:          score,
		Recommendation: recommendation,
		Reasoning:      raw,
		Confidence:     fallbackConfidence,
		Details:        make(map[string]any),
	}
}
