package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/pkg/telemetry"
	"github.com/shoplab-ai/shoplab/product"
	"github.com/shoplab-ai/shoplab/provider"
	"github.com/shoplab-ai/shoplab/tool"
)

const insightLimit = 3

// Coordinator fans a product out to the full agent panel and folds the
// verdicts into one Outcome.
type Coordinator struct {
	agents []*Agent
	logger *slog.Logger
	tracer trace.Tracer
}

// New builds a coordinator over the default role catalog.
func New(client provider.Client, tools *tool.Registry) *Coordinator {
	return NewWithRoles(client, tools, DefaultRoles())
}

// NewWithRoles builds a coordinator over a custom role catalog. Role order
// is preserved in strength/concern reporting.
func NewWithRoles(client provider.Client, tools *tool.Registry, roles []Role) *Coordinator {
	agents := make([]*Agent, 0, len(roles))
	for _, role := range roles {
		agents = append(agents, NewAgent(role, client, tools))
	}
	return &Coordinator{
		agents: agents,
		logger: logging.WithComponent("coordinator"),
		tracer: telemetry.Tracer("shoplab/evaluation"),
	}
}

// Roles returns the configured role catalog in panel order.
func (c *Coordinator) Roles() []Role {
	roles := make([]Role, 0, len(c.agents))
	for _, agent := range c.agents {
		roles = append(roles, agent.Role())
	}
	return roles
}

// Evaluate runs every agent concurrently and aggregates their verdicts.
// onProgress (may be nil) receives a complete progress snapshot, one entry
// per role in [0,1], after every agent checkpoint. A panicking or failing
// agent contributes an error verdict; the batch itself never fails.
func (c *Coordinator) Evaluate(ctx context.Context, attrs product.Attributes, onProgress func(map[string]float64)) *Outcome {
	ctx, span := c.tracer.Start(ctx, "coordinator.evaluate",
		trace.WithAttributes(attribute.String("product.name", attrs.Name)))
	defer telemetry.End(span, nil)

	c.logger.Info("evaluation started", "product", attrs.Name, "agents", len(c.agents))

	tracker := newProgressTracker(c.Roles(), onProgress)
	verdicts := make([]*Verdict, len(c.agents))

	var wg sync.WaitGroup
	for i, agent := range c.agents {
		wg.Add(1)
		go func(index int, ag *Agent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					verdicts[index] = errorVerdict(fmt.Errorf("panic in agent %s: %v", ag.Role().Name, r))
				}
			}()

			roleName := ag.Role().Name
			verdicts[index] = ag.Analyze(ctx, attrs, func(p float64) {
				tracker.update(roleName, p)
			})
		}(i, agent)
	}
	wg.Wait()

	results := make(map[string]*Verdict, len(c.agents))
	for i, agent := range c.agents {
		results[agent.Role().Name] = verdicts[i]
	}

	outcome := c.aggregate(results)
	c.logger.Info("evaluation finished",
		"product", attrs.Name,
		"overall_score", outcome.OverallScore,
		"overall_recommendation", outcome.OverallRecommendation)
	return outcome
}

func (c *Coordinator) aggregate(results map[string]*Verdict) *Outcome {
	strengths, concerns := c.extractInsights(results)
	score := c.overallScore(results)

	return &Outcome{
		OverallScore:          score,
		OverallRecommendation: c.overallRecommendation(score, results),
		AgentResults:          results,
		KeyStrengths:          strengths,
		KeyConcerns:           concerns,
		Confidence:            overallConfidence(results),
	}
}

// overallScore is the weighted mean over non-error verdicts, or 0 when every
// agent errored.
func (c *Coordinator) overallScore(results map[string]*Verdict) int {
	var weightedSum, totalWeight float64

	for _, agent := range c.agents {
		verdict := results[agent.Role().Name]
		if verdict == nil || verdict.IsError() {
			continue
		}
		weight := agent.Role().Weight
		weightedSum += float64(verdict.Score) * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0
	}
	return int(weightedSum / totalWeight)
}

// overallRecommendation applies the safety veto first, then score and
// consensus thresholds.
func (c *Coordinator) overallRecommendation(score int, results map[string]*Verdict) Recommendation {
	if safety := results[RoleIngredientSafety]; safety != nil && safety.Recommendation == RecommendAvoid {
		return RecommendAvoid
	}

	var buyCount, avoidCount int
	for _, verdict := range results {
		switch verdict.Recommendation {
		case RecommendBuy:
			buyCount++
		case RecommendAvoid:
			avoidCount++
		}
	}

	switch {
	case score >= 70 && buyCount >= 2:
		return RecommendBuy
	case score < 40 || avoidCount >= 2:
		return RecommendAvoid
	default:
		return RecommendNeutral
	}
}

func overallConfidence(results map[string]*Verdict) int {
	var sum, count int
	for _, verdict := range results {
		if verdict.IsError() {
			continue
		}
		sum += verdict.Confidence
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// extractInsights reports high-scoring roles as strengths and low-scoring
// ones as concerns, at most three of each, in panel order.
func (c *Coordinator) extractInsights(results map[string]*Verdict) (strengths, concerns []string) {
	strengths = make([]string, 0, insightLimit)
	concerns = make([]string, 0, insightLimit)

	for _, agent := range c.agents {
		name := agent.Role().Name
		verdict := results[name]
		if verdict == nil || verdict.IsError() {
			continue
		}

		switch {
		case verdict.Score >= 70 && len(strengths) < insightLimit:
			strengths = append(strengths, fmt.Sprintf("%s: %s...", name, clipRunes(verdict.Reasoning, 100)))
		case verdict.Score < 40 && len(concerns) < insightLimit:
			concerns = append(concerns, fmt.Sprintf("%s: %s...", name, clipRunes(verdict.Reasoning, 100)))
		}
	}
	return strengths, concerns
}

func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// progressTracker holds the shared per-role progress map. Updates, snapshot
// copies, and the callback happen under one lock so observers always see
// complete snapshots in update order, and a late low value can never move a
// role backwards.
type progressTracker struct {
	mu       sync.Mutex
	progress map[string]float64
	onUpdate func(map[string]float64)
}

func newProgressTracker(roles []Role, onUpdate func(map[string]float64)) *progressTracker {
	progress := make(map[string]float64, len(roles))
	for _, role := range roles {
		progress[role.Name] = 0.0
	}
	return &progressTracker{
		progress: progress,
		onUpdate: onUpdate,
	}
}

func (t *progressTracker) update(role string, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if value < t.progress[role] {
		return
	}
	t.progress[role] = value

	if t.onUpdate != nil {
		t.onUpdate(t.snapshotLocked())
	}
}

func (t *progressTracker) snapshotLocked() map[string]float64 {
	snapshot := make(map[string]float64, len(t.progress))
	for role, value := range t.progress {
		snapshot[role] = value
	}
	return snapshot
}
