package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shoplab-ai/shoplab/message"
	"github.com/shoplab-ai/shoplab/product"
	"github.com/shoplab-ai/shoplab/provider"
	"github.com/shoplab-ai/shoplab/tool"
)

// clientFunc adapts a function to provider.Client for tests.
type clientFunc func(ctx context.Context, req *provider.Request) (*provider.Response, error)

func (f clientFunc) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	return f(ctx, req)
}

func textResponse(content string) *provider.Response {
	return &provider.Response{Message: message.NewMessage(message.RoleAssistant, content)}
}

func toolCallResponse(call message.ToolCall) *provider.Response {
	msg := message.NewMessage(message.RoleAssistant, "")
	msg.ToolCalls = []message.ToolCall{call}
	return &provider.Response{Message: msg}
}

func testRole(name string) Role {
	return Role{
		Name:         name,
		Emoji:        "🧪",
		Description:  "test role",
		SystemPrompt: "You are a test evaluator.",
		Weight:       0.25,
		BuildPrompt: func(p product.Attributes) string {
			return "analyze " + p.Name
		},
	}
}

func testProduct() product.Attributes {
	return product.Attributes{Name: "Test Widget", Brand: "Acme", Price: 9.99}
}

func TestAnalyzeParsesJSONVerdict(t *testing.T) {
	client := clientFunc(func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		if !req.JSONOnly {
			t.Error("initial completion should request JSON output")
		}
		return textResponse(`{"score": 88, "recommendation": "buy", "reasoning": "good", "confidence": 92}`), nil
	})

	agent := NewAgent(testRole("Tester"), client, nil)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if verdict.Score != 88 || verdict.Recommendation != RecommendBuy || verdict.Confidence != 92 {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
	if verdict.Details == nil {
		t.Error("details map should be initialized")
	}
}

func TestAnalyzeReportsProgressCheckpoints(t *testing.T) {
	client := clientFunc(func(context.Context, *provider.Request) (*provider.Response, error) {
		return textResponse(`{"score": 50, "recommendation": "neutral", "reasoning": "ok", "confidence": 70}`), nil
	})

	var mu sync.Mutex
	var points []float64
	agent := NewAgent(testRole("Tester"), client, nil)
	agent.Analyze(context.Background(), testProduct(), func(p float64) {
		mu.Lock()
		points = append(points, p)
		mu.Unlock()
	})

	want := []float64{0.1, 0.3, 0.7, 1.0}
	if len(points) != len(want) {
		t.Fatalf("progress points = %v, want %v", points, want)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, points[i], want[i])
		}
	}
}

func TestAnalyzeProviderErrorYieldsErrorVerdict(t *testing.T) {
	client := clientFunc(func(context.Context, *provider.Request) (*provider.Response, error) {
		return nil, errors.New("upstream unavailable")
	})

	agent := NewAgent(testRole("Tester"), client, nil)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if !verdict.IsError() {
		t.Fatalf("expected error verdict, got %+v", verdict)
	}
	if verdict.Score != 0 || verdict.Confidence != 0 {
		t.Errorf("error verdict should zero score and confidence: %+v", verdict)
	}
	if !strings.Contains(verdict.Reasoning, "upstream unavailable") {
		t.Errorf("reasoning should carry the error: %q", verdict.Reasoning)
	}
}

func TestAnalyzeFallsBackToLooseParsing(t *testing.T) {
	client := clientFunc(func(context.Context, *provider.Request) (*provider.Response, error) {
		return textResponse("SCORE: 81\nGreat value for the price."), nil
	})

	agent := NewAgent(testRole("Tester"), client, nil)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if verdict.Score != 81 || verdict.Recommendation != RecommendBuy {
		t.Errorf("unexpected fallback verdict: %+v", verdict)
	}
	if verdict.Confidence != fallbackConfidence {
		t.Errorf("fallback confidence = %d, want %d", verdict.Confidence, fallbackConfidence)
	}
}

func TestAnalyzeExecutesToolCall(t *testing.T) {
	registry := tool.NewRegistry()
	var toolArgs map[string]any
	if err := registry.Register(&tool.Tool{
		Name:        "web_search",
		Description: "search",
		ResultKey:   "search_results",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Description: "q", Required: true},
		},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			toolArgs = args
			return "top hit: widgets are cheap", nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	var calls int
	client := clientFunc(func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		calls++
		switch calls {
		case 1:
			if len(req.Tools) != 1 {
				t.Errorf("initial request should declare tools, got %d", len(req.Tools))
			}
			return toolCallResponse(message.ToolCall{
				ID:   "call-1",
				Name: "web_search",
				Args: map[string]any{"query": "widget price"},
			}), nil
		case 2:
			if len(req.Tools) != 0 {
				t.Error("follow-up request must not declare tools")
			}
			var sawToolResult bool
			for _, msg := range req.Messages {
				if msg.Role == message.RoleTool && strings.Contains(msg.Content, "widgets are cheap") {
					sawToolResult = true
				}
			}
			if !sawToolResult {
				t.Error("follow-up conversation missing tool result message")
			}
			return textResponse(`{"score": 75, "recommendation": "buy", "reasoning": "cheap", "confidence": 85}`), nil
		default:
			return nil, fmt.Errorf("unexpected call %d", calls)
		}
	})

	agent := NewAgent(testRole("Tester"), client, registry)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if calls != 2 {
		t.Errorf("expected exactly one follow-up completion, got %d calls", calls)
	}
	if toolArgs["query"] != "widget price" {
		t.Errorf("tool received args %v", toolArgs)
	}
	if verdict.Score != 75 || verdict.Recommendation != RecommendBuy {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
	if verdict.SearchResults != "top hit: widgets are cheap" {
		t.Errorf("tool output not attached: %q", verdict.SearchResults)
	}
}

func TestAnalyzeAttachesIngredientData(t *testing.T) {
	registry := tool.NewRegistry()
	if err := registry.Register(&tool.Tool{
		Name:      "lookup_product_ingredients",
		ResultKey: "ingredient_data",
		Parameters: []tool.Parameter{
			{Name: "product_name", Type: "string", Required: true},
		},
		Handler: func(context.Context, map[string]any) (string, error) {
			return "Ingredients: water, sugar", nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	var calls int
	client := clientFunc(func(_ context.Context, req *provider.Request) (*provider.Response, error) {
		calls++
		if calls == 1 {
			return toolCallResponse(message.ToolCall{
				ID:   "call-1",
				Name: "lookup_product_ingredients",
				Args: map[string]any{"product_name": "Test Widget"},
			}), nil
		}
		return textResponse(`{"score": 60, "recommendation": "neutral", "reasoning": "mostly fine", "confidence": 65}`), nil
	})

	agent := NewAgent(testRole(RoleIngredientSafety), client, registry)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if verdict.IngredientData != "Ingredients: water, sugar" {
		t.Errorf("ingredient data not attached: %+v", verdict)
	}
	if verdict.SearchResults != "" {
		t.Errorf("search results should be empty: %q", verdict.SearchResults)
	}
}

func TestAnalyzeUnknownToolFallsBackToFirstResponse(t *testing.T) {
	client := clientFunc(func(context.Context, *provider.Request) (*provider.Response, error) {
		msg := message.NewMessage(message.RoleAssistant, "score: 65 based on partial data")
		msg.ToolCalls = []message.ToolCall{{ID: "x", Name: "no_such_tool", Args: map[string]any{}}}
		return &provider.Response{Message: msg}, nil
	})

	agent := NewAgent(testRole("Tester"), client, tool.NewRegistry())
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if verdict.Score != 65 || verdict.Recommendation != RecommendNeutral {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
}

func TestAnalyzeFollowUpDecodeFailureIsError(t *testing.T) {
	registry := tool.NewRegistry()
	if err := registry.Register(&tool.Tool{
		Name:      "web_search",
		ResultKey: "search_results",
		Parameters: []tool.Parameter{
			{Name: "query", Type: "string", Required: true},
		},
		Handler: func(context.Context, map[string]any) (string, error) {
			return "results", nil
		},
	}); err != nil {
		t.Fatal(err)
	}

	var calls int
	client := clientFunc(func(context.Context, *provider.Request) (*provider.Response, error) {
		calls++
		if calls == 1 {
			return toolCallResponse(message.ToolCall{
				ID: "c1", Name: "web_search", Args: map[string]any{"query": "q"},
			}), nil
		}
		return textResponse("not json at all"), nil
	})

	agent := NewAgent(testRole("Tester"), client, registry)
	verdict := agent.Analyze(context.Background(), testProduct(), nil)

	if !verdict.IsError() {
		t.Errorf("expected error verdict when follow-up is unparseable, got %+v", verdict)
	}
}
