package evaluation

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shoplab-ai/shoplab/message"
	"github.com/shoplab-ai/shoplab/pkg/logging"
	"github.com/shoplab-ai/shoplab/pkg/telemetry"
	"github.com/shoplab-ai/shoplab/product"
	"github.com/shoplab-ai/shoplab/provider"
	"github.com/shoplab-ai/shoplab/tool"
)

const responseFormatInstruction = "IMPORTANT: Respond in valid JSON format with keys: score (0-100), recommendation (buy/neutral/avoid), reasoning (string), confidence (0-100). If you need to search the web or look up ingredients, use the available function tools."

// Agent is one role-specialized evaluator. It never fails outward: every
// path through Analyze produces a Verdict, with failures encoded as the
// error verdict.
type Agent struct {
	role   Role
	client provider.Client
	tools  *tool.Registry
	logger *slog.Logger
	tracer trace.Tracer
}

// NewAgent creates an agent for the given role. The registry may be nil when
// the role needs no tools.
func NewAgent(role Role, client provider.Client, tools *tool.Registry) *Agent {
	if tools == nil {
		tools = tool.NewRegistry()
	}
	return &Agent{
		role:   role,
		client: client,
		tools:  tools,
		logger: logging.WithComponent("agent").With("role", role.Name),
		tracer: telemetry.Tracer("shoplab/evaluation"),
	}
}

// Role returns the agent's role definition.
func (a *Agent) Role() Role {
	return a.role
}

// Analyze evaluates the product from this role's perspective. Progress is
// reported at fixed checkpoints (0.1, 0.3, 0.7, 1.0); onProgress may be nil.
func (a *Agent) Analyze(ctx context.Context, attrs product.Attributes, onProgress func(float64)) *Verdict {
	ctx, span := a.tracer.Start(ctx, "agent.analyze",
		trace.WithAttributes(attribute.String("agent.role", a.role.Name)))

	verdict := a.analyze(ctx, attrs, onProgress)

	if verdict.IsError() {
		a.logger.Warn("analysis failed", "reasoning", verdict.Reasoning)
		telemetry.End(span, fmt.Errorf("%s", verdict.Reasoning))
	} else {
		a.logger.Info("analysis complete",
			"score", verdict.Score, "recommendation", verdict.Recommendation)
		telemetry.End(span, nil)
	}
	return verdict
}

func (a *Agent) analyze(ctx context.Context, attrs product.Attributes, onProgress func(float64)) *Verdict {
	report := func(p float64) {
		if onProgress != nil {
			onProgress(p)
		}
	}

	report(0.1)
	prompt := a.role.BuildPrompt(attrs)
	report(0.3)

	messages := []*message.Message{
		message.NewMessage(message.RoleSystem, a.role.SystemPrompt+"\n\n"+responseFormatInstruction),
		message.NewMessage(message.RoleUser, prompt),
	}

	resp, err := a.client.Generate(ctx, &provider.Request{
		Messages: messages,
		Tools:    a.tools.ToJSONSchemas(),
		JSONOnly: true,
	})
	if err != nil {
		return errorVerdict(err)
	}
	report(0.7)

	reply := resp.Message
	var verdict *Verdict

	if reply.HasToolCalls() {
		for _, call := range reply.ToolCalls {
			registered, err := a.tools.Get(call.Name)
			if err != nil {
				// The model invented a tool; salvage what the first
				// response already says.
				verdict = parseLooseVerdict(reply.Text())
				continue
			}

			verdict, err = a.runToolCall(ctx, messages, call, registered)
			if err != nil {
				return errorVerdict(err)
			}
		}
	} else {
		verdict, err = decodeVerdict(reply.Text())
		if err != nil {
			verdict = parseLooseVerdict(reply.Text())
		}
	}

	if verdict.Details == nil {
		verdict.Details = make(map[string]any)
	}
	report(1.0)
	return verdict
}

// runToolCall executes one requested tool and asks the model for its final
// verdict with the tool output in context. The follow-up completion carries
// no tool declarations, so the conversation cannot loop.
func (a *Agent) runToolCall(ctx context.Context, base []*message.Message, call message.ToolCall, registered *tool.Tool) (*Verdict, error) {
	a.logger.Info("executing tool", "tool", call.Name)

	output, err := registered.Execute(ctx, call.Args)
	if err != nil {
		// Adapters report their own failures as text; this only
		// triggers on malformed arguments.
		output = fmt.Sprintf("Tool %s failed: %v", call.Name, err)
	}

	assistantMsg := message.NewMessage(message.RoleAssistant, "")
	assistantMsg.ToolCalls = []message.ToolCall{call}

	followUp := make([]*message.Message, 0, len(base)+2)
	followUp = append(followUp, base...)
	followUp = append(followUp, assistantMsg, message.NewToolResponseMessage(call.ID, output))

	resp, err := a.client.Generate(ctx, &provider.Request{
		Messages: followUp,
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	verdict, err := decodeVerdict(resp.Message.Text())
	if err != nil {
		return nil, err
	}

	verdict.attachToolOutput(registered.ResultKey, output)
	return verdict, nil
}

func errorVerdict(err error) *Verdict {
	return &Verdict{
		Score:          0,
		Recommendation: RecommendError,
		Reasoning:      fmt.Sprintf("Error during analysis: %v", err),
		Confidence:     0,
		Details:        make(map[string]any),
	}
}
