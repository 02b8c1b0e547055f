// Package anthropic implements the provider.Client interface on the official
// Anthropic SDK. Claude has no native JSON response mode, so JSONOnly requests
// are enforced through the system prompt instead.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/shoplab-ai/shoplab/message"
	"github.com/shoplab-ai/shoplab/provider"
)

const jsonOnlyInstruction = "Respond with a single valid JSON object and nothing else."

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

// Provider implements provider.Client for Claude
type Provider struct {
	config *Config
	client anthropic.Client
}

var _ provider.Client = (*Provider)(nil)

// New creates a new Claude provider using official SDK
func New(config *Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements provider.Client
func (p *Provider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	// System messages go into the dedicated system field; tool results are
	// flattened into user turns since the conversation is rebuilt per request.
	var systemPrompts []string
	conversationMessages := make([]anthropic.MessageParam, 0, len(req.Messages))

	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser:
			conversationMessages = append(conversationMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			text := msg.Content
			if text == "" && msg.HasToolCalls() {
				text = describeToolCalls(msg.ToolCalls)
			}
			conversationMessages = append(conversationMessages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(text)))
		case message.RoleTool:
			conversationMessages = append(conversationMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock("Tool result:\n"+msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  conversationMessages,
		MaxTokens: p.config.MaxTokens,
	}

	if req.JSONOnly {
		systemPrompts = append(systemPrompts, jsonOnlyInstruction)
	}
	if len(systemPrompts) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(systemPrompts, "\n")},
		}
	}

	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	if len(req.Tools) > 0 {
		claudeTools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			toolParam, err := convertTool(t)
			if err != nil {
				return nil, err
			}
			claudeTools = append(claudeTools, anthropic.ToolUnionParam{OfTool: toolParam})
		}
		params.Tools = claudeTools
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var responseText string
	toolCalls := make([]message.ToolCall, 0)

	for _, content := range apiMessage.Content {
		switch content.Type {
		case "text":
			responseText = content.Text
		case "tool_use":
			var args map[string]any
			if err := json.Unmarshal(content.Input, &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool input: %w", err)
			}

			toolCalls = append(toolCalls, message.ToolCall{
				ID:   content.ID,
				Name: content.Name,
				Args: args,
			})
		}
	}

	responseMsg := message.NewMessage(message.RoleAssistant, responseText)
	if len(toolCalls) > 0 {
		responseMsg.ToolCalls = toolCalls
	}

	return &provider.Response{Message: responseMsg}, nil
}

// convertTool unwraps the OpenAI-shaped {"type":"function","function":{...}}
// schema the registry emits into Claude's flat tool format.
func convertTool(schema map[string]any) (*anthropic.ToolParam, error) {
	fn, ok := schema["function"].(map[string]any)
	if !ok {
		fn = schema
	}

	fnJSON, err := json.Marshal(map[string]any{
		"name":         fn["name"],
		"description":  fn["description"],
		"input_schema": fn["parameters"],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool: %w", err)
	}

	var toolParam anthropic.ToolParam
	if err := json.Unmarshal(fnJSON, &toolParam); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool param: %w", err)
	}
	return &toolParam, nil
}

func describeToolCalls(calls []message.ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, tc := range calls {
		names = append(names, tc.Name)
	}
	return "Calling tools: " + strings.Join(names, ", ")
}
