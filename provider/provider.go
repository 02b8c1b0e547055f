// Package provider defines the completion client contract the evaluation
// agents speak. Implementations live in subpackages, one per vendor SDK.
package provider

import (
	"context"

	"github.com/shoplab-ai/shoplab/message"
)

// Request is a single completion request. JSONOnly asks the vendor for a
// JSON-object response where the API supports it; vendors without a native
// JSON mode approximate it through the system prompt.
type Request struct {
	Messages []*message.Message
	Tools    []map[string]any
	JSONOnly bool
}

// Response wraps the assistant message produced by the vendor.
type Response struct {
	Message *message.Message
}

// Client generates completions.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}
