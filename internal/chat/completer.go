package chat

import (
	"context"

	"github.com/verityai/caseflow/internal/domain"
)

// CompletionKind categorizes upstream completion stream events.
type CompletionKind string

const (
	CompletionDelta      CompletionKind = "delta"
	CompletionReplace    CompletionKind = "replace"
	CompletionToolCall   CompletionKind = "tool_call"
	CompletionToolResult CompletionKind = "tool_result"
	CompletionFinal      CompletionKind = "final"
)

// CompletionEvent is one event from the upstream agent backend. A non-nil Err
// is terminal; the channel closes after it.
type CompletionEvent struct {
	Kind CompletionKind

	Delta string // delta
	Text  string // replace

	ToolName   string
	ToolServer string
	ToolStatus domain.ToolCallStatus
	ToolOutput string
	ToolError  string

	Final *CompletionResult

	Err error
}

// CompletionResult is the finalized structured payload of a turn.
type CompletionResult struct {
	Text             string
	SuggestedActions []domain.SuggestedAction
	ToolCalls        []domain.ToolCallInfo
	Usage            Usage
	ModelID          string
}

// CompletionRequest carries one turn to the upstream backend.
type CompletionRequest struct {
	Agent        *domain.AgentDescriptor
	History      []*domain.Message
	Text         string
	SystemPrompt string // agent default, possibly overridden per session
	Tools        []string
}

// Completer is the external LLM/tool-execution backend. The returned channel
// is closed by the implementation when the stream ends for any reason;
// cancelling ctx must stop the upstream call.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (<-chan CompletionEvent, error)
}
