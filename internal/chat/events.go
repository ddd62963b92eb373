package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/verityai/caseflow/internal/domain"
)

// ErrUnknownEvent is returned when a frame carries a type outside the closed
// protocol set. Unknown frames are malformed, never silently accepted.
var ErrUnknownEvent = errors.New("chat: unknown event type") //nolint:gochecknoglobals // sentinel error

// EventType discriminates chat stream frames.
type EventType string

const (
	EventTextDelta     EventType = "text_delta"
	EventTextReplace   EventType = "text_replace"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventAgentResolved EventType = "agent_resolved"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Usage reports upstream token accounting for a completed turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Event is one frame of the server-to-client chat stream. The Type field
// selects which of the optional fields are meaningful; use the constructors
// below rather than filling the struct by hand.
type Event struct {
	Type EventType `json:"type"`

	// text_delta / text_replace
	Delta string `json:"delta,omitempty"`
	Text  string `json:"text,omitempty"`

	// tool_call / tool_result
	Name   string                `json:"name,omitempty"`
	Server string                `json:"server,omitempty"`
	Status domain.ToolCallStatus `json:"status,omitempty"`

	// agent_resolved / done
	AgentID          string                   `json:"agent_id,omitempty"`
	SuggestedActions []domain.SuggestedAction `json:"suggested_actions,omitempty"`
	ToolCalls        []domain.ToolCallInfo    `json:"tool_calls,omitempty"`
	Usage            *Usage                   `json:"usage,omitempty"`
	ModelID          string                   `json:"model_id,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// Terminal reports whether no further frames follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func NewTextDelta(delta string) Event {
	return Event{Type: EventTextDelta, Delta: delta}
}

func NewTextReplace(text string) Event {
	return Event{Type: EventTextReplace, Text: text}
}

func NewToolCall(name, server string) Event {
	return Event{Type: EventToolCall, Name: name, Server: server}
}

func NewToolResult(name string, status domain.ToolCallStatus) Event {
	return Event{Type: EventToolResult, Name: name, Status: status}
}

func NewAgentResolved(agentID string) Event {
	return Event{Type: EventAgentResolved, AgentID: agentID}
}

func NewDone(agentID string, actions []domain.SuggestedAction, tools []domain.ToolCallInfo, usage Usage, modelID string) Event {
	return Event{
		Type:             EventDone,
		AgentID:          agentID,
		SuggestedActions: actions,
		ToolCalls:        tools,
		Usage:            &usage,
		ModelID:          modelID,
	}
}

func NewError(message string) Event {
	return Event{Type: EventError, Message: message}
}

// DecodeEvent parses a wire frame. The type set is closed: a frame whose
// discriminator is not one of the protocol constants is rejected with
// ErrUnknownEvent so consumers can skip it as malformed.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("chat.DecodeEvent: %w", err)
	}

	switch ev.Type {
	case EventTextDelta, EventTextReplace, EventToolCall, EventToolResult,
		EventAgentResolved, EventDone, EventError:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("chat.DecodeEvent(%q): %w", ev.Type, ErrUnknownEvent)
	}
}
