package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Session is a bound conversation context between one client and the chat
// orchestrator. Message history is append-only; conversation order is the
// append order.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	AgentID   string        `json:"agent_id,omitempty"` // bound agent, empty = route per turn
	Status    SessionStatus `json:"status"`
	Prompt    string        `json:"prompt,omitempty"` // per-session instruction override
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []*Message    `json:"messages,omitempty"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in a session's history. Immutable once appended.
type Message struct {
	ID               uuid.UUID         `json:"id"`
	Role             Role              `json:"role"`
	Content          string            `json:"content"`
	AgentID          string            `json:"agent_id,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
	ToolCalls        []ToolCallInfo    `json:"tool_calls,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// SuggestedAction is an advisory follow-up the client may re-submit as a new
// user action. It carries no side effect by itself.
type SuggestedAction struct {
	Label  string            `json:"label"`
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

type ToolCallStatus string

const (
	ToolCallRunning ToolCallStatus = "running"
	ToolCallOK      ToolCallStatus = "ok"
	ToolCallError   ToolCallStatus = "error"
)

// ToolCallInfo records one tool invocation inside a single assistant turn,
// in invocation order.
type ToolCallInfo struct {
	Name   string         `json:"name"`
	Server string         `json:"server,omitempty"`
	Status ToolCallStatus `json:"status"`
	Output string         `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// TurnRecord is an archived completed turn: the user message and the
// assistant message it produced, written out-of-band for audit.
type TurnRecord struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	AgentID     string    `json:"agent_id"`
	UserText    string    `json:"user_text"`
	Answer      string    `json:"answer"`
	ToolCalls   int       `json:"tool_calls"`
	CompletedAt time.Time `json:"completed_at"`
}

type TurnArchiveRepository interface {
	Append(ctx context.Context, rec *TurnRecord) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*TurnRecord, error)
}
