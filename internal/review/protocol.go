package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/domain"
)

// ErrUnknownFrame is returned when an inbound frame carries a type outside
// the closed client vocabulary. The room skips such frames; it never
// terminates a connection over one bad frame.
var ErrUnknownFrame = errors.New("review: unknown frame type") //nolint:gochecknoglobals // sentinel error

// ErrBadFrame is returned when a known frame type is missing its payload.
var ErrBadFrame = errors.New("review: bad frame") //nolint:gochecknoglobals // sentinel error

// FrameType discriminates review-room wire frames.
type FrameType string

// Server-to-client frames.
const (
	FrameConnected            FrameType = "connected"
	FrameReviewerJoined       FrameType = "reviewer_joined"
	FrameReviewerLeft         FrameType = "reviewer_left"
	FrameChatMessage          FrameType = "chat_message"
	FrameClaimUpdated         FrameType = "claim_updated"
	FrameQAExchange           FrameType = "qa_exchange"
	FrameManualReviewRequired FrameType = "manual_review_required"
	FramePong                 FrameType = "pong"
	FrameError                FrameType = "error"
)

// Client-to-server frames.
const (
	FrameChat     FrameType = "chat"
	FrameAction   FrameType = "action"
	FrameQuestion FrameType = "question"
	FramePing     FrameType = "ping"
)

// Reviewer is the presence record of one connected reviewer. Ephemeral:
// exists only while the connection is up.
type Reviewer struct {
	ID       uuid.UUID `json:"reviewer_id"`
	Name     string    `json:"reviewer_name"`
	JoinedAt time.Time `json:"joined_at"`
}

// Frame is one review-room wire frame in either direction. The Type field
// selects which of the optional fields are meaningful.
type Frame struct {
	Type FrameType `json:"type"`

	// chat / question (inbound), chat_message / qa_exchange (outbound)
	Message string `json:"message,omitempty"`
	Answer  string `json:"answer,omitempty"`

	// action (inbound), claim_updated (outbound)
	Action    string              `json:"action,omitempty"`
	Comment   string              `json:"comment,omitempty"`
	NewStatus domain.EntityStatus `json:"new_status,omitempty"`

	// presence
	ActiveReviewers []Reviewer `json:"active_reviewers,omitempty"`
	ReviewerID      string     `json:"reviewer_id,omitempty"`
	ReviewerName    string     `json:"reviewer_name,omitempty"`

	// manual_review_required / error
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`

	Timestamp time.Time `json:"timestamp,omitzero"`
}

// DecodeClientFrame parses an inbound frame against the closed client
// vocabulary. Unknown types and missing payloads are rejected, never
// silently accepted.
func DecodeClientFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("review.DecodeClientFrame: %w", err)
	}

	switch f.Type {
	case FrameChat, FrameQuestion:
		if f.Message == "" {
			return Frame{}, fmt.Errorf("review.DecodeClientFrame(%q): empty message: %w", f.Type, ErrBadFrame)
		}
	case FrameAction:
		if f.Action == "" {
			return Frame{}, fmt.Errorf("review.DecodeClientFrame: empty action: %w", ErrBadFrame)
		}
	case FramePing:
		// no payload
	default:
		return Frame{}, fmt.Errorf("review.DecodeClientFrame(%q): %w", f.Type, ErrUnknownFrame)
	}

	return f, nil
}
