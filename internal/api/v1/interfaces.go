package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/status"
)

// ChatService is the orchestrator surface the chat handlers consume.
type ChatService interface {
	CreateSession(agentID string) (*domain.Session, error)
	ListSessions() []*domain.Session
	DeleteSession(id uuid.UUID) error
	Messages(id uuid.UUID) ([]*domain.Message, error)
	SetPrompt(id uuid.UUID, prompt string) error
	Prompt(id uuid.UUID) (string, error)
	ResetPrompt(id uuid.UUID) error
	SendMessageSync(ctx context.Context, id uuid.UUID, text string) (*chat.TurnResult, error)
}

// StatusService is the processing-status read projection.
type StatusService interface {
	Status(ctx context.Context, entityID uuid.UUID) (*status.Snapshot, error)
}

// ReviewService is the room-manager surface for the REST review calls.
type ReviewService interface {
	SubmitAction(ctx context.Context, entityID uuid.UUID, reviewerName, action, comment string) (domain.EntityStatus, error)
	AskQuestion(ctx context.Context, entityID uuid.UUID, reviewerName, question string) (string, error)
}
