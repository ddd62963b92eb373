package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/status"
)

// ---------------------------------------------------------------------------
// Mock ChatService
// ---------------------------------------------------------------------------

type mockChatService struct {
	createSessionFunc   func(agentID string) (*domain.Session, error)
	listSessionsFunc    func() []*domain.Session
	deleteSessionFunc   func(id uuid.UUID) error
	messagesFunc        func(id uuid.UUID) ([]*domain.Message, error)
	setPromptFunc       func(id uuid.UUID, prompt string) error
	promptFunc          func(id uuid.UUID) (string, error)
	resetPromptFunc     func(id uuid.UUID) error
	sendMessageSyncFunc func(ctx context.Context, id uuid.UUID, text string) (*chat.TurnResult, error)
}

func (m *mockChatService) CreateSession(agentID string) (*domain.Session, error) {
	return m.createSessionFunc(agentID)
}

func (m *mockChatService) ListSessions() []*domain.Session { return m.listSessionsFunc() }

func (m *mockChatService) DeleteSession(id uuid.UUID) error { return m.deleteSessionFunc(id) }

func (m *mockChatService) Messages(id uuid.UUID) ([]*domain.Message, error) {
	return m.messagesFunc(id)
}

func (m *mockChatService) SetPrompt(id uuid.UUID, prompt string) error {
	return m.setPromptFunc(id, prompt)
}

func (m *mockChatService) Prompt(id uuid.UUID) (string, error) { return m.promptFunc(id) }

func (m *mockChatService) ResetPrompt(id uuid.UUID) error { return m.resetPromptFunc(id) }

func (m *mockChatService) SendMessageSync(ctx context.Context, id uuid.UUID, text string) (*chat.TurnResult, error) {
	return m.sendMessageSyncFunc(ctx, id, text)
}

// ---------------------------------------------------------------------------
// Mock StatusService
// ---------------------------------------------------------------------------

type mockStatusService struct {
	statusFunc func(ctx context.Context, entityID uuid.UUID) (*status.Snapshot, error)
}

func (m *mockStatusService) Status(ctx context.Context, entityID uuid.UUID) (*status.Snapshot, error) {
	return m.statusFunc(ctx, entityID)
}

// ---------------------------------------------------------------------------
// Mock ReviewService
// ---------------------------------------------------------------------------

type mockReviewService struct {
	submitActionFunc func(ctx context.Context, entityID uuid.UUID, reviewerName, action, comment string) (domain.EntityStatus, error)
	askQuestionFunc  func(ctx context.Context, entityID uuid.UUID, reviewerName, question string) (string, error)
}

func (m *mockReviewService) SubmitAction(ctx context.Context, entityID uuid.UUID, reviewerName, action, comment string) (domain.EntityStatus, error) {
	return m.submitActionFunc(ctx, entityID, reviewerName, action, comment)
}

func (m *mockReviewService) AskQuestion(ctx context.Context, entityID uuid.UUID, reviewerName, question string) (string, error) {
	return m.askQuestionFunc(ctx, entityID, reviewerName, question)
}

// ---------------------------------------------------------------------------
// Mock EntityRepository
// ---------------------------------------------------------------------------

type mockEntityRepo struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Entity, error)
}

func (m *mockEntityRepo) Create(context.Context, *domain.Entity) error { return nil }

func (m *mockEntityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockEntityRepo) UpdateStatus(context.Context, uuid.UUID, domain.EntityStatus) error {
	return nil
}
