package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/agent"
	"github.com/verityai/caseflow/internal/chat"
	"github.com/verityai/caseflow/internal/domain"
)

type CreateSessionInput struct {
	Body struct {
		AgentID string `json:"agent_id,omitempty" doc:"Bind the session to one agent; empty routes per turn"`
	}
}

type CreateSessionOutput struct {
	Body *domain.Session
}

type ListSessionsOutput struct {
	Body []*domain.Session
}

type SessionPathInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type SendMessageInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		Message string `json:"message" minLength:"1" doc:"User message text"`
	}
}

type SendMessageOutput struct {
	Body *chat.TurnResult
}

type GetMessagesOutput struct {
	Body []*domain.Message
}

type SetPromptInput struct {
	ID   uuid.UUID `path:"id" doc:"Session ID"`
	Body struct {
		Prompt string `json:"prompt" doc:"Per-session instruction override"`
	}
}

type GetPromptOutput struct {
	Body struct {
		Prompt string `json:"prompt"`
	}
}

func RegisterChatRoutes(api huma.API, svc ChatService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-chat-session",
		Method:      http.MethodPost,
		Path:        "/chat/sessions",
		Summary:     "Create a chat session",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *CreateSessionInput) (*CreateSessionOutput, error) {
		s, err := svc.CreateSession(input.Body.AgentID)
		if err != nil {
			if errors.Is(err, agent.ErrUnknownAgent) {
				return nil, huma.Error400BadRequest("unknown agent: " + input.Body.AgentID)
			}
			return nil, huma.Error500InternalServerError("failed to create session", err)
		}
		return &CreateSessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-chat-sessions",
		Method:      http.MethodGet,
		Path:        "/chat/sessions",
		Summary:     "List chat sessions",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, _ *struct{}) (*ListSessionsOutput, error) {
		return &ListSessionsOutput{Body: svc.ListSessions()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-chat-session",
		Method:      http.MethodDelete,
		Path:        "/chat/sessions/{id}",
		Summary:     "Delete a chat session and its messages",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *SessionPathInput) (*struct{}, error) {
		if err := svc.DeleteSession(input.ID); err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete session", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-chat-message",
		Method:      http.MethodPost,
		Path:        "/chat/sessions/{id}/messages",
		Summary:     "Send a message and wait for the full turn result",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *SendMessageInput) (*SendMessageOutput, error) {
		result, err := svc.SendMessageSync(ctx, input.ID, input.Body.Message)
		if err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error502BadGateway("turn failed", err)
		}
		return &SendMessageOutput{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-chat-messages",
		Method:      http.MethodGet,
		Path:        "/chat/sessions/{id}/messages",
		Summary:     "Get session history in send order",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *SessionPathInput) (*GetMessagesOutput, error) {
		msgs, err := svc.Messages(input.ID)
		if err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to get messages", err)
		}
		return &GetMessagesOutput{Body: msgs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-session-prompt",
		Method:      http.MethodPut,
		Path:        "/chat/sessions/{id}/prompt",
		Summary:     "Set the per-session instruction override",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *SetPromptInput) (*struct{}, error) {
		if err := svc.SetPrompt(input.ID, input.Body.Prompt); err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to set prompt", err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session-prompt",
		Method:      http.MethodGet,
		Path:        "/chat/sessions/{id}/prompt",
		Summary:     "Get the per-session instruction override",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *SessionPathInput) (*GetPromptOutput, error) {
		prompt, err := svc.Prompt(input.ID)
		if err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to get prompt", err)
		}
		out := &GetPromptOutput{}
		out.Body.Prompt = prompt
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-session-prompt",
		Method:      http.MethodDelete,
		Path:        "/chat/sessions/{id}/prompt",
		Summary:     "Reset the per-session instruction override",
		Tags:        []string{"Chat"},
	}, func(_ context.Context, input *SessionPathInput) (*struct{}, error) {
		if err := svc.ResetPrompt(input.ID); err != nil {
			if errors.Is(err, chat.ErrSessionNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to reset prompt", err)
		}
		return nil, nil
	})
}
