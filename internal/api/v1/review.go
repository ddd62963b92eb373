package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/domain"
)

type SubmitActionInput struct {
	ID   uuid.UUID `path:"id" doc:"Entity ID"`
	Body struct {
		Action       string `json:"action" minLength:"1" doc:"approve, reject, or free-form"`
		Comment      string `json:"comment,omitempty" doc:"Optional reviewer comment"`
		ReviewerName string `json:"reviewer_name" minLength:"1" doc:"Acting reviewer"`
	}
}

type SubmitActionOutput struct {
	Body struct {
		NewStatus domain.EntityStatus `json:"new_status"`
		Action    string              `json:"action"`
		Timestamp time.Time           `json:"timestamp"`
	}
}

type AskQuestionInput struct {
	ID   uuid.UUID `path:"id" doc:"Entity ID"`
	Body struct {
		Question     string `json:"question" minLength:"1" doc:"Question for the specialist agent"`
		ReviewerName string `json:"reviewer_name" minLength:"1" doc:"Asking reviewer"`
	}
}

type AskQuestionOutput struct {
	Body struct {
		Answer    string    `json:"answer"`
		Timestamp time.Time `json:"timestamp"`
	}
}

// RegisterReviewRoutes exposes the request/response alternates to the review
// room frames. The action call is the single server-side persist-then-notify
// operation; there is no separate client-issued broadcast.
func RegisterReviewRoutes(api huma.API, svc ReviewService) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-review-action",
		Method:      http.MethodPost,
		Path:        "/entities/{id}/review/actions",
		Summary:     "Submit a review decision",
		Tags:        []string{"Review"},
	}, func(ctx context.Context, input *SubmitActionInput) (*SubmitActionOutput, error) {
		newStatus, err := svc.SubmitAction(ctx, input.ID, input.Body.ReviewerName, input.Body.Action, input.Body.Comment)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("entity not found")
			}
			return nil, huma.Error500InternalServerError("failed to record action", err)
		}

		out := &SubmitActionOutput{}
		out.Body.NewStatus = newStatus
		out.Body.Action = input.Body.Action
		out.Body.Timestamp = time.Now()
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ask-review-question",
		Method:      http.MethodPost,
		Path:        "/entities/{id}/review/questions",
		Summary:     "Ask the specialist agent a question about an entity",
		Tags:        []string{"Review"},
	}, func(ctx context.Context, input *AskQuestionInput) (*AskQuestionOutput, error) {
		answer, err := svc.AskQuestion(ctx, input.ID, input.Body.ReviewerName, input.Body.Question)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("entity not found")
			}
			return nil, huma.Error502BadGateway("question failed", err)
		}

		out := &AskQuestionOutput{}
		out.Body.Answer = answer
		out.Body.Timestamp = time.Now()
		return out, nil
	})
}
