package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/status"
)

type EntityPathInput struct {
	ID uuid.UUID `path:"id" doc:"Entity ID"`
}

type GetStatusOutput struct {
	Body *status.Snapshot
}

type GetEntityOutput struct {
	Body *domain.Entity
}

func RegisterStatusRoutes(api huma.API, svc StatusService, entities domain.EntityRepository) {
	huma.Register(api, huma.Operation{
		OperationID: "get-entity",
		Method:      http.MethodGet,
		Path:        "/entities/{id}",
		Summary:     "Get an entity record",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, input *EntityPathInput) (*GetEntityOutput, error) {
		e, err := entities.GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("entity not found")
			}
			return nil, huma.Error500InternalServerError("failed to get entity", err)
		}
		return &GetEntityOutput{Body: e}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-entity-status",
		Method:      http.MethodGet,
		Path:        "/entities/{id}/status",
		Summary:     "Get the processing status snapshot for an entity",
		Description: "Poll target. Clients poll while status is processing and stop on any terminal status.",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, input *EntityPathInput) (*GetStatusOutput, error) {
		snap, err := svc.Status(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("entity not found")
			}
			return nil, huma.Error500InternalServerError("failed to get status", err)
		}
		return &GetStatusOutput{Body: snap}, nil
	})
}
