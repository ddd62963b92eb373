package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityai/caseflow/internal/domain"
)

type StepRepo struct {
	pool *pgxpool.Pool
}

func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

func (r *StepRepo) Append(ctx context.Context, step *domain.ProcessingStep) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO processing_steps (id, entity_id, name, agent, status, duration_ms, output, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		step.ID, step.EntityID, step.Name, step.Agent, step.Status,
		step.DurationMS, step.Output, step.Error, step.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("stepRepo.Append: %w", err)
	}

	return nil
}

func (r *StepRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*domain.ProcessingStep, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, entity_id, name, agent, status, duration_ms, output, error, created_at
		 FROM processing_steps WHERE entity_id = $1
		 ORDER BY created_at
		 LIMIT 1000`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("stepRepo.ListByEntity: %w", err)
	}
	defer rows.Close()

	var steps []*domain.ProcessingStep
	for rows.Next() {
		var s domain.ProcessingStep
		if err := rows.Scan(
			&s.ID, &s.EntityID, &s.Name, &s.Agent, &s.Status,
			&s.DurationMS, &s.Output, &s.Error, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("stepRepo.ListByEntity: scan: %w", err)
		}
		steps = append(steps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stepRepo.ListByEntity: rows: %w", err)
	}

	return steps, nil
}
