package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityai/caseflow/internal/domain"
)

type ReviewActionRepo struct {
	pool *pgxpool.Pool
}

func NewReviewActionRepo(pool *pgxpool.Pool) *ReviewActionRepo {
	return &ReviewActionRepo{pool: pool}
}

func (r *ReviewActionRepo) Record(ctx context.Context, a *domain.ReviewAction) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO review_actions (id, entity_id, action, comment, reviewer_id, reviewer_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.EntityID, a.Action, a.Comment, a.ReviewerID, a.ReviewerName, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("reviewActionRepo.Record: %w", err)
	}

	return nil
}

func (r *ReviewActionRepo) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*domain.ReviewAction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, entity_id, action, comment, reviewer_id, reviewer_name, created_at
		 FROM review_actions WHERE entity_id = $1
		 ORDER BY created_at
		 LIMIT 1000`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("reviewActionRepo.ListByEntity: %w", err)
	}
	defer rows.Close()

	var actions []*domain.ReviewAction
	for rows.Next() {
		var a domain.ReviewAction
		if err := rows.Scan(
			&a.ID, &a.EntityID, &a.Action, &a.Comment,
			&a.ReviewerID, &a.ReviewerName, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("reviewActionRepo.ListByEntity: scan: %w", err)
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reviewActionRepo.ListByEntity: rows: %w", err)
	}

	return actions, nil
}
