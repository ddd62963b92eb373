package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityai/caseflow/internal/domain"
)

type EntityRepo struct {
	pool *pgxpool.Pool
}

func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{pool: pool}
}

func (r *EntityRepo) Create(ctx context.Context, e *domain.Entity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO entities (id, kind, reference, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Kind, e.Reference, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("entityRepo.Create: %w", err)
	}

	return nil
}

func (r *EntityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Entity, error) {
	var e domain.Entity

	err := r.pool.QueryRow(ctx,
		`SELECT id, kind, reference, status, created_at, updated_at
		 FROM entities WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Kind, &e.Reference, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entityRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("entityRepo.GetByID: %w", err)
	}

	return &e, nil
}

func (r *EntityRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EntityStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE entities SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("entityRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entityRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}
