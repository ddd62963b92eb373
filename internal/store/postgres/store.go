package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityai/caseflow/internal/domain"
)

type Store struct {
	pool     *pgxpool.Pool
	entities *EntityRepo
	steps    *StepRepo
	actions  *ReviewActionRepo
	turns    *TurnArchiveRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:     pool,
		entities: NewEntityRepo(pool),
		steps:    NewStepRepo(pool),
		actions:  NewReviewActionRepo(pool),
		turns:    NewTurnArchiveRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Entities() domain.EntityRepository            { return s.entities }
func (s *Store) Steps() domain.StepRepository                 { return s.steps }
func (s *Store) ReviewActions() domain.ReviewActionRepository { return s.actions }
func (s *Store) Turns() domain.TurnArchiveRepository          { return s.turns }

// RecordAction writes the review action and the resulting entity status in
// one transaction. Review rooms broadcast only after this returns nil, so
// the room's view and the durable record cannot diverge for an action id.
func (s *Store) RecordAction(ctx context.Context, a *domain.ReviewAction, newStatus domain.EntityStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres.Store.RecordAction: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO review_actions (id, entity_id, action, comment, reviewer_id, reviewer_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.EntityID, a.Action, a.Comment, a.ReviewerID, a.ReviewerName, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store.RecordAction: insert: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE entities SET status = $1, updated_at = now() WHERE id = $2`,
		newStatus, a.EntityID,
	)
	if err != nil {
		return fmt.Errorf("postgres.Store.RecordAction: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres.Store.RecordAction: %w", domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres.Store.RecordAction: commit: %w", err)
	}

	return nil
}
