package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verityai/caseflow/internal/domain"
)

// TurnArchiveRepo stores completed chat turns for audit. Sessions themselves
// are in-memory; only finished turns land here.
type TurnArchiveRepo struct {
	pool *pgxpool.Pool
}

func NewTurnArchiveRepo(pool *pgxpool.Pool) *TurnArchiveRepo {
	return &TurnArchiveRepo{pool: pool}
}

func (r *TurnArchiveRepo) Append(ctx context.Context, rec *domain.TurnRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO turn_archive (id, session_id, agent_id, user_text, answer, tool_calls, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.SessionID, rec.AgentID, rec.UserText, rec.Answer, rec.ToolCalls, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("turnArchiveRepo.Append: %w", err)
	}

	return nil
}

func (r *TurnArchiveRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TurnRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, agent_id, user_text, answer, tool_calls, completed_at
		 FROM turn_archive WHERE session_id = $1
		 ORDER BY completed_at
		 LIMIT 1000`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("turnArchiveRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var recs []*domain.TurnRecord
	for rows.Next() {
		var rec domain.TurnRecord
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.AgentID, &rec.UserText,
			&rec.Answer, &rec.ToolCalls, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("turnArchiveRepo.ListBySession: scan: %w", err)
		}
		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turnArchiveRepo.ListBySession: rows: %w", err)
	}

	return recs, nil
}
