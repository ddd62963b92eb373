package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EntityKind string

const (
	EntityKindClaim  EntityKind = "claim"
	EntityKindTender EntityKind = "tender"
)

type EntityStatus string

const (
	EntityStatusPending      EntityStatus = "pending"
	EntityStatusProcessing   EntityStatus = "processing"
	EntityStatusCompleted    EntityStatus = "completed"
	EntityStatusFailed       EntityStatus = "failed"
	EntityStatusManualReview EntityStatus = "manual_review"
	EntityStatusPendingInfo  EntityStatus = "pending_info" // claims awaiting more data
)

// Terminal reports whether no further pipeline transitions are expected.
func (s EntityStatus) Terminal() bool {
	switch s {
	case EntityStatusCompleted, EntityStatusFailed, EntityStatusManualReview:
		return true
	default:
		return false
	}
}

// Entity is a document under processing: an insurance claim or a procurement
// tender. Status transitions are made by the external pipeline; this core
// reads status and records review outcomes.
type Entity struct {
	ID        uuid.UUID    `json:"id"`
	Kind      EntityKind   `json:"kind"`
	Reference string       `json:"reference"` // human-facing number, e.g. CLM-2024-0042
	Status    EntityStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type EntityRepository interface {
	Create(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entity, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status EntityStatus) error
}

type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// ProcessingStep is one pipeline step log entry. Produced by the external
// pipeline, append-only, surfaced here read-only.
type ProcessingStep struct {
	ID         uuid.UUID       `json:"id"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Name       string          `json:"name"`
	Agent      string          `json:"agent"`
	Status     StepStatus      `json:"status"`
	DurationMS int64           `json:"duration_ms"`
	Output     json.RawMessage `json:"output,omitempty"` // structured, keyed by step type
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type StepRepository interface {
	Append(ctx context.Context, step *ProcessingStep) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*ProcessingStep, error)
}
