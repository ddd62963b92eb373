// Package status exposes the step-by-step progress of pipeline processing as
// a pollable read projection. It performs no mutation.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/domain"
)

// Snapshot is one poll result. Progress is monotonically non-decreasing
// within a run and reaches 100 only at a terminal status.
type Snapshot struct {
	EntityID           uuid.UUID                `json:"entity_id"`
	Status             domain.EntityStatus      `json:"status"`
	CurrentStep        string                   `json:"current_step,omitempty"`
	ProgressPercentage int                      `json:"progress_percentage"`
	Steps              []*domain.ProcessingStep `json:"steps"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// expectedSteps is the pipeline step count per entity kind, used to scale
// progress. The pipeline owns the actual step sequence; an overrun clamps.
var expectedSteps = map[domain.EntityKind]int{ //nolint:gochecknoglobals // static table
	domain.EntityKindClaim:  5,
	domain.EntityKindTender: 5,
}

type Tracker struct {
	entities domain.EntityRepository
	steps    domain.StepRepository
}

func NewTracker(entities domain.EntityRepository, steps domain.StepRepository) *Tracker {
	return &Tracker{entities: entities, steps: steps}
}

// Status returns the current processing snapshot for an entity.
func (t *Tracker) Status(ctx context.Context, entityID uuid.UUID) (*Snapshot, error) {
	entity, err := t.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("status.Tracker.Status: %w", err)
	}

	steps, err := t.steps.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("status.Tracker.Status: %w", err)
	}

	snap := &Snapshot{
		EntityID:  entity.ID,
		Status:    entity.Status,
		Steps:     steps,
		UpdatedAt: entity.UpdatedAt,
	}
	if len(steps) > 0 {
		snap.CurrentStep = steps[len(steps)-1].Name
	}
	snap.ProgressPercentage = progress(entity, steps)

	return snap, nil
}

// progress derives a percentage from the append-only step log. Finished steps
// only accumulate, so consecutive polls never go backwards; 99 is the ceiling
// until the pipeline lands on a terminal status.
func progress(entity *domain.Entity, steps []*domain.ProcessingStep) int {
	if entity.Status.Terminal() {
		return 100
	}
	if entity.Status == domain.EntityStatusPending {
		return 0
	}

	total := expectedSteps[entity.Kind]
	if total == 0 {
		total = len(steps)
	}
	if total == 0 {
		return 0
	}

	finished := 0
	for _, s := range steps {
		if s.Status != domain.StepStatusRunning {
			finished++
		}
	}

	pct := finished * 100 / total
	if pct > 99 {
		pct = 99
	}
	return pct
}
