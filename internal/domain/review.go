package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

// ReviewAction is a reviewer decision on an entity under manual review.
// Recorded durably exactly once per submission; the room broadcast is a
// notification of the durable write, never the other way around.
type ReviewAction struct {
	ID           uuid.UUID `json:"id"`
	EntityID     uuid.UUID `json:"entity_id"`
	Action       string    `json:"action"` // approve, reject, or free-form
	Comment      string    `json:"comment,omitempty"`
	ReviewerID   uuid.UUID `json:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Applied returns the entity status this action resolves to.
// Free-form actions send a claim back for more information.
func (a *ReviewAction) Applied() EntityStatus {
	switch a.Action {
	case ReviewActionApprove:
		return EntityStatusCompleted
	case ReviewActionReject:
		return EntityStatusFailed
	default:
		return EntityStatusPendingInfo
	}
}

type ReviewActionRepository interface {
	Record(ctx context.Context, a *ReviewAction) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]*ReviewAction, error)
}
