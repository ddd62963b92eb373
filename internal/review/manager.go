package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/domain"
)

// Subscriber is the pipeline push channel: the external processing pipeline
// publishes state-change notifications that the manager turns into room
// broadcasts.
type Subscriber interface {
	PSubscribe(ctx context.Context, pattern string) (<-chan []byte, func(), error)
}

// PipelineEvent is the payload the pipeline publishes on pipeline:<entityID>.
type PipelineEvent struct {
	EntityID uuid.UUID           `json:"entity_id"`
	Status   domain.EntityStatus `json:"status"`
	Reason   string              `json:"reason,omitempty"`
}

// Manager owns the room registry. Rooms are ephemeral: created on first join,
// removed when the last reviewer leaves; recreation loses nothing because
// durable actions live outside the room.
type Manager struct {
	entities domain.EntityRepository
	store    ActionStore
	answerer Answerer
	pubsub   Subscriber
	cfg      Config

	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

func NewManager(entities domain.EntityRepository, store ActionStore, answerer Answerer, pubsub Subscriber, cfg Config) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Manager{
		entities: entities,
		store:    store,
		answerer: answerer,
		pubsub:   pubsub,
		cfg:      cfg,
		rooms:    make(map[uuid.UUID]*Room),
	}
}

// Join connects a reviewer to the entity's room, creating the room if needed.
func (m *Manager) Join(ctx context.Context, entityID uuid.UUID, name string) (*Room, *Member, error) {
	entity, err := m.entities.GetByID(ctx, entityID)
	if err != nil {
		return nil, nil, fmt.Errorf("review.Manager.Join: %w", err)
	}

	// A room can shut down between lookup and Join when its last reviewer
	// leaves concurrently; retry on a fresh room.
	for {
		room := m.room(entityID, entity.Kind)
		member, joinErr := room.Join(name)
		if errors.Is(joinErr, domain.ErrClosed) {
			continue
		}
		if joinErr != nil {
			return nil, nil, fmt.Errorf("review.Manager.Join: %w", joinErr)
		}
		return room, member, nil
	}
}

// SubmitAction persists a decision for an entity and notifies its room, if
// one is live. With no room connected the durable write still happens; there
// is simply nobody to notify.
func (m *Manager) SubmitAction(ctx context.Context, entityID uuid.UUID, reviewerName, action, comment string) (domain.EntityStatus, error) {
	if room, ok := m.lookup(entityID); ok {
		return room.SubmitAction(ctx, reviewerName, action, comment)
	}

	if _, err := m.entities.GetByID(ctx, entityID); err != nil {
		return "", fmt.Errorf("review.Manager.SubmitAction: %w", err)
	}

	a := &domain.ReviewAction{
		ID:           uuid.New(),
		EntityID:     entityID,
		Action:       action,
		Comment:      comment,
		ReviewerName: reviewerName,
		CreatedAt:    time.Now(),
	}
	if err := m.store.RecordAction(ctx, a, a.Applied()); err != nil {
		return "", fmt.Errorf("review.Manager.SubmitAction: %w", err)
	}
	return a.Applied(), nil
}

// AskQuestion routes a reviewer question to the entity's specialist agent.
// With a live room the answer goes out as a qa_exchange broadcast; without
// one it is returned to the caller only.
func (m *Manager) AskQuestion(ctx context.Context, entityID uuid.UUID, reviewerName, question string) (string, error) {
	if room, ok := m.lookup(entityID); ok {
		return room.AskQuestion(ctx, reviewerName, question)
	}

	entity, err := m.entities.GetByID(ctx, entityID)
	if err != nil {
		return "", fmt.Errorf("review.Manager.AskQuestion: %w", err)
	}
	answer, err := m.answerer.Ask(ctx, AgentForKind(entity.Kind), question)
	if err != nil {
		return "", fmt.Errorf("review.Manager.AskQuestion: %w", err)
	}
	return answer, nil
}

// Run consumes pipeline push notifications until ctx is cancelled. Entities
// marked manual_review while a room is live get an unsolicited
// manual_review_required push.
func (m *Manager) Run(ctx context.Context) error {
	messages, cleanup, err := m.pubsub.PSubscribe(ctx, "pipeline:*")
	if err != nil {
		return fmt.Errorf("review.Manager.Run: %w", err)
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			m.handlePipelineEvent(payload)
		}
	}
}

func (m *Manager) handlePipelineEvent(payload []byte) {
	var ev PipelineEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Debug().Err(err).Msg("review: skipping malformed pipeline event")
		return
	}
	if ev.Status != domain.EntityStatusManualReview {
		return
	}

	room, ok := m.lookup(ev.EntityID)
	if !ok {
		// No reviewers connected; the status itself is already durable.
		return
	}

	reason := ev.Reason
	if reason == "" {
		reason = "pipeline requested manual review"
	}
	room.NotifyManualReview(reason)
	log.Info().Str("entity_id", ev.EntityID.String()).Msg("review: manual review push delivered")
}

// Shutdown closes every live room.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for id, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, id)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		close(r.quit)
	}
}

func (m *Manager) room(entityID uuid.UUID, kind domain.EntityKind) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[entityID]; ok {
		return r
	}
	r := newRoom(entityID, kind, m.cfg, m.store, m.answerer, m.roomEmptied)
	m.rooms[entityID] = r
	return r
}

func (m *Manager) lookup(entityID uuid.UUID) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[entityID]
	return r, ok
}

// roomEmptied removes a room once its last reviewer left, unless someone
// joined again in the meantime.
func (m *Manager) roomEmptied(r *Room) {
	m.mu.Lock()
	current, ok := m.rooms[r.entityID]
	if !ok || current != r {
		m.mu.Unlock()
		return
	}
	if !r.tryClose() {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, r.entityID)
	m.mu.Unlock()
}
