package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/domain"
)

// ActionStore persists a review action and applies the resulting entity
// status as one atomic durable write. The room broadcasts only after this
// succeeds; the write is authoritative, the broadcast a notification of it.
type ActionStore interface {
	RecordAction(ctx context.Context, a *domain.ReviewAction, newStatus domain.EntityStatus) error
}

// Answerer runs the agent-completion path for reviewer questions.
type Answerer interface {
	Ask(ctx context.Context, agentID, question string) (string, error)
}

// Config holds room liveness and sizing knobs.
type Config struct {
	HeartbeatInterval time.Duration // presence sweep cadence
	IdleTimeout       time.Duration // no traffic for this long = disconnect
	ActionTimeout     time.Duration // bound on the durable write
	SendBuffer        int           // per-member outbound frame buffer
}

// Member is the handle a connection holds on a room. Frames is closed when
// the member leaves or the room shuts down.
type Member struct {
	ID     uuid.UUID
	Name   string
	Frames <-chan Frame
}

type member struct {
	rv       Reviewer
	frames   chan Frame
	lastSeen time.Time
}

// Room is the single serialization point for one entity's review session.
// All state is owned by the run goroutine; everything goes through the inbox,
// so broadcast order to every member is the order the room processed the
// triggering event in.
type Room struct {
	entityID uuid.UUID
	kind     domain.EntityKind
	cfg      Config

	store    ActionStore
	answerer Answerer
	onEmpty  func(*Room)

	inbox chan func()
	quit  chan struct{}

	// owned by run().
	members map[uuid.UUID]*member
	events  []Frame
	closing bool
}

func newRoom(entityID uuid.UUID, kind domain.EntityKind, cfg Config, store ActionStore, answerer Answerer, onEmpty func(*Room)) *Room {
	r := &Room{
		entityID: entityID,
		kind:     kind,
		cfg:      cfg,
		store:    store,
		answerer: answerer,
		onEmpty:  onEmpty,
		inbox:    make(chan func()),
		quit:     make(chan struct{}),
		members:  make(map[uuid.UUID]*member),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-r.inbox:
			fn()
		case <-ticker.C:
			r.sweep()
		case <-r.quit:
			for _, m := range r.members {
				close(m.frames)
			}
			r.members = nil
			return
		}
	}
}

// do runs fn on the room goroutine and waits for it.
func (r *Room) do(fn func()) error {
	done := make(chan struct{})
	select {
	case r.inbox <- func() { fn(); close(done) }:
	case <-r.quit:
		return domain.ErrClosed
	}
	<-done
	return nil
}

// Join connects a reviewer. The joiner receives a connected frame carrying
// the exact presence set at that instant (themselves included); everyone else
// gets reviewer_joined.
func (r *Room) Join(name string) (*Member, error) {
	var handle *Member
	joinErr := r.do(func() {
		if r.closing {
			return
		}

		now := time.Now()
		m := &member{
			rv:       Reviewer{ID: uuid.New(), Name: name, JoinedAt: now},
			frames:   make(chan Frame, r.cfg.SendBuffer),
			lastSeen: now,
		}
		r.members[m.rv.ID] = m

		snapshot := make([]Reviewer, 0, len(r.members))
		for _, other := range r.members {
			snapshot = append(snapshot, other.rv)
		}
		m.frames <- Frame{Type: FrameConnected, ActiveReviewers: snapshot, Timestamp: now}

		r.broadcast(Frame{
			Type:         FrameReviewerJoined,
			ReviewerID:   m.rv.ID.String(),
			ReviewerName: m.rv.Name,
			Timestamp:    now,
		}, m.rv.ID)

		handle = &Member{ID: m.rv.ID, Name: m.rv.Name, Frames: m.frames}
	})
	if joinErr != nil {
		return nil, fmt.Errorf("review.Room.Join: %w", joinErr)
	}
	if handle == nil {
		return nil, fmt.Errorf("review.Room.Join: %w", domain.ErrClosed)
	}
	return handle, nil
}

// Leave disconnects a reviewer and tells the rest of the room. Safe to call
// twice; the second call is a no-op.
func (r *Room) Leave(id uuid.UUID) {
	var emptied bool
	_ = r.do(func() {
		m, ok := r.members[id]
		if !ok {
			return
		}
		delete(r.members, id)
		close(m.frames)

		r.broadcast(Frame{
			Type:         FrameReviewerLeft,
			ReviewerID:   m.rv.ID.String(),
			ReviewerName: m.rv.Name,
			Timestamp:    time.Now(),
		}, uuid.Nil)

		emptied = len(r.members) == 0
	})

	if emptied && r.onEmpty != nil {
		r.onEmpty(r)
	}
}

// HandleFrame processes one inbound frame from a connected reviewer.
// Malformed frames are logged and skipped; the connection stays up.
func (r *Room) HandleFrame(id uuid.UUID, data []byte) {
	f, err := DecodeClientFrame(data)
	if err != nil {
		log.Debug().Err(err).Str("entity_id", r.entityID.String()).Msg("review: skipping malformed frame")
		_ = r.do(func() { r.touch(id) })
		return
	}

	switch f.Type {
	case FramePing:
		_ = r.do(func() {
			r.touch(id)
			if m, ok := r.members[id]; ok {
				r.send(m, Frame{Type: FramePong, Timestamp: time.Now()})
			}
		})
	case FrameChat:
		_ = r.do(func() {
			r.touch(id)
			m, ok := r.members[id]
			if !ok {
				return
			}
			r.broadcast(Frame{
				Type:         FrameChatMessage,
				ReviewerID:   m.rv.ID.String(),
				ReviewerName: m.rv.Name,
				Message:      f.Message,
				Timestamp:    time.Now(),
			}, uuid.Nil)
		})
	case FrameAction:
		name := r.memberName(id)
		if _, err := r.SubmitAction(context.Background(), name, f.Action, f.Comment); err != nil {
			_ = r.do(func() {
				if m, ok := r.members[id]; ok {
					r.send(m, Frame{Type: FrameError, Error: "action not applied: " + err.Error(), Timestamp: time.Now()})
				}
			})
		}
	case FrameQuestion:
		// Answering takes as long as the LLM does; keep the room loop and the
		// asker's read loop free while it runs.
		name := r.memberName(id)
		go func() {
			if _, err := r.AskQuestion(context.Background(), name, f.Message); err != nil {
				_ = r.do(func() {
					if m, ok := r.members[id]; ok {
						r.send(m, Frame{Type: FrameError, Error: "question failed: " + err.Error(), Timestamp: time.Now()})
					}
				})
			}
		}()
	}
}

// SubmitAction persists a reviewer decision and, only once the durable write
// succeeded, broadcasts claim_updated. One submission yields exactly one
// record and at most one broadcast; concurrent submissions serialize on the
// room goroutine, so broadcasts go out in commit order.
func (r *Room) SubmitAction(ctx context.Context, reviewerName, action, comment string) (domain.EntityStatus, error) {
	a := &domain.ReviewAction{
		ID:           uuid.New(),
		EntityID:     r.entityID,
		Action:       action,
		Comment:      comment,
		ReviewerName: reviewerName,
		CreatedAt:    time.Now(),
	}
	newStatus := a.Applied()

	var recordErr error
	doErr := r.do(func() {
		// The write deadline is deliberately decoupled from the submitter's
		// ctx: once we start committing, a vanished client must not leave the
		// record and the broadcast in doubt.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ActionTimeout)
		defer cancel()

		if recordErr = r.store.RecordAction(wctx, a, newStatus); recordErr != nil {
			return
		}

		r.broadcast(Frame{
			Type:         FrameClaimUpdated,
			NewStatus:    newStatus,
			Action:       action,
			ReviewerName: reviewerName,
			Timestamp:    time.Now(),
		}, uuid.Nil)
	})
	if doErr != nil {
		return "", fmt.Errorf("review.Room.SubmitAction: %w", doErr)
	}
	if recordErr != nil {
		return "", fmt.Errorf("review.Room.SubmitAction: %w", recordErr)
	}
	return newStatus, nil
}

// AskQuestion runs the question through the entity's specialist agent and
// broadcasts a single qa_exchange to the whole room. Nobody renders a local
// copy; the asker learns the answer from the same broadcast as everyone else.
func (r *Room) AskQuestion(ctx context.Context, reviewerName, question string) (string, error) {
	answer, err := r.answerer.Ask(ctx, AgentForKind(r.kind), question)
	if err != nil {
		return "", fmt.Errorf("review.Room.AskQuestion: %w", err)
	}

	doErr := r.do(func() {
		r.broadcast(Frame{
			Type:         FrameQAExchange,
			ReviewerName: reviewerName,
			Message:      question,
			Answer:       answer,
			Timestamp:    time.Now(),
		}, uuid.Nil)
	})
	if doErr != nil {
		return "", fmt.Errorf("review.Room.AskQuestion: %w", doErr)
	}
	return answer, nil
}

// NotifyManualReview pushes an unsolicited manual_review_required to every
// connected reviewer. Triggered by the pipeline, not by any reviewer request.
func (r *Room) NotifyManualReview(reason string) {
	_ = r.do(func() {
		r.broadcast(Frame{
			Type:      FrameManualReviewRequired,
			Reason:    reason,
			Timestamp: time.Now(),
		}, uuid.Nil)
	})
}

// ActiveReviewers returns the current presence set.
func (r *Room) ActiveReviewers() []Reviewer {
	var out []Reviewer
	_ = r.do(func() {
		for _, m := range r.members {
			out = append(out, m.rv)
		}
	})
	return out
}

// Events returns a copy of the room event log accumulated over the room's
// lifetime.
func (r *Room) Events() []Frame {
	var out []Frame
	_ = r.do(func() {
		out = make([]Frame, len(r.events))
		copy(out, r.events)
	})
	return out
}

// EntityID returns the entity this room reviews.
func (r *Room) EntityID() uuid.UUID {
	return r.entityID
}

// tryClose shuts the room down if it is still empty. Returns false when a
// reviewer joined in the meantime.
func (r *Room) tryClose() bool {
	closed := false
	if err := r.do(func() {
		if len(r.members) == 0 {
			r.closing = true
			closed = true
		}
	}); err != nil {
		return true // already closed
	}
	if closed {
		close(r.quit)
	}
	return closed
}

// --- run-goroutine internals ---

// broadcast fans a frame out to every member except the excluded one
// (uuid.Nil excludes nobody) and appends it to the room log.
func (r *Room) broadcast(f Frame, except uuid.UUID) {
	r.events = append(r.events, f)
	for id, m := range r.members {
		if id == except {
			continue
		}
		r.send(m, f)
	}
}

// send queues a frame for one member without ever blocking the room. A full
// buffer means the consumer stopped draining; the frame is dropped and the
// heartbeat sweep will retire the connection.
func (r *Room) send(m *member, f Frame) {
	select {
	case m.frames <- f:
	default:
		log.Warn().Str("reviewer", m.rv.Name).Str("entity_id", r.entityID.String()).Msg("review: dropping frame for slow consumer")
	}
}

func (r *Room) touch(id uuid.UUID) {
	if m, ok := r.members[id]; ok {
		m.lastSeen = time.Now()
	}
}

// sweep retires members whose connections went silent past the idle timeout,
// covering ungraceful disconnects that never reached Leave.
func (r *Room) sweep() {
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)
	var gone []*member
	for id, m := range r.members {
		if m.lastSeen.Before(cutoff) {
			gone = append(gone, m)
			delete(r.members, id)
			close(m.frames)
		}
	}
	for _, m := range gone {
		r.broadcast(Frame{
			Type:         FrameReviewerLeft,
			ReviewerID:   m.rv.ID.String(),
			ReviewerName: m.rv.Name,
			Timestamp:    time.Now(),
		}, uuid.Nil)
	}
	if len(gone) > 0 && len(r.members) == 0 && r.onEmpty != nil {
		go r.onEmpty(r)
	}
}

func (r *Room) memberName(id uuid.UUID) string {
	name := "reviewer"
	_ = r.do(func() {
		if m, ok := r.members[id]; ok {
			r.touch(id)
			name = m.rv.Name
		}
	})
	return name
}

// AgentForKind maps an entity kind to its specialist agent id.
func AgentForKind(kind domain.EntityKind) string {
	if kind == domain.EntityKindTender {
		return "tenders"
	}
	return "claims"
}
