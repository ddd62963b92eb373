package review_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityai/caseflow/internal/domain"
	"github.com/verityai/caseflow/internal/review"
)

// --- fakes ---

type memEntityRepo struct {
	mu       sync.Mutex
	entities map[uuid.UUID]*domain.Entity
}

func newMemEntityRepo() *memEntityRepo {
	return &memEntityRepo{entities: make(map[uuid.UUID]*domain.Entity)}
}

func (r *memEntityRepo) Create(_ context.Context, e *domain.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[e.ID] = e
	return nil
}

func (r *memEntityRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Entity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func (r *memEntityRepo) UpdateStatus(_ context.Context, id uuid.UUID, s domain.EntityStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entities[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = s
	return nil
}

type fakeActionStore struct {
	mu      sync.Mutex
	actions []*domain.ReviewAction
	err     error
}

func (s *fakeActionStore) RecordAction(_ context.Context, a *domain.ReviewAction, _ domain.EntityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.actions = append(s.actions, a)
	return nil
}

func (s *fakeActionStore) recorded() []*domain.ReviewAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ReviewAction, len(s.actions))
	copy(out, s.actions)
	return out
}

type fakeAnswerer struct {
	mu      sync.Mutex
	agentID string
	answer  string
	err     error
}

func (a *fakeAnswerer) Ask(_ context.Context, agentID, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.agentID = agentID
	if a.err != nil {
		return "", a.err
	}
	return a.answer, nil
}

func (a *fakeAnswerer) askedAgent() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agentID
}

type fakeSubscriber struct {
	messages chan []byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{messages: make(chan []byte, 8)}
}

func (s *fakeSubscriber) PSubscribe(context.Context, string) (<-chan []byte, func(), error) {
	return s.messages, func() {}, nil
}

// --- harness ---

type fixture struct {
	manager  *review.Manager
	store    *fakeActionStore
	answerer *fakeAnswerer
	pubsub   *fakeSubscriber
	entity   *domain.Entity
}

func newFixture(t *testing.T, kind domain.EntityKind) *fixture {
	t.Helper()

	entities := newMemEntityRepo()
	entity := &domain.Entity{
		ID:        uuid.New(),
		Kind:      kind,
		Reference: "CLM-2024-0042",
		Status:    domain.EntityStatusManualReview,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, entities.Create(context.Background(), entity))

	store := &fakeActionStore{}
	answerer := &fakeAnswerer{answer: "the deductible is 500"}
	pubsub := newFakeSubscriber()

	manager := review.NewManager(entities, store, answerer, pubsub, review.Config{
		HeartbeatInterval: 50 * time.Millisecond,
		IdleTimeout:       time.Minute,
		ActionTimeout:     time.Second,
		SendBuffer:        16,
	})
	t.Cleanup(manager.Shutdown)

	return &fixture{manager: manager, store: store, answerer: answerer, pubsub: pubsub, entity: entity}
}

func (f *fixture) join(t *testing.T, name string) (*review.Room, *review.Member) {
	t.Helper()
	room, member, err := f.manager.Join(context.Background(), f.entity.ID, name)
	require.NoError(t, err)
	return room, member
}

// recvFrame waits for the next frame of the given type, skipping others.
func recvFrame(t *testing.T, m *review.Member, typ review.FrameType) review.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-m.Frames:
			if !ok {
				t.Fatalf("frames channel closed while waiting for %s", typ)
			}
			if f.Type == typ {
				return f
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

// expectNoFrame asserts no frame of the given type is pending.
func expectNoFrame(t *testing.T, m *review.Member, typ review.FrameType) {
	t.Helper()
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case f, ok := <-m.Frames:
			if !ok {
				return
			}
			assert.NotEqual(t, typ, f.Type)
		case <-deadline:
			return
		}
	}
}

func clientFrame(t *testing.T, f review.Frame) []byte {
	t.Helper()
	data, err := json.Marshal(f)
	require.NoError(t, err)
	return data
}

// --- tests ---

func TestRoom_Presence(t *testing.T) {
	t.Parallel()

	t.Run("joiner snapshot includes themselves", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		_, alice := f.join(t, "alice")

		connected := recvFrame(t, alice, review.FrameConnected)

		require.Len(t, connected.ActiveReviewers, 1)
		assert.Equal(t, "alice", connected.ActiveReviewers[0].Name)
		assert.Equal(t, alice.ID, connected.ActiveReviewers[0].ID)
	})

	t.Run("join is announced to others only", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		_, alice := f.join(t, "alice")
		recvFrame(t, alice, review.FrameConnected)

		_, bob := f.join(t, "bob")

		joined := recvFrame(t, alice, review.FrameReviewerJoined)
		assert.Equal(t, "bob", joined.ReviewerName)

		connected := recvFrame(t, bob, review.FrameConnected)
		assert.Len(t, connected.ActiveReviewers, 2)
		expectNoFrame(t, bob, review.FrameReviewerJoined)
	})

	t.Run("leave is announced to the rest", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, alice := f.join(t, "alice")
		_, bob := f.join(t, "bob")
		recvFrame(t, bob, review.FrameConnected)

		room.Leave(bob.ID)

		left := recvFrame(t, alice, review.FrameReviewerLeft)
		assert.Equal(t, "bob", left.ReviewerName)

		// Leave is idempotent.
		room.Leave(bob.ID)
	})

	t.Run("room is recreated after the last reviewer leaves", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, alice := f.join(t, "alice")
		recvFrame(t, alice, review.FrameConnected)
		require.Len(t, room.Events(), 1)
		room.Leave(alice.ID)

		// The fresh room's event log starts over.
		room2, carol := f.join(t, "carol")
		recvFrame(t, carol, review.FrameConnected)
		assert.Len(t, room2.Events(), 1)
	})

	t.Run("idle connections are swept", func(t *testing.T) {
		t.Parallel()

		entities := newMemEntityRepo()
		entity := &domain.Entity{ID: uuid.New(), Kind: domain.EntityKindClaim, Status: domain.EntityStatusManualReview}
		require.NoError(t, entities.Create(context.Background(), entity))

		manager := review.NewManager(entities, &fakeActionStore{}, &fakeAnswerer{}, newFakeSubscriber(), review.Config{
			HeartbeatInterval: 20 * time.Millisecond,
			IdleTimeout:       60 * time.Millisecond,
			ActionTimeout:     time.Second,
			SendBuffer:        16,
		})
		t.Cleanup(manager.Shutdown)

		_, alice, err := manager.Join(context.Background(), entity.ID, "alice")
		require.NoError(t, err)
		recvFrame(t, alice, review.FrameConnected)

		// No traffic from alice: the sweep closes her frame channel.
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-alice.Frames:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("idle member was never swept")
			}
		}
	})
}

func TestRoom_Chat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.EntityKindClaim)
	room, alice := f.join(t, "alice")
	_, bob := f.join(t, "bob")
	recvFrame(t, alice, review.FrameConnected)
	recvFrame(t, bob, review.FrameConnected)

	room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: review.FrameChat, Message: "looks legitimate"}))

	// Everyone gets the message, the sender included.
	for _, m := range []*review.Member{alice, bob} {
		msg := recvFrame(t, m, review.FrameChatMessage)
		assert.Equal(t, "looks legitimate", msg.Message)
		assert.Equal(t, "alice", msg.ReviewerName)
		assert.Equal(t, alice.ID.String(), msg.ReviewerID)
	}
}

func TestRoom_Actions(t *testing.T) {
	t.Parallel()

	t.Run("approve persists then broadcasts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, alice := f.join(t, "alice")
		_, bob := f.join(t, "bob")
		recvFrame(t, alice, review.FrameConnected)
		recvFrame(t, bob, review.FrameConnected)

		room.HandleFrame(alice.ID, clientFrame(t, review.Frame{
			Type:    review.FrameAction,
			Action:  domain.ReviewActionApprove,
			Comment: "documents verified",
		}))

		for _, m := range []*review.Member{alice, bob} {
			updated := recvFrame(t, m, review.FrameClaimUpdated)
			assert.Equal(t, domain.EntityStatusCompleted, updated.NewStatus)
			assert.Equal(t, domain.ReviewActionApprove, updated.Action)
			assert.Equal(t, "alice", updated.ReviewerName)
		}

		recorded := f.store.recorded()
		require.Len(t, recorded, 1)
		assert.Equal(t, f.entity.ID, recorded[0].EntityID)
		assert.Equal(t, "documents verified", recorded[0].Comment)
	})

	t.Run("reject resolves to failed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, _ := f.join(t, "alice")

		newStatus, err := room.SubmitAction(context.Background(), "alice", domain.ReviewActionReject, "")

		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusFailed, newStatus)
	})

	t.Run("free-form action requests more information", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, _ := f.join(t, "alice")

		newStatus, err := room.SubmitAction(context.Background(), "alice", "request_info", "need the police report")

		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusPendingInfo, newStatus)
	})

	t.Run("failed persist reaches only the submitter and nothing is broadcast", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		f.store.err = errors.New("connection reset")
		room, alice := f.join(t, "alice")
		_, bob := f.join(t, "bob")
		recvFrame(t, alice, review.FrameConnected)
		recvFrame(t, bob, review.FrameConnected)

		room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: review.FrameAction, Action: domain.ReviewActionApprove}))

		errFrame := recvFrame(t, alice, review.FrameError)
		assert.Contains(t, errFrame.Error, "action not applied")

		expectNoFrame(t, bob, review.FrameClaimUpdated)
		expectNoFrame(t, bob, review.FrameError)
		assert.Empty(t, f.store.recorded())
	})

	t.Run("concurrent submissions each persist exactly once", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, alice := f.join(t, "alice")
		recvFrame(t, alice, review.FrameConnected)

		const n = 5
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := room.SubmitAction(context.Background(), "alice", domain.ReviewActionApprove, "")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Len(t, f.store.recorded(), n)
		for i := 0; i < n; i++ {
			recvFrame(t, alice, review.FrameClaimUpdated)
		}
	})

	t.Run("rest submission without a live room still persists", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)

		newStatus, err := f.manager.SubmitAction(context.Background(), f.entity.ID, "carol", domain.ReviewActionApprove, "")

		require.NoError(t, err)
		assert.Equal(t, domain.EntityStatusCompleted, newStatus)
		require.Len(t, f.store.recorded(), 1)
		assert.Equal(t, "carol", f.store.recorded()[0].ReviewerName)
	})

	t.Run("unknown entity", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)

		_, err := f.manager.SubmitAction(context.Background(), uuid.New(), "carol", domain.ReviewActionApprove, "")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, _, err = f.manager.Join(context.Background(), uuid.New(), "carol")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestRoom_Questions(t *testing.T) {
	t.Parallel()

	t.Run("answer goes out as one shared exchange", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		room, alice := f.join(t, "alice")
		_, bob := f.join(t, "bob")
		recvFrame(t, alice, review.FrameConnected)
		recvFrame(t, bob, review.FrameConnected)

		room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: review.FrameQuestion, Message: "what is the deductible?"}))

		for _, m := range []*review.Member{alice, bob} {
			qa := recvFrame(t, m, review.FrameQAExchange)
			assert.Equal(t, "what is the deductible?", qa.Message)
			assert.Equal(t, "the deductible is 500", qa.Answer)
			assert.Equal(t, "alice", qa.ReviewerName)
		}
		assert.Equal(t, "claims", f.answerer.askedAgent())
	})

	t.Run("tender rooms ask the tender agent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindTender)

		answer, err := f.manager.AskQuestion(context.Background(), f.entity.ID, "carol", "is the bid compliant?")

		require.NoError(t, err)
		assert.Equal(t, "the deductible is 500", answer)
		assert.Equal(t, "tenders", f.answerer.askedAgent())
	})

	t.Run("failure reaches only the asker", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		f.answerer.err = errors.New("agent offline")
		room, alice := f.join(t, "alice")
		_, bob := f.join(t, "bob")
		recvFrame(t, alice, review.FrameConnected)
		recvFrame(t, bob, review.FrameConnected)

		room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: review.FrameQuestion, Message: "anyone?"}))

		errFrame := recvFrame(t, alice, review.FrameError)
		assert.Contains(t, errFrame.Error, "question failed")
		expectNoFrame(t, bob, review.FrameQAExchange)
	})
}

func TestRoom_MalformedFrames(t *testing.T) {
	t.Parallel()

	f := newFixture(t, domain.EntityKindClaim)
	room, alice := f.join(t, "alice")
	recvFrame(t, alice, review.FrameConnected)

	// Garbage and unknown types are skipped without dropping the connection.
	room.HandleFrame(alice.ID, []byte(`not json at all`))
	room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: "emoji_reaction"}))

	room.HandleFrame(alice.ID, clientFrame(t, review.Frame{Type: review.FramePing}))
	recvFrame(t, alice, review.FramePong)
}

func TestManager_PipelinePush(t *testing.T) {
	t.Parallel()

	t.Run("manual review notification reaches the room", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = f.manager.Run(ctx) }()

		_, alice := f.join(t, "alice")
		recvFrame(t, alice, review.FrameConnected)

		payload, err := json.Marshal(review.PipelineEvent{
			EntityID: f.entity.ID,
			Status:   domain.EntityStatusManualReview,
			Reason:   "low OCR confidence",
		})
		require.NoError(t, err)
		f.pubsub.messages <- payload

		push := recvFrame(t, alice, review.FrameManualReviewRequired)
		assert.Equal(t, "low OCR confidence", push.Reason)
	})

	t.Run("other statuses are ignored", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, domain.EntityKindClaim)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go func() { _ = f.manager.Run(ctx) }()

		_, alice := f.join(t, "alice")
		recvFrame(t, alice, review.FrameConnected)

		payload, err := json.Marshal(review.PipelineEvent{EntityID: f.entity.ID, Status: domain.EntityStatusCompleted})
		require.NoError(t, err)
		f.pubsub.messages <- payload
		f.pubsub.messages <- []byte(`broken payload`)

		expectNoFrame(t, alice, review.FrameManualReviewRequired)
	})
}
