package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/verityai/caseflow/internal/domain"
)

// session owns one conversation's mutable state. All mutation and reads go
// through do(), executed by the owning goroutine, so sessions never share a
// lock and proceed fully in parallel.
type session struct {
	data *domain.Session

	inbox chan func() // unbuffered: a successful send means run() executes it
	quit  chan struct{}
}

func newSession(agentID string) *session {
	now := time.Now()
	s := &session{
		data: &domain.Session{
			ID:        uuid.New(),
			AgentID:   agentID,
			Status:    domain.SessionStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		},
		inbox: make(chan func()),
		quit:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *session) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the owning goroutine and waits for it to finish.
// Returns domain.ErrClosed once the session has been deleted.
func (s *session) do(fn func()) error {
	done := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(done) }:
	case <-s.quit:
		return domain.ErrClosed
	}
	<-done
	return nil
}

func (s *session) close() {
	close(s.quit)
}

// snapshot returns a copy of the session record with its message slice
// decoupled from the live one. Must be called via do().
func (s *session) snapshot() *domain.Session {
	cp := *s.data
	cp.Messages = make([]*domain.Message, len(s.data.Messages))
	copy(cp.Messages, s.data.Messages)
	return &cp
}

// append adds a message and bumps the update timestamp. Must be called via do().
func (s *session) append(msg *domain.Message) {
	s.data.Messages = append(s.data.Messages, msg)
	s.data.UpdatedAt = time.Now()
}
