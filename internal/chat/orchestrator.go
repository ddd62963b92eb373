package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verityai/caseflow/internal/agent"
	"github.com/verityai/caseflow/internal/domain"
)

// ErrSessionNotFound is returned when a session id is not known.
var ErrSessionNotFound = errors.New("chat: session not found") //nolint:gochecknoglobals // sentinel error

// TurnResult is the fully materialized outcome of one turn, for callers that
// do not consume the stream.
type TurnResult struct {
	AgentID string          `json:"agent_id"`
	Message *domain.Message `json:"message"`
	Usage   Usage           `json:"usage"`
	ModelID string          `json:"model_id,omitempty"`
}

// Orchestrator routes user messages to agents and streams their output.
// Sessions live in memory, each owned by its own goroutine; the orchestrator
// map is only touched for membership.
type Orchestrator struct {
	registry  *agent.Registry
	router    *agent.Router
	completer Completer
	archive   domain.TurnArchiveRepository // nil disables turn archiving
	timeout   time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

func NewOrchestrator(registry *agent.Registry, router *agent.Router, completer Completer, archive domain.TurnArchiveRepository, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		router:    router,
		completer: completer,
		archive:   archive,
		timeout:   timeout,
		sessions:  make(map[uuid.UUID]*session),
	}
}

// CreateSession starts a new conversation, optionally bound to one agent.
func (o *Orchestrator) CreateSession(agentID string) (*domain.Session, error) {
	if agentID != "" {
		if _, err := o.registry.Get(agentID); err != nil {
			return nil, fmt.Errorf("chat.Orchestrator.CreateSession: %w", err)
		}
	}

	s := newSession(agentID)

	o.mu.Lock()
	o.sessions[s.data.ID] = s
	o.mu.Unlock()

	var snap *domain.Session
	_ = s.do(func() { snap = s.snapshot() })
	return snap, nil
}

// ListSessions returns a snapshot of every live session, without messages.
func (o *Orchestrator) ListSessions() []*domain.Session {
	o.mu.RLock()
	all := make([]*session, 0, len(o.sessions))
	for _, s := range o.sessions {
		all = append(all, s)
	}
	o.mu.RUnlock()

	out := make([]*domain.Session, 0, len(all))
	for _, s := range all {
		var snap *domain.Session
		if err := s.do(func() { snap = s.snapshot() }); err != nil {
			continue
		}
		snap.Messages = nil
		out = append(out, snap)
	}
	return out
}

// DeleteSession removes a session and its messages. The removal is atomic
// from the caller's view: once this returns, no operation can observe the
// session.
func (o *Orchestrator) DeleteSession(id uuid.UUID) error {
	o.mu.Lock()
	s, ok := o.sessions[id]
	if ok {
		delete(o.sessions, id)
	}
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("chat.Orchestrator.DeleteSession: %w", ErrSessionNotFound)
	}
	s.close()
	return nil
}

// Messages returns the ordered history of a session.
func (o *Orchestrator) Messages(id uuid.UUID) ([]*domain.Message, error) {
	s, err := o.get(id)
	if err != nil {
		return nil, err
	}

	var msgs []*domain.Message
	if doErr := s.do(func() { msgs = s.snapshot().Messages }); doErr != nil {
		return nil, fmt.Errorf("chat.Orchestrator.Messages: %w", ErrSessionNotFound)
	}
	return msgs, nil
}

// SetPrompt installs a per-session instruction override layered over the
// agent's default instructions.
func (o *Orchestrator) SetPrompt(id uuid.UUID, prompt string) error {
	s, err := o.get(id)
	if err != nil {
		return err
	}
	if doErr := s.do(func() {
		s.data.Prompt = prompt
		s.data.UpdatedAt = time.Now()
	}); doErr != nil {
		return fmt.Errorf("chat.Orchestrator.SetPrompt: %w", ErrSessionNotFound)
	}
	return nil
}

// Prompt returns the current per-session override, empty if unset.
func (o *Orchestrator) Prompt(id uuid.UUID) (string, error) {
	s, err := o.get(id)
	if err != nil {
		return "", err
	}
	var prompt string
	if doErr := s.do(func() { prompt = s.data.Prompt }); doErr != nil {
		return "", fmt.Errorf("chat.Orchestrator.Prompt: %w", ErrSessionNotFound)
	}
	return prompt, nil
}

// ResetPrompt clears the per-session override.
func (o *Orchestrator) ResetPrompt(id uuid.UUID) error {
	return o.SetPrompt(id, "")
}

// SendMessage appends the user message, resolves the answering agent and
// returns the event stream for the turn. The stream emits agent_resolved
// before any content and exactly one terminal event (done or error) — unless
// ctx is cancelled first, in which case the channel just closes and the
// upstream call is abandoned.
func (o *Orchestrator) SendMessage(ctx context.Context, id uuid.UUID, text string) (<-chan Event, error) {
	s, err := o.get(id)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		ID:        uuid.New(),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: time.Now(),
	}

	var (
		boundAgent string
		override   string
		history    []*domain.Message
	)
	if doErr := s.do(func() {
		history = s.snapshot().Messages
		s.append(userMsg)
		boundAgent = s.data.AgentID
		override = s.data.Prompt
	}); doErr != nil {
		return nil, fmt.Errorf("chat.Orchestrator.SendMessage: %w", ErrSessionNotFound)
	}

	// Routing happens once per turn: bound agent wins, otherwise classify.
	agentID := boundAgent
	if agentID == "" {
		agentID = o.router.Resolve(text)
	}
	desc, err := o.registry.Get(agentID)
	if err != nil {
		return nil, fmt.Errorf("chat.Orchestrator.SendMessage: %w", err)
	}

	events := make(chan Event, 16)
	go o.stream(ctx, s, desc, text, override, history, events)

	return events, nil
}

// SendMessageSync runs a turn to completion and returns the materialized
// result instead of a stream.
func (o *Orchestrator) SendMessageSync(ctx context.Context, id uuid.UUID, text string) (*TurnResult, error) {
	events, err := o.SendMessage(ctx, id, text)
	if err != nil {
		return nil, err
	}

	result := &TurnResult{}
	var sb strings.Builder

	for ev := range events {
		switch ev.Type {
		case EventAgentResolved:
			result.AgentID = ev.AgentID
		case EventTextDelta:
			sb.WriteString(ev.Delta)
		case EventTextReplace:
			sb.Reset()
			sb.WriteString(ev.Text)
		case EventToolCall, EventToolResult:
			// materialized in done
		case EventDone:
			result.Message = &domain.Message{
				ID:               uuid.New(),
				Role:             domain.RoleAssistant,
				Content:          sb.String(),
				AgentID:          ev.AgentID,
				SuggestedActions: ev.SuggestedActions,
				ToolCalls:        ev.ToolCalls,
				CreatedAt:        time.Now(),
			}
			if ev.Usage != nil {
				result.Usage = *ev.Usage
			}
			result.ModelID = ev.ModelID
			return result, nil
		case EventError:
			return nil, fmt.Errorf("chat.Orchestrator.SendMessageSync: %s", ev.Message)
		}
	}

	// Stream closed without a terminal event: the context was cancelled.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("chat.Orchestrator.SendMessageSync: %w", ctxErr)
	}
	return nil, errors.New("chat.Orchestrator.SendMessageSync: stream ended without terminal event")
}

// Ask runs a one-shot, history-free completion against a specific agent and
// returns the answer text. Used by the review room Q&A exchange.
func (o *Orchestrator) Ask(ctx context.Context, agentID, question string) (string, error) {
	desc, err := o.registry.Get(agentID)
	if err != nil {
		return "", fmt.Errorf("chat.Orchestrator.Ask: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	upstream, err := o.completer.Complete(cctx, CompletionRequest{
		Agent:        desc,
		Text:         question,
		SystemPrompt: desc.Prompt,
		Tools:        desc.Tools,
	})
	if err != nil {
		return "", fmt.Errorf("chat.Orchestrator.Ask: %w", err)
	}

	var sb strings.Builder
	var final *CompletionResult
	for ev := range upstream {
		if ev.Err != nil {
			return "", fmt.Errorf("chat.Orchestrator.Ask: %w", ev.Err)
		}
		switch ev.Kind {
		case CompletionDelta:
			sb.WriteString(ev.Delta)
		case CompletionReplace:
			sb.Reset()
			sb.WriteString(ev.Text)
		case CompletionToolCall, CompletionToolResult:
			// tool traffic is irrelevant to the answer text
		case CompletionFinal:
			final = ev.Final
		}
	}

	if final != nil && final.Text != "" {
		return final.Text, nil
	}
	if sb.Len() == 0 {
		return "", errors.New("chat.Orchestrator.Ask: empty answer")
	}
	return sb.String(), nil
}

// Shutdown closes every session actor.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, s := range o.sessions {
		s.close()
		delete(o.sessions, id)
	}
}

func (o *Orchestrator) get(id uuid.UUID) (*session, error) {
	o.mu.RLock()
	s, ok := o.sessions[id]
	o.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("chat.Orchestrator: %w", ErrSessionNotFound)
	}
	return s, nil
}

// stream consumes the upstream completion and relays typed events.
// Invariants: agent_resolved precedes all content; text deltas are never
// reordered; exactly one terminal event unless the client went away.
func (o *Orchestrator) stream(ctx context.Context, s *session, desc *domain.AgentDescriptor, text, override string, history []*domain.Message, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(NewAgentResolved(desc.ID)) {
		return
	}

	systemPrompt := desc.Prompt
	if override != "" {
		systemPrompt = override
	}

	// The completion call is long by nature but still bounded; cancelling the
	// client ctx propagates and stops the upstream call.
	cctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	upstream, err := o.completer.Complete(cctx, CompletionRequest{
		Agent:        desc,
		History:      history,
		Text:         text,
		SystemPrompt: systemPrompt,
		Tools:        desc.Tools,
	})
	if err != nil {
		emit(NewError("completion unavailable: " + err.Error()))
		return
	}

	var (
		sb    strings.Builder
		tools []domain.ToolCallInfo
		final *CompletionResult
		upErr error
	)

loop:
	for {
		select {
		case <-ctx.Done():
			// Client cancelled: stop consuming, no terminal event to a caller
			// that has gone away. cancel() releases the upstream call.
			return
		case ev, ok := <-upstream:
			if !ok {
				break loop
			}
			if ev.Err != nil {
				upErr = ev.Err
				break loop
			}
			switch ev.Kind {
			case CompletionDelta:
				sb.WriteString(ev.Delta)
				if !emit(NewTextDelta(ev.Delta)) {
					return
				}
			case CompletionReplace:
				sb.Reset()
				sb.WriteString(ev.Text)
				if !emit(NewTextReplace(ev.Text)) {
					return
				}
			case CompletionToolCall:
				tools = append(tools, domain.ToolCallInfo{
					Name:   ev.ToolName,
					Server: ev.ToolServer,
					Status: domain.ToolCallRunning,
				})
				if !emit(NewToolCall(ev.ToolName, ev.ToolServer)) {
					return
				}
			case CompletionToolResult:
				status := ev.ToolStatus
				if status == "" {
					status = domain.ToolCallOK
				}
				settleToolCall(tools, ev, status)
				if !emit(NewToolResult(ev.ToolName, status)) {
					return
				}
			case CompletionFinal:
				final = ev.Final
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	if upErr != nil {
		// Partial text already delivered stays with the client; the turn ends
		// with a single error terminal and the session history stays intact.
		emit(NewError(upErr.Error()))
		return
	}
	if final == nil {
		if cctx.Err() != nil {
			emit(NewError("completion timed out"))
		} else {
			emit(NewError("completion stream ended without final payload"))
		}
		return
	}

	answer := final.Text
	if answer == "" {
		answer = sb.String()
	}
	if len(final.ToolCalls) > 0 {
		tools = final.ToolCalls
	}

	assistant := &domain.Message{
		ID:               uuid.New(),
		Role:             domain.RoleAssistant,
		Content:          answer,
		AgentID:          desc.ID,
		SuggestedActions: final.SuggestedActions,
		ToolCalls:        tools,
		CreatedAt:        time.Now(),
	}
	if doErr := s.do(func() { s.append(assistant) }); doErr != nil {
		emit(NewError("session closed during turn"))
		return
	}

	o.archiveTurn(s.data.ID, desc.ID, text, assistant)

	emit(NewDone(desc.ID, final.SuggestedActions, tools, final.Usage, final.ModelID))
}

// settleToolCall marks the most recent running invocation of a tool finished.
func settleToolCall(tools []domain.ToolCallInfo, ev CompletionEvent, status domain.ToolCallStatus) {
	for i := len(tools) - 1; i >= 0; i-- {
		if tools[i].Name == ev.ToolName && tools[i].Status == domain.ToolCallRunning {
			tools[i].Status = status
			tools[i].Output = ev.ToolOutput
			tools[i].Error = ev.ToolError
			return
		}
	}
}

// archiveTurn writes the completed turn to the durable archive, best-effort.
// Never blocks or fails the stream.
func (o *Orchestrator) archiveTurn(sessionID uuid.UUID, agentID, userText string, assistant *domain.Message) {
	if o.archive == nil {
		return
	}

	rec := &domain.TurnRecord{
		ID:          uuid.New(),
		SessionID:   sessionID,
		AgentID:     agentID,
		UserText:    userText,
		Answer:      assistant.Content,
		ToolCalls:   len(assistant.ToolCalls),
		CompletedAt: assistant.CreatedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.archive.Append(ctx, rec); err != nil {
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("chat.archiveTurn: failed to append turn record")
		}
	}()
}
