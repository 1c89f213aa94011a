// Package session owns conversation state. A session is the unit of
// concurrency control: at most one turn runs at a time per session, and
// the session is the sole mutator of its history. Independent sessions
// run fully in parallel with no shared mutable state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/orchestrator"
	"github.com/chataigne-ai/chataigne/internal/persist"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
	"github.com/google/uuid"
)

// Status is the session's turn status.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusGenerating    Status = "generating"
	StatusAwaitingTools Status = "awaiting_tool_results"
	StatusFailed        Status = "failed"
)

var (
	ErrSessionBusy     = errors.New("a turn is already in progress")
	ErrNoActiveTurn    = errors.New("no turn in progress")
	ErrUnknownProvider = errors.New("unknown provider")
)

// EventBuffer is the capacity of the rendering event channel. The
// presentation collaborator is expected to drain it promptly; the
// orchestrator never blocks on it past turn cancellation.
const EventBuffer = 256

// Session drives turns against the active provider adapter.
type Session struct {
	id string

	mu       sync.Mutex
	history  *message.History
	adapters map[string]provider.Adapter
	active   string
	status   Status
	cancel   context.CancelFunc

	orch   *orchestrator.Orchestrator
	events chan orchestrator.Event
	log    *slog.Logger
}

// New creates a session. adapters maps provider IDs to their adapter;
// active selects the initial backend.
func New(adapters map[string]provider.Adapter, active string, registry *tool.Registry, cfg orchestrator.Config, log *slog.Logger) (*Session, error) {
	if _, ok := adapters[active]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, active)
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		id:       uuid.NewString(),
		history:  message.NewHistory(),
		adapters: adapters,
		active:   active,
		status:   StatusIdle,
		events:   make(chan orchestrator.Event, EventBuffer),
		log:      log,
	}
	s.orch = orchestrator.New(registry, s.events, cfg, log)
	s.orch.OnState(s.observeState)
	return s, nil
}

// Restore creates a session with a pre-existing history, e.g. one loaded
// by the persistence collaborator.
func Restore(history *message.History, adapters map[string]provider.Adapter, active string, registry *tool.Registry, cfg orchestrator.Config, log *slog.Logger) (*Session, error) {
	s, err := New(adapters, active, registry, cfg, log)
	if err != nil {
		return nil, err
	}
	s.history = history
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Events is the rendering event stream for the presentation
// collaborator.
func (s *Session) Events() <-chan orchestrator.Event { return s.events }

// Status returns the current turn status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ActiveProvider returns the ID of the currently selected backend.
func (s *Session) ActiveProvider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// History returns a read-only snapshot of the conversation.
func (s *Session) History() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.View()
}

// SubmitUserMessage appends the user input and runs one complete turn
// synchronously, returning the turn ID. It fails immediately with
// ErrSessionBusy if a turn is already in progress; callers wanting
// asynchrony run it in their own goroutine and watch Events.
func (s *Session) SubmitUserMessage(ctx context.Context, text string, images ...message.ImagePart) (string, error) {
	s.mu.Lock()
	if s.busyLocked() {
		s.mu.Unlock()
		return "", ErrSessionBusy
	}

	adapter := s.adapters[s.active]
	turnID := uuid.NewString()
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.status = StatusGenerating

	parts := make([]message.Part, 0, 1+len(images))
	parts = append(parts, message.TextPart{Text: text})
	for _, img := range images {
		parts = append(parts, img)
	}
	s.history.Append(message.New(message.RoleUser, parts...))
	view := s.history.View()
	s.mu.Unlock()

	msgs, err := s.orch.RunTurn(turnCtx, turnID, adapter, view)
	cancel()

	s.mu.Lock()
	s.history.Append(msgs...)
	s.cancel = nil
	if err != nil {
		s.status = StatusFailed
	} else {
		s.status = StatusIdle
	}
	s.mu.Unlock()

	return turnID, err
}

// CancelActiveTurn signals cooperative cancellation to the running turn.
// The orchestrator waits for any in-flight tool to return before the
// turn settles as failed-with-cancellation-marker.
func (s *Session) CancelActiveTurn() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return ErrNoActiveTurn
	}
	cancel()
	return nil
}

// SwitchProvider changes the active backend. Only permitted while no
// turn is in progress.
func (s *Session) SwitchProvider(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLocked() {
		return ErrSessionBusy
	}
	if _, ok := s.adapters[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	s.active = id
	return nil
}

// Snapshot serializes the current history for the persistence
// collaborator. Callable at any time; it sees the transcript as of the
// last settled turn boundary.
func (s *Session) Snapshot() ([]byte, error) {
	s.mu.Lock()
	history := message.NewHistory(s.history.View()...)
	s.mu.Unlock()
	return persist.Snapshot(history)
}

// Providers lists the configured backend IDs.
func (s *Session) Providers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.adapters))
	for id := range s.adapters {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) busyLocked() bool {
	return s.status == StatusGenerating || s.status == StatusAwaitingTools
}

// observeState mirrors orchestrator progress into the coarser session
// status. Terminal states are set by SubmitUserMessage itself, after the
// finalized messages have been appended.
func (s *Session) observeState(state orchestrator.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busyLocked() {
		return
	}
	switch state {
	case orchestrator.StateToolExecuting:
		s.status = StatusAwaitingTools
	case orchestrator.StatePlanning, orchestrator.StateGenerating:
		s.status = StatusGenerating
	}
}
