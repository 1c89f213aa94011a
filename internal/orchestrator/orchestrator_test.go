package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step scripts one adapter.Stream call: an open error, or a delta
// sequence optionally terminated by a mid-stream error.
type step struct {
	openErr  error
	deltas   []provider.Delta
	afterErr error
}

type scriptedAdapter struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (a *scriptedAdapter) ID() string              { return "scripted" }
func (a *scriptedAdapter) Counter() budget.Counter { return budget.Estimator{} }

func (a *scriptedAdapter) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls >= len(a.steps) {
		return nil, provider.Rejected("script exhausted", nil)
	}
	s := a.steps[a.calls]
	a.calls++
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &scriptedStream{deltas: s.deltas, afterErr: s.afterErr}, nil
}

type scriptedStream struct {
	deltas   []provider.Delta
	afterErr error
	i        int
}

func (s *scriptedStream) Next() (provider.Delta, error) {
	if s.i < len(s.deltas) {
		d := s.deltas[s.i]
		s.i++
		return d, nil
	}
	if s.afterErr != nil {
		return nil, s.afterErr
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

func textRound(fragments ...string) step {
	var deltas []provider.Delta
	for _, f := range fragments {
		deltas = append(deltas, provider.TextDelta{Text: f})
	}
	deltas = append(deltas, provider.StreamEnd{StopReason: "end_turn"})
	return step{deltas: deltas}
}

func toolRound(calls ...message.ToolRequestPart) step {
	var deltas []provider.Delta
	for _, c := range calls {
		deltas = append(deltas, provider.ToolCallComplete{Call: c})
	}
	deltas = append(deltas, provider.StreamEnd{StopReason: "tool_use"})
	return step{deltas: deltas}
}

func newTestOrchestrator(t *testing.T, registry *tool.Registry, events chan Event, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 100000
	}
	o := New(registry, events, cfg, slog.New(slog.DiscardHandler))
	o.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return o
}

func recordingRegistry(t *testing.T, order *[]string) *tool.Registry {
	t.Helper()
	var mu sync.Mutex
	record := func(name, out string) tool.Definition {
		return tool.Definition{
			Declaration: tool.Declaration{Name: name, Description: name},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				mu.Lock()
				*order = append(*order, name)
				mu.Unlock()
				return out, nil
			},
		}
	}
	r, err := tool.NewRegistry(record("add", "4"), record("greet", "Hello, you"))
	require.NoError(t, err)
	return r
}

func drain(events chan Event) []Event {
	close(events)
	var out []Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestRunTurn_TextOnly(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)
	adapter := &scriptedAdapter{steps: []step{textRound("Hel", "lo!")}}

	o := newTestOrchestrator(t, registry, events, Config{MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("hi")})

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, message.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hello!", msgs[0].Text())

	got := drain(events)
	require.Len(t, got, 3)
	assert.Equal(t, TextDelta{TurnID: "t1", Text: "Hel"}, got[0])
	assert.Equal(t, TextDelta{TurnID: "t1", Text: "lo!"}, got[1])
	assert.Equal(t, TurnCompleted{TurnID: "t1"}, got[2])
}

func TestRunTurn_ToolCallsExecuteInEmissionOrder(t *testing.T) {
	var order []string
	registry := recordingRegistry(t, &order)
	events := make(chan Event, 64)

	addCall := message.ToolRequestPart{CallID: "c1", Name: "add", Arguments: map[string]any{"x": 2.0, "y": 2.0}}
	greetCall := message.ToolRequestPart{CallID: "c2", Name: "greet", Arguments: map[string]any{"name": "you"}}
	adapter := &scriptedAdapter{steps: []step{
		toolRound(addCall, greetCall),
		textRound("2+2 is 4. Hello!"),
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter,
		[]message.Message{message.UserText("What's 2+2 and then greet me")})

	require.NoError(t, err)
	assert.Equal(t, []string{"add", "greet"}, order)

	// assistant(requests), tool(add), tool(greet), assistant(text)
	require.Len(t, msgs, 4)
	assert.Equal(t, "c1", msgs[1].ToolResults()[0].CallID)
	assert.Equal(t, "c2", msgs[2].ToolResults()[0].CallID)
	assert.Empty(t, message.NewHistory(msgs...).UnresolvedRequests())
}

func TestRunTurn_RateLimitedTwiceThenSucceeds(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)

	adapter := &scriptedAdapter{steps: []step{
		{openErr: provider.RateLimited("slow down", nil)},
		{openErr: provider.RateLimited("slow down", nil)},
		textRound("done"),
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxRetries: 3, MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("go")})

	require.NoError(t, err)
	assert.Equal(t, "done", msgs[0].Text())

	// No duplicated visible text: exactly one fragment reached the
	// presentation layer.
	var textEvents int
	for _, ev := range drain(events) {
		if _, ok := ev.(TextDelta); ok {
			textEvents++
		}
	}
	assert.Equal(t, 1, textEvents)
}

func TestRunTurn_NoRetryAfterPartialText(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)

	adapter := &scriptedAdapter{steps: []step{
		{deltas: []provider.Delta{provider.TextDelta{Text: "partial"}}, afterErr: provider.Unavailable("connection reset", nil)},
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxRetries: 3, MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("go")})

	require.Error(t, err)
	assert.True(t, provider.IsRetryable(err), "cause should still carry the provider error")
	assert.Equal(t, 1, adapter.calls, "must not retry once text was forwarded")

	// The text the user already saw stays in the transcript, then the
	// failure marker closes it.
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "partial", msgs[0].Text())
	assert.Contains(t, msgs[len(msgs)-1].Text(), "[Turn failed:")
}

func TestRunTurn_MidStreamFailureCancelsPendingToolRequests(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)

	adapter := &scriptedAdapter{steps: []step{
		{
			deltas: []provider.Delta{
				provider.TextDelta{Text: "let me check"},
				provider.ToolCallComplete{Call: message.ToolRequestPart{CallID: "c1", Name: "add", Arguments: map[string]any{}}},
			},
			afterErr: provider.Unavailable("connection reset", nil),
		},
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxRetries: 3, MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("go")})

	require.Error(t, err)
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "let me check", msgs[0].Text())
	assert.Empty(t, message.NewHistory(msgs...).UnresolvedRequests())
	assert.Contains(t, msgs[len(msgs)-1].Text(), "[Turn failed:")
}

func TestRunTurn_RejectedIsNotRetried(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)

	adapter := &scriptedAdapter{steps: []step{
		{openErr: provider.Rejected("malformed request", nil)},
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxRetries: 3, MaxToolRounds: 5})
	_, err = o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("go")})

	require.Error(t, err)
	assert.Equal(t, 1, adapter.calls)

	var failed bool
	for _, ev := range drain(events) {
		if _, ok := ev.(TurnFailed); ok {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestRunTurn_MaxToolRoundsAppendsTruncationNotice(t *testing.T) {
	var order []string
	registry := recordingRegistry(t, &order)
	events := make(chan Event, 64)

	call := message.ToolRequestPart{CallID: "c1", Name: "add", Arguments: map[string]any{}}
	adapter := &scriptedAdapter{steps: []step{
		toolRound(call),
		toolRound(message.ToolRequestPart{CallID: "c2", Name: "add", Arguments: map[string]any{}}),
	}}

	o := newTestOrchestrator(t, registry, events, Config{MaxToolRounds: 2})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("loop")})

	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Contains(t, last.Text(), "Max tool rounds")
	assert.Empty(t, message.NewHistory(msgs...).UnresolvedRequests())
}

func TestRunTurn_CancellationWaitsForInFlightTool(t *testing.T) {
	events := make(chan Event, 64)

	started := make(chan struct{})
	returned := make(chan struct{})
	blocking := tool.Definition{
		Declaration: tool.Declaration{Name: "slow", Description: "Blocks until canceled"},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			close(started)
			<-ctx.Done()
			close(returned)
			return "", ctx.Err()
		},
	}
	registry, err := tool.NewRegistry(blocking)
	require.NoError(t, err)

	adapter := &scriptedAdapter{steps: []step{
		toolRound(
			message.ToolRequestPart{CallID: "c1", Name: "slow", Arguments: map[string]any{}},
			message.ToolRequestPart{CallID: "c2", Name: "slow", Arguments: map[string]any{}},
		),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	o := newTestOrchestrator(t, registry, events, Config{MaxToolRounds: 5})
	msgs, err := o.RunTurn(ctx, "t1", adapter, []message.Message{message.UserText("go")})

	require.ErrorIs(t, err, ErrTurnCanceled)
	select {
	case <-returned:
	default:
		t.Fatal("turn failed before the in-flight tool returned")
	}

	// Both requests end up paired: the in-flight one and the never-run
	// one both get canceled results, then the failure marker closes the
	// transcript.
	assert.Empty(t, message.NewHistory(msgs...).UnresolvedRequests())
	assert.Contains(t, msgs[len(msgs)-1].Text(), "[Turn failed: canceled by user]")
}

func TestRunTurn_BudgetExceededWarningStillRuns(t *testing.T) {
	events := make(chan Event, 64)
	registry, err := tool.NewRegistry()
	require.NoError(t, err)
	adapter := &scriptedAdapter{steps: []step{textRound("tight but fine")}}

	o := newTestOrchestrator(t, registry, events, Config{TokenBudget: 1, MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter,
		[]message.Message{message.UserText("a question that certainly costs more than one token")})

	require.NoError(t, err)
	assert.Equal(t, "tight but fine", msgs[0].Text())

	var warned bool
	for _, ev := range drain(events) {
		if _, ok := ev.(BudgetExceeded); ok {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunTurn_StateTransitions(t *testing.T) {
	registry, err := tool.NewRegistry()
	require.NoError(t, err)
	adapter := &scriptedAdapter{steps: []step{textRound("ok")}}

	o := newTestOrchestrator(t, registry, nil, Config{MaxToolRounds: 5})
	var states []State
	o.OnState(func(s State) { states = append(states, s) })

	_, err = o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("hi")})
	require.NoError(t, err)

	assert.Equal(t, []State{StatePlanning, StateGenerating, StateFinalizing, StateIdle}, states)
}

func TestRunTurn_RetriesExhaustedFails(t *testing.T) {
	registry, err := tool.NewRegistry()
	require.NoError(t, err)
	adapter := &scriptedAdapter{steps: []step{
		{openErr: provider.Unavailable("down", errors.New("dial tcp"))},
		{openErr: provider.Unavailable("down", errors.New("dial tcp"))},
	}}

	o := newTestOrchestrator(t, registry, nil, Config{MaxRetries: 1, MaxToolRounds: 5})
	msgs, err := o.RunTurn(context.Background(), "t1", adapter, []message.Message{message.UserText("go")})

	require.Error(t, err)
	assert.Equal(t, 2, adapter.calls)
	assert.Contains(t, msgs[len(msgs)-1].Text(), "[Turn failed:")
}
