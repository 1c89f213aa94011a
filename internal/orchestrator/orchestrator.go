// Package orchestrator drives one turn of the conversation: build the
// budgeted request, stream the model response, execute tool calls, and
// loop until the model produces a final answer or a limit is hit.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chataigne-ai/chataigne/internal/budget"
	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/provider"
	"github.com/chataigne-ai/chataigne/internal/tool"
)

// ErrTurnCanceled is returned when a turn ends through cooperative
// cancellation. The transcript up to that point is preserved and closed
// with a cancellation marker.
var ErrTurnCanceled = errors.New("turn canceled")

// Config bounds a turn's resources.
type Config struct {
	SystemPrompt    string
	TokenBudget     int
	MaxToolRounds   int
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxTurnDuration time.Duration
	Generation      *provider.GenerateConfig
}

// Orchestrator is stateless between turns; per-turn state lives on the
// call stack, so one instance serves a session's consecutive turns.
type Orchestrator struct {
	registry *tool.Registry
	events   chan<- Event
	cfg      Config
	log      *slog.Logger

	// onState observes state transitions; the session uses it to expose
	// turn status. Optional.
	onState func(State)

	// sleep is swapped out in retry tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(registry *tool.Registry, events chan<- Event, cfg Config, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 10
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &Orchestrator{
		registry: registry,
		events:   events,
		cfg:      cfg,
		log:      log,
		sleep:    sleepCtx,
	}
}

// OnState registers a state observer. Must be called before RunTurn.
func (o *Orchestrator) OnState(fn func(State)) {
	o.onState = fn
}

// RunTurn executes one complete turn against adapter, starting from the
// given history view. It returns the messages to append to the canonical
// history; on failure the slice still holds the partial transcript,
// closed with a failure marker, and the error describes the cause.
func (o *Orchestrator) RunTurn(ctx context.Context, turnID string, adapter provider.Adapter, history []message.Message) ([]message.Message, error) {
	if o.cfg.MaxTurnDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.MaxTurnDuration)
		defer cancel()
	}

	working := make([]message.Message, len(history))
	copy(working, history)
	var appended []message.Message

	defer o.setState(StateIdle)

	for round := 0; ; round++ {
		o.setState(StatePlanning)
		plan := budget.Compute(working, o.cfg.SystemPrompt, o.cfg.TokenBudget, adapter.Counter())
		if plan.Exceeded {
			o.log.Warn("context budget exceeded", "turn", turnID, "tokens", plan.Tokens, "limit", o.cfg.TokenBudget)
			o.emit(ctx, BudgetExceeded{TurnID: turnID, Tokens: plan.Tokens, Limit: o.cfg.TokenBudget})
		}
		req := provider.BuildRequest(plan, o.registry.Declarations(), o.cfg.Generation)

		o.setState(StateGenerating)
		assistant, err := o.generate(ctx, turnID, adapter, req)
		if err != nil {
			if len(assistant.Parts) > 0 {
				appended = append(appended, assistant)
				appended = append(appended, cancelResults(assistant.ToolRequests())...)
			}
			return o.fail(turnID, appended, err)
		}
		working = append(working, assistant)
		appended = append(appended, assistant)

		calls := assistant.ToolRequests()
		if len(calls) == 0 {
			break
		}

		o.setState(StateToolExecuting)
		results, err := o.executeTools(ctx, turnID, calls)
		working = append(working, results...)
		appended = append(appended, results...)
		if err != nil {
			return o.fail(turnID, appended, err)
		}

		if round+1 >= o.cfg.MaxToolRounds {
			notice := message.New(message.RoleUser,
				message.TextPart{Text: fmt.Sprintf("[Max tool rounds (%d) reached, answer with what you have]", o.cfg.MaxToolRounds)})
			appended = append(appended, notice)
			o.log.Warn("max tool rounds reached", "turn", turnID, "rounds", o.cfg.MaxToolRounds)
			break
		}
	}

	o.setState(StateFinalizing)
	o.emitFinal(TurnCompleted{TurnID: turnID})
	return appended, nil
}

// generate consumes one model round, retrying transient provider errors
// with exponential backoff. Retries happen only before any text has been
// forwarded to the presentation layer; partial output is never replayed.
// When a terminal failure interrupts a stream after text was forwarded,
// the partial assistant message is returned alongside the error so the
// transcript keeps what the user already saw.
func (o *Orchestrator) generate(ctx context.Context, turnID string, adapter provider.Adapter, req provider.Request) (message.Message, error) {
	backoff := o.cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return message.Message{}, err
		}

		parts, forwarded, err := o.consumeStream(ctx, turnID, adapter, req)
		if err == nil {
			return message.New(message.RoleAssistant, parts...), nil
		}

		if forwarded || !provider.IsRetryable(err) || attempt >= o.cfg.MaxRetries {
			if forwarded {
				return message.New(message.RoleAssistant, parts...), err
			}
			return message.Message{}, err
		}

		delay := backoff
		if hint := provider.RetryAfterHint(err); hint != nil && *hint > delay {
			delay = *hint
		}
		o.log.Warn("provider call failed, retrying", "turn", turnID, "attempt", attempt+1, "delay", delay, "err", err)
		if err := o.sleep(ctx, delay); err != nil {
			return message.Message{}, err
		}
		backoff *= 2
	}
}

// consumeStream opens the provider stream and drains it, forwarding text
// fragments as they arrive and accumulating completed tool calls. It
// reports whether any text reached the presentation layer.
func (o *Orchestrator) consumeStream(ctx context.Context, turnID string, adapter provider.Adapter, req provider.Request) (parts []message.Part, forwarded bool, err error) {
	stream, err := adapter.Stream(ctx, req)
	if err != nil {
		return nil, false, err
	}
	defer stream.Close()

	var text strings.Builder
	flushText := func() {
		if text.Len() > 0 {
			parts = append(parts, message.TextPart{Text: text.String()})
			text.Reset()
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			flushText()
			return parts, forwarded, err
		}

		delta, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			flushText()
			return parts, forwarded, err
		}

		switch d := delta.(type) {
		case provider.TextDelta:
			text.WriteString(d.Text)
			forwarded = true
			o.emit(ctx, TextDelta{TurnID: turnID, Text: d.Text})
		case provider.ToolCallComplete:
			flushText()
			parts = append(parts, d.Call)
		case provider.ToolCallDelta:
			// Fragment bookkeeping is the adapter's job; only the
			// reassembled call matters here.
		case provider.UsageDelta:
			o.log.Debug("usage", "turn", turnID, "prompt_tokens", d.PromptTokens, "completion_tokens", d.CompletionTokens)
		case provider.StreamEnd:
			flushText()
			return parts, forwarded, nil
		}
	}

	flushText()
	return parts, forwarded, nil
}

// executeTools invokes the accumulated calls strictly in emission order;
// some tools have ordering-dependent side effects. Each result is
// appended as its own tool message so budget pairing stays per call.
func (o *Orchestrator) executeTools(ctx context.Context, turnID string, calls []message.ToolRequestPart) ([]message.Message, error) {
	var out []message.Message
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			out = append(out, cancelResults(calls[i:])...)
			return out, err
		}

		o.emit(ctx, ToolCallStarted{TurnID: turnID, CallID: call.CallID, Name: call.Name, Arguments: call.Arguments})
		result, err := o.registry.Invoke(ctx, call)
		if err != nil {
			// The in-flight tool has already returned; close the
			// remaining requests so no request is left orphaned.
			out = append(out, cancelResults(calls[i:])...)
			return out, err
		}
		o.emit(ctx, ToolCallFinished{TurnID: turnID, CallID: call.CallID, Result: result})
		out = append(out, message.New(message.RoleTool, result))
	}
	return out, nil
}

// cancelResults pairs every not-yet-executed request with a canceled
// result, keeping the transcript free of half-written pairs.
func cancelResults(calls []message.ToolRequestPart) []message.Message {
	msgs := make([]message.Message, 0, len(calls))
	for _, call := range calls {
		msgs = append(msgs, message.New(message.RoleTool, message.ToolResultPart{
			CallID:   call.CallID,
			Name:     call.Name,
			Content:  "Tool call canceled",
			IsError:  true,
			Canceled: true,
		}))
	}
	return msgs
}

// fail closes the partial transcript with a marker message the
// presentation layer can render in place.
func (o *Orchestrator) fail(turnID string, appended []message.Message, cause error) ([]message.Message, error) {
	o.setState(StateFailed)

	reason := cause.Error()
	err := cause
	if errors.Is(cause, context.Canceled) {
		reason = "canceled by user"
		err = ErrTurnCanceled
	} else if errors.Is(cause, context.DeadlineExceeded) {
		reason = "turn duration limit exceeded"
	}

	marker := message.New(message.RoleUser,
		message.TextPart{Text: fmt.Sprintf("[Turn failed: %s]", reason)})
	appended = append(appended, marker)

	o.log.Error("turn failed", "turn", turnID, "reason", reason)
	o.emitFinal(TurnFailed{TurnID: turnID, Reason: reason})
	return appended, err
}

func (o *Orchestrator) setState(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}

// emit delivers an event without ever wedging the turn: it blocks only
// until the turn context is done.
func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	}
}

// emitFinal delivers a terminal event even when the turn context is
// already canceled, dropping it only if the collaborator's buffer is
// full.
func (o *Orchestrator) emitFinal(ev Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	default:
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
