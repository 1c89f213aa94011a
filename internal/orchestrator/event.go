package orchestrator

import "github.com/chataigne-ai/chataigne/internal/message"

// Event is the interface for all rendering events handed to the
// presentation collaborator. The collaborator handles events via type
// switch and never reports back.
type Event interface {
	isEvent()
}

// TextDelta is one streamed text fragment, delivered in the exact order
// the provider emitted it.
type TextDelta struct {
	TurnID string
	Text   string
}

func (TextDelta) isEvent() {}

// ToolCallStarted is emitted immediately before a tool is invoked.
type ToolCallStarted struct {
	TurnID    string
	CallID    string
	Name      string
	Arguments map[string]any
}

func (ToolCallStarted) isEvent() {}

// ToolCallFinished carries the result (or error result) of one tool
// invocation.
type ToolCallFinished struct {
	TurnID string
	CallID string
	Result message.ToolResultPart
}

func (ToolCallFinished) isEvent() {}

// BudgetExceeded warns that even the mandatory messages are over the
// context budget. The turn proceeds with best-effort context.
type BudgetExceeded struct {
	TurnID string
	Tokens int
	Limit  int
}

func (BudgetExceeded) isEvent() {}

// TurnCompleted marks a successful end of turn.
type TurnCompleted struct {
	TurnID string
}

func (TurnCompleted) isEvent() {}

// TurnFailed marks a terminal failure, including user cancellation.
type TurnFailed struct {
	TurnID string
	Reason string
}

func (TurnFailed) isEvent() {}
