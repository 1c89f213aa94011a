package orchestrator

// State is the orchestrator's position in the turn state machine:
// Idle → Planning → Generating → (ToolExecuting ⇄ Generating)* →
// Finalizing → Idle, with Failed absorbing from any state.
type State string

const (
	StateIdle          State = "idle"
	StatePlanning      State = "planning"
	StateGenerating    State = "generating"
	StateToolExecuting State = "tool_executing"
	StateFinalizing    State = "finalizing"
	StateFailed        State = "failed"
)
