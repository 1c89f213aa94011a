// Package budget decides which historical messages survive into the next
// outbound request. It is pure and stateless; one planner instance is
// safely shared by every session.
package budget

import "github.com/chataigne-ai/chataigne/internal/message"

// Counter reports token counts for outbound content. Implementations are
// pure and provider-family specific; the planner must be given a counter
// matching the active provider.
type Counter interface {
	CountText(text string) int
	CountMessage(m message.Message) int
}

// Plan is the subset of a conversation chosen for the next request. It is
// recomputed every round and never persisted.
type Plan struct {
	System   string
	Messages []message.Message // chronological order
	Tokens   int

	// Exceeded is set when even the mandatory messages are over the
	// limit. The plan is still usable; the caller surfaces a warning
	// instead of failing, so the conversation is never silently
	// corrupted.
	Exceeded bool
}

// Compute selects messages for the next request. The system prompt and the
// most recent user message are always retained; the remaining history is
// walked newest to oldest, stopping before the cumulative count would pass
// limit. Messages are never split, and a tool-request message is kept or
// dropped atomically with the messages holding its paired results.
func Compute(history []message.Message, system string, limit int, counter Counter) Plan {
	plan := Plan{System: system, Tokens: counter.CountText(system)}
	if len(history) == 0 {
		plan.Exceeded = plan.Tokens > limit
		return plan
	}

	groups := pairGroups(history)
	include := make([]bool, len(history))

	// Counting goes through the per-message cache, so a provider-backed
	// counter is consulted once per message however many rounds replan
	// the same history.
	counts := make([]int, len(history))
	for i := range history {
		counts[i] = history[i].Tokens(counter.CountMessage)
	}

	// The most recent user message is mandatory, whatever it costs.
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == message.RoleUser {
			plan.Tokens += counts[i]
			include[i] = true
			break
		}
	}
	if plan.Tokens > limit {
		plan.Exceeded = true
	}

	// Everything else is optional, taken newest first in atomic
	// request/result groups until the next group would not fit.
	for i := len(history) - 1; i >= 0; i-- {
		if include[i] {
			continue
		}
		members := groupMembers(groups, groups[i], include)
		groupTokens := 0
		for _, j := range members {
			groupTokens += counts[j]
		}
		if plan.Tokens+groupTokens > limit {
			break
		}
		plan.Tokens += groupTokens
		for _, j := range members {
			include[j] = true
		}
	}

	for i, keep := range include {
		if keep {
			plan.Messages = append(plan.Messages, history[i])
		}
	}
	return plan
}

// pairGroups assigns each history index a group root such that a message
// carrying tool requests shares a root with every message carrying one of
// the paired results. Dropping half of such a group would produce a
// request providers reject as malformed.
func pairGroups(history []message.Message) []int {
	root := make([]int, len(history))
	for i := range root {
		root[i] = i
	}

	requestAt := make(map[string]int)
	for i, m := range history {
		for _, r := range m.ToolRequests() {
			requestAt[r.CallID] = i
		}
	}
	for i, m := range history {
		for _, r := range m.ToolResults() {
			if j, ok := requestAt[r.CallID]; ok {
				a, b := find(root, i), find(root, j)
				if a != b {
					root[b] = a
				}
			}
		}
	}
	for i := range root {
		root[i] = find(root, i)
	}
	return root
}

func find(root []int, i int) int {
	for root[i] != i {
		root[i] = root[root[i]]
		i = root[i]
	}
	return i
}

// groupMembers returns the not-yet-included indices sharing the given
// root, in chronological order.
func groupMembers(roots []int, root int, include []bool) []int {
	var members []int
	for i, r := range roots {
		if r == root && !include[i] {
			members = append(members, i)
		}
	}
	return members
}
