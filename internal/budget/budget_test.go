package budget

import (
	"testing"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedCounter charges a flat price per message regardless of content.
type fixedCounter struct {
	perMessage int
	perSystem  int
}

func (c fixedCounter) CountText(string) int             { return c.perSystem }
func (c fixedCounter) CountMessage(message.Message) int { return c.perMessage }

// tallyCounter charges a flat price and records how often each message
// is priced.
type tallyCounter struct {
	calls map[string]int
}

func (c *tallyCounter) CountText(string) int { return 1 }
func (c *tallyCounter) CountMessage(m message.Message) int {
	c.calls[m.ID]++
	return 10
}

func toolExchange(callID string) (message.Message, message.Message) {
	req := message.New(message.RoleAssistant,
		message.ToolRequestPart{CallID: callID, Name: "add", Arguments: map[string]any{"x": 1.0}})
	res := message.New(message.RoleTool,
		message.ToolResultPart{CallID: callID, Name: "add", Content: "2"})
	return req, res
}

func TestCompute_KeepsEverythingUnderLimit(t *testing.T) {
	history := []message.Message{
		message.UserText("first"),
		message.New(message.RoleAssistant, message.TextPart{Text: "hi"}),
		message.UserText("second"),
	}

	plan := Compute(history, "system", 1000, fixedCounter{perMessage: 10, perSystem: 5})

	assert.False(t, plan.Exceeded)
	assert.Equal(t, 35, plan.Tokens)
	require.Len(t, plan.Messages, 3)
	assert.Equal(t, history[0].ID, plan.Messages[0].ID)
	assert.Equal(t, history[2].ID, plan.Messages[2].ID)
}

func TestCompute_DropsOldestFirst(t *testing.T) {
	history := []message.Message{
		message.UserText("old"),
		message.New(message.RoleAssistant, message.TextPart{Text: "old answer"}),
		message.UserText("new"),
	}

	// Room for the system prompt, the mandatory user message, and one more.
	plan := Compute(history, "s", 25, fixedCounter{perMessage: 10, perSystem: 5})

	require.Len(t, plan.Messages, 2)
	assert.Equal(t, history[1].ID, plan.Messages[0].ID)
	assert.Equal(t, history[2].ID, plan.Messages[1].ID)
	assert.False(t, plan.Exceeded)
}

func TestCompute_ToolPairsAreAtomic(t *testing.T) {
	req, res := toolExchange("c1")
	history := []message.Message{
		message.UserText("question"),
		req,
		res,
		message.New(message.RoleAssistant, message.TextPart{Text: "answer"}),
		message.UserText("followup"),
	}

	counter := fixedCounter{perMessage: 10, perSystem: 0}

	// Budget fits the mandatory user message and the final answer, but
	// only half of the request/result pair. The pair must be dropped as
	// a unit rather than split.
	plan := Compute(history, "", 35, counter)

	for _, m := range plan.Messages {
		for _, r := range m.ToolRequests() {
			found := false
			for _, other := range plan.Messages {
				for _, out := range other.ToolResults() {
					if out.CallID == r.CallID {
						found = true
					}
				}
			}
			assert.True(t, found, "request %s has no paired result in plan", r.CallID)
		}
		for _, r := range m.ToolResults() {
			found := false
			for _, other := range plan.Messages {
				for _, in := range other.ToolRequests() {
					if in.CallID == r.CallID {
						found = true
					}
				}
			}
			assert.True(t, found, "result %s has no paired request in plan", r.CallID)
		}
	}
	require.Len(t, plan.Messages, 2)
	assert.Equal(t, history[3].ID, plan.Messages[0].ID)
	assert.Equal(t, history[4].ID, plan.Messages[1].ID)
}

func TestCompute_PairKeptWhenItFits(t *testing.T) {
	req, res := toolExchange("c1")
	history := []message.Message{req, res, message.UserText("next")}

	plan := Compute(history, "", 100, fixedCounter{perMessage: 10})

	require.Len(t, plan.Messages, 3)
	assert.Empty(t, message.NewHistory(plan.Messages...).UnresolvedRequests())
}

func TestCompute_MandatoryMessagesOverLimit(t *testing.T) {
	history := []message.Message{message.UserText("a very long mandatory question")}

	plan := Compute(history, "long system prompt", 5, fixedCounter{perMessage: 50, perSystem: 40})

	assert.True(t, plan.Exceeded)
	require.Len(t, plan.Messages, 1)
	assert.Equal(t, history[0].ID, plan.Messages[0].ID, "system prompt plus last user message must survive")
	assert.Equal(t, 90, plan.Tokens)
}

func TestCompute_EmptyHistory(t *testing.T) {
	plan := Compute(nil, "s", 10, fixedCounter{perSystem: 3})
	assert.Empty(t, plan.Messages)
	assert.Equal(t, 3, plan.Tokens)
	assert.False(t, plan.Exceeded)
}

func TestCompute_CountsEachMessageOnceAcrossRounds(t *testing.T) {
	history := []message.Message{
		message.UserText("first"),
		message.New(message.RoleAssistant, message.TextPart{Text: "hi"}),
		message.UserText("second"),
	}
	counter := &tallyCounter{calls: map[string]int{}}

	Compute(history, "system", 1000, counter)
	history = append(history, message.New(message.RoleAssistant, message.TextPart{Text: "more"}))
	Compute(history, "system", 1000, counter)

	for id, n := range counter.calls {
		assert.Equal(t, 1, n, "message %s priced more than once", id)
	}
	assert.Len(t, counter.calls, 4)
}

func TestEstimator_ScalesWithContent(t *testing.T) {
	e := Estimator{}

	short := e.CountMessage(message.UserText("hi"))
	long := e.CountMessage(message.UserText("a much longer message with many more words in it"))
	assert.Greater(t, long, short)

	withTool := e.CountMessage(message.New(message.RoleAssistant,
		message.ToolRequestPart{CallID: "c", Name: "add", Arguments: map[string]any{"x": 1.0, "y": 2.0}}))
	assert.Greater(t, withTool, 0)
}
