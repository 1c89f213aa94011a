package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_AssignsUniqueIDs(t *testing.T) {
	a := New(RoleUser, TextPart{Text: "hi"})
	b := New(RoleUser, TextPart{Text: "hi"})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Equal(b))
	assert.True(t, a.Equal(a))
}

func TestTokens_CachesFirstCount(t *testing.T) {
	m := UserText("hello world")

	calls := 0
	count := func(Message) int {
		calls++
		return 7
	}

	assert.Equal(t, 7, m.Tokens(count))
	assert.Equal(t, 7, m.Tokens(count))
	assert.Equal(t, 1, calls)
}

func TestText_ConcatenatesTextParts(t *testing.T) {
	m := New(RoleAssistant,
		TextPart{Text: "The answer "},
		ToolRequestPart{CallID: "c1", Name: "add"},
		TextPart{Text: "is 4."},
	)
	assert.Equal(t, "The answer is 4.", m.Text())
}

func TestHistory_ViewIsASnapshot(t *testing.T) {
	h := NewHistory(UserText("one"))
	view := h.View()
	h.Append(UserText("two"))

	assert.Len(t, view, 1)
	assert.Equal(t, 2, h.Len())
}

func TestHistory_UnresolvedRequests(t *testing.T) {
	h := NewHistory(
		UserText("go"),
		New(RoleAssistant,
			ToolRequestPart{CallID: "c1", Name: "add", Arguments: map[string]any{"x": 1.0}},
			ToolRequestPart{CallID: "c2", Name: "greet"},
		),
		New(RoleTool, ToolResultPart{CallID: "c1", Name: "add", Content: "2"}),
	)

	open := h.UnresolvedRequests()
	require.Len(t, open, 1)
	assert.Equal(t, "c2", open[0].CallID)

	h.Append(New(RoleTool, ToolResultPart{CallID: "c2", Name: "greet", Content: "hello"}))
	assert.Empty(t, h.UnresolvedRequests())
}

func TestJSON_RoundTripsAllPartKinds(t *testing.T) {
	original := New(RoleAssistant,
		TextPart{Text: "computing"},
		ImagePart{Base64: "aGk="},
		ToolRequestPart{CallID: "c1", Name: "add", Arguments: map[string]any{"x": 1.0, "y": 2.0}},
		ToolResultPart{CallID: "c1", Name: "add", Content: "3", IsError: false},
	)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Message
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Role, restored.Role)
	assert.Equal(t, original.Parts, restored.Parts)
}

func TestJSON_UsesChataigneDiscriminators(t *testing.T) {
	m := New(RoleTool, ToolResultPart{CallID: "c9", Name: "greet", Content: "hi", Canceled: true})

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	parts := env["parts"].([]any)
	part := parts[0].(map[string]any)

	assert.Equal(t, "tooloutput", part["type"])
	assert.Equal(t, "c9", part["id"])
	assert.Equal(t, true, part["canceled"])
}

func TestJSON_RejectsUnknownPartType(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"x","role":"user","parts":[{"type":"video"}]}`), &m)
	assert.Error(t, err)
}
