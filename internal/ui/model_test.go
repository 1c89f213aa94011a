package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chataigne-ai/chataigne/internal/message"
	"github.com/chataigne-ai/chataigne/internal/orchestrator"
)

func testModel() *Model {
	m := Model{renderer: plainRenderer{}}
	return &m
}

func TestApply_StreamsTextUntilFlushed(t *testing.T) {
	m := testModel()

	m.apply(orchestrator.TextDelta{Text: "Hel"})
	m.apply(orchestrator.TextDelta{Text: "lo"})
	assert.Empty(t, m.entries, "text stays in the streaming buffer until a boundary")
	assert.Contains(t, m.renderTranscript(), "Hello")

	m.apply(orchestrator.TurnCompleted{})
	require.Len(t, m.entries, 1)
	assert.Equal(t, entryAssistant, m.entries[0].kind)
	assert.Equal(t, "Hello", m.entries[0].text)
}

func TestApply_ToolCallBoundaryFlushesText(t *testing.T) {
	m := testModel()

	m.apply(orchestrator.TextDelta{Text: "checking"})
	m.apply(orchestrator.ToolCallStarted{Name: "add", Arguments: map[string]any{"x": 1.0}})
	m.apply(orchestrator.ToolCallFinished{Result: message.ToolResultPart{Content: "3"}})

	require.Len(t, m.entries, 3)
	assert.Equal(t, entryAssistant, m.entries[0].kind)
	assert.Equal(t, entryTool, m.entries[1].kind)
	assert.Contains(t, m.entries[1].text, "add(")
	assert.Equal(t, "3", m.entries[2].text)
}

func TestApply_FailedTurnShowsReasonAndPartialText(t *testing.T) {
	m := testModel()

	m.apply(orchestrator.TextDelta{Text: "partial"})
	m.apply(orchestrator.TurnFailed{Reason: "canceled by user"})

	require.Len(t, m.entries, 2)
	assert.Equal(t, "partial", m.entries[0].text)
	assert.Equal(t, entryError, m.entries[1].kind)
	assert.Contains(t, m.renderTranscript(), "canceled by user")
}

func TestApply_ErrorResultMarked(t *testing.T) {
	m := testModel()
	m.apply(orchestrator.ToolCallFinished{Result: message.ToolResultPart{Content: "boom", IsError: true}})

	require.Len(t, m.entries, 1)
	assert.Contains(t, m.entries[0].text, "error: boom")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("short", 10))
	long := snippet(string(make([]byte, 300)), 200)
	assert.Len(t, []rune(long), 201)
}

func TestSnippet_NeverSplitsARune(t *testing.T) {
	s := strings.Repeat("héllo ", 50)
	for max := 1; max < 12; max++ {
		got := snippet(s, max)
		assert.True(t, utf8.ValidString(got), "max %d produced invalid UTF-8: %q", max, got)
	}
}
