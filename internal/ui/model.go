package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chataigne-ai/chataigne/internal/orchestrator"
	"github.com/chataigne-ai/chataigne/internal/session"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAssistant
	entryTool
	entryNotice
	entryError
)

type entry struct {
	kind entryKind
	text string
}

// Internal messages
type eventMsg struct{ event orchestrator.Event }
type turnDoneMsg struct{ err error }

// Model implements tea.Model over one session.
type Model struct {
	sess     *session.Session
	renderer MarkdownRenderer

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	entries   []entry
	streaming strings.Builder
	busy      bool
	width     int
	height    int
}

func newModel(sess *session.Session, renderer MarkdownRenderer) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		sess:     sess,
		renderer: renderer,
		input:    ti,
		viewport: vp,
		spin:     sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, listenForEvents(m.sess.Events()))
}

func listenForEvents(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func submitTurn(sess *session.Session, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := sess.SubmitUserMessage(context.Background(), text)
		return turnDoneMsg{err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4 // status line + input
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.event)
		m.refresh()
		return m, listenForEvents(m.sess.Events())

	case turnDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: entryError, text: msg.err.Error()})
			m.refresh()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.busy {
			_ = m.sess.CancelActiveTurn()
		}
		return m, nil

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.busy {
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.entries = append(m.entries, entry{kind: entryUser, text: text})
		m.refresh()
		return m, submitTurn(m.sess, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply folds one orchestrator event into the transcript state.
func (m *Model) apply(ev orchestrator.Event) {
	switch ev := ev.(type) {
	case orchestrator.TextDelta:
		m.streaming.WriteString(ev.Text)

	case orchestrator.ToolCallStarted:
		m.flushStreaming()
		args, _ := json.Marshal(ev.Arguments)
		m.entries = append(m.entries, entry{
			kind: entryTool,
			text: fmt.Sprintf("%s(%s)", ev.Name, args),
		})

	case orchestrator.ToolCallFinished:
		text := ev.Result.Content
		if ev.Result.IsError {
			text = "error: " + text
		}
		m.entries = append(m.entries, entry{kind: entryTool, text: snippet(text, 200)})

	case orchestrator.BudgetExceeded:
		m.entries = append(m.entries, entry{
			kind: entryNotice,
			text: fmt.Sprintf("context budget exceeded: %d tokens over a limit of %d", ev.Tokens, ev.Limit),
		})

	case orchestrator.TurnCompleted:
		m.flushStreaming()

	case orchestrator.TurnFailed:
		m.flushStreaming()
		m.entries = append(m.entries, entry{kind: entryError, text: ev.Reason})
	}
}

func (m *Model) flushStreaming() {
	if m.streaming.Len() == 0 {
		return
	}
	m.entries = append(m.entries, entry{kind: entryAssistant, text: m.streaming.String()})
	m.streaming.Reset()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) renderTranscript() string {
	var b strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			b.WriteString(userStyle.Render("> " + e.text))
		case entryAssistant:
			rendered, _ := m.renderer.Render(e.text)
			b.WriteString(rendered)
		case entryTool:
			b.WriteString(toolStyle.Render("⚙ " + e.text))
		case entryNotice:
			b.WriteString(noticeStyle.Render(e.text))
		case entryError:
			b.WriteString(errorStyle.Render("✗ " + e.text))
		}
		b.WriteString("\n")
	}
	if m.streaming.Len() > 0 {
		b.WriteString(m.streaming.String())
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	status := fmt.Sprintf("%s · %s", m.sess.ActiveProvider(), m.sess.Status())
	if m.busy {
		status = m.spin.View() + " " + status + " · esc cancels"
	}
	return m.viewport.View() + "\n" + statusStyle.Render(status) + "\n" + m.input.View()
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never splits a code point.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
