// Package ui is the terminal front end: a Bubble Tea program that
// submits user turns to a session and renders its event stream. It is a
// presentation collaborator only; all conversation state lives in the
// session.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/chataigne-ai/chataigne/internal/session"
)

// UI wraps the Bubble Tea program for one session.
type UI struct {
	program *tea.Program
}

func New(sess *session.Session) *UI {
	var renderer MarkdownRenderer
	if g, err := NewGlamourRenderer(100); err == nil {
		renderer = g
	} else {
		renderer = plainRenderer{}
	}

	model := newModel(sess, renderer)
	return &UI{program: tea.NewProgram(model, tea.WithAltScreen())}
}

// Start runs the program until the user quits.
func (u *UI) Start() error {
	_, err := u.program.Run()
	return err
}
