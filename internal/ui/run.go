package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/session"
)

// Options configures the full-screen front-end
type Options struct {
	// RecentLimit is how many entries the history sidebar lists.
	RecentLimit int
	// Markdown renders stored responses in the detail view; nil shows plain text.
	Markdown *MarkdownRenderer
	// ShowSidebar opens the history sidebar at startup.
	ShowSidebar bool
}

// Run drives the TUI until the user quits or ctx is cancelled
func Run(ctx context.Context, ctrl Controller, opts Options) error {
	m := newModel(ctx, ctrl, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Subscribers run on the controller's notifier goroutine, so Send may block
	// on a busy UI without stalling the session loop.
	unsubscribe := ctrl.Subscribe(func(u session.Update) {
		p.Send(updateMsg{update: u})
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
