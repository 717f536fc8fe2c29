// Package ui is the full-screen front-end. It holds no business state: every
// action goes through the session controller and every redraw starts from the
// snapshot the controller last published.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/history"
	"ragchat/internal/sanitize"
	"ragchat/internal/session"
)

// Controller is the part of *session.Controller the UI drives
type Controller interface {
	Submit(ctx context.Context, question string) (<-chan session.Outcome, error)
	RetryConnectionCheck(ctx context.Context) (session.ConnectionState, error)
	DisplayState() session.DisplayState
	RecallPrevious() (string, bool)
	RecallNext() (string, bool)
	ResetRecall()
	Recent(n int) []history.Entry
	HistoryLen() int
	Entry(i int) (history.Entry, bool)
	ShowEntry(i int) (session.Turn, bool)
	ClearTranscript()
	Subscribe(fn func(session.Update)) func()
}

const (
	defaultRecentLimit = 10
	sidebarMaxWidth    = 36
	previewLen         = 30
)

type (
	updateMsg struct{ update session.Update }

	submitResultMsg struct {
		question string
		outcome  session.Outcome
		err      error
		elapsed  time.Duration
	}

	retryResultMsg struct {
		state session.ConnectionState
		err   error
	}
)

type model struct {
	ctx         context.Context
	ctrl        Controller
	markdown    *MarkdownRenderer
	recentLimit int

	state    session.DisplayState
	recent   []history.Entry
	selected int
	detail   string
	sidebar  bool
	notice   string

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	width    int
	height   int
}

func newModel(ctx context.Context, ctrl Controller, opts Options) model {
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question about the document..."
	ti.Prompt = "> "
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = labelStyle

	m := model{
		ctx:         ctx,
		ctrl:        ctrl,
		markdown:    opts.Markdown,
		recentLimit: limit,
		state:       ctrl.DisplayState(),
		recent:      ctrl.Recent(limit),
		sidebar:     opts.ShowSidebar,
		input:       ti,
		viewport:    viewport.New(80, 20),
		spin:        s,
		width:       80,
		height:      24,
	}
	m.layout()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case updateMsg:
		m.state = msg.update.State
		if msg.update.Kind == session.UpdateEntryAppended || msg.update.Kind == session.UpdateHistoryReloaded {
			m.recent = m.ctrl.Recent(m.recentLimit)
			m.selected = 0
		}
		if m.detail == "" {
			m.refresh()
		}
		return m, nil

	case submitResultMsg:
		m.applySubmitResult(msg)
		return m, nil

	case retryResultMsg:
		switch {
		case errors.Is(msg.err, session.ErrRetryThrottled):
			m.notice = msg.err.Error()
		case msg.state == session.ConnectionConnected:
			m.notice = "Connected"
		default:
			m.notice = "Still not connected"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if m.detail != "" {
			m.detail = ""
			m.refresh()
			return m, nil
		}
		return m, tea.Quit

	case "enter":
		question := strings.TrimSpace(m.input.Value())
		if question == "" {
			return m, nil
		}
		m.input.Reset()
		m.detail = ""
		m.notice = ""
		return m, m.submit(question)

	case "up":
		if q, ok := m.ctrl.RecallPrevious(); ok {
			m.input.SetValue(q)
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if q, ok := m.ctrl.RecallNext(); ok {
			m.input.SetValue(q)
			m.input.CursorEnd()
		}
		return m, nil

	case "ctrl+r":
		m.notice = "Checking connection..."
		return m, m.retry()

	case "ctrl+l":
		m.ctrl.ClearTranscript()
		m.detail = ""
		m.notice = ""
		return m, nil

	case "ctrl+y":
		m.copyLast()
		return m, nil

	case "ctrl+b":
		m.sidebar = !m.sidebar
		m.layout()
		return m, nil

	case "ctrl+p":
		if m.sidebar && m.selected < len(m.recent)-1 {
			m.selected++
		}
		return m, nil

	case "ctrl+n":
		if m.sidebar && m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "ctrl+o":
		m.openSelected()
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeyBackspace {
		m.ctrl.ResetRecall()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs off the UI goroutine: a stale connection is re-checked before
// the request goes out, which may take up to the health timeout.
func (m model) submit(question string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		start := time.Now()
		ch, err := ctrl.Submit(ctx, question)
		if err != nil {
			return submitResultMsg{question: question, err: err}
		}
		select {
		case o := <-ch:
			return submitResultMsg{question: question, outcome: o, elapsed: time.Since(start)}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *model) applySubmitResult(msg submitResultMsg) {
	if msg.err != nil {
		m.notice = msg.err.Error()
		// Give the question back so it is not lost.
		if !errors.Is(msg.err, session.ErrEmptyQuestion) && m.input.Value() == "" {
			m.input.SetValue(msg.question)
			m.input.CursorEnd()
		}
		return
	}
	if msg.outcome.Err != nil {
		m.notice = ""
		return
	}
	m.notice = fmt.Sprintf("Answered in %s", formatElapsed(msg.elapsed))
	if a := msg.outcome.Answer; a != nil && len(a.Sources) > 0 {
		m.notice += fmt.Sprintf(" · %d sources", len(a.Sources))
	}
}

func (m model) retry() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		state, err := ctrl.RetryConnectionCheck(ctx)
		return retryResultMsg{state: state, err: err}
	}
}

func (m *model) copyLast() {
	text := m.state.LastDisplay
	if text == "" {
		m.notice = "Nothing to copy yet"
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.notice = "Copy failed: " + err.Error()
		return
	}
	m.notice = "Response copied to clipboard"
}

func (m *model) openSelected() {
	if !m.sidebar || m.selected >= len(m.recent) {
		return
	}
	index := m.ctrl.HistoryLen() - 1 - m.selected
	entry, ok := m.ctrl.Entry(index)
	if !ok {
		return
	}
	m.ctrl.ShowEntry(index)

	var b strings.Builder
	b.WriteString(userStyle.Render("You: ") + entry.Question + "\n")
	b.WriteString(dimStyle.Render(entry.Timestamp) + "\n\n")
	if m.markdown != nil {
		b.WriteString(m.markdown.Render(entry.Response))
	} else {
		b.WriteString(sanitize.Response(entry.Response))
	}
	b.WriteString("\n\n" + dimStyle.Render("esc to return"))

	m.detail = b.String()
	m.viewport.SetContent(m.detail)
	m.viewport.GotoTop()
}

func (m model) sidebarWidth() int {
	if !m.sidebar {
		return 0
	}
	w := m.width / 3
	if w > sidebarMaxWidth {
		w = sidebarMaxWidth
	}
	return w
}

// layout recomputes component sizes; header, notice, input and help lines take four rows.
func (m *model) layout() {
	vpWidth := m.width - m.sidebarWidth()
	if vpWidth < 10 {
		vpWidth = 10
	}
	vpHeight := m.height - 4
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = vpWidth
	m.viewport.Height = vpHeight

	inputWidth := m.width - 4
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	if m.markdown != nil {
		m.markdown.SetWidth(vpWidth)
	}
	if m.detail == "" {
		m.refresh()
	}
}

func (m *model) refresh() {
	m.viewport.SetContent(renderTranscript(m.state.Transcript, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderTranscript(turns []session.Turn, width int) string {
	if len(turns) == 0 {
		return dimStyle.Render("Ask a question about the loaded document.")
	}

	body := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(userStyle.Render("> ") + t.Question + "\n")
		switch {
		case t.Pending:
			b.WriteString(dimStyle.Render("waiting for the server...") + "\n")
		case t.IsError:
			b.WriteString(body.Inherit(errorStyle).Render(t.Display) + "\n")
		default:
			b.WriteString(labelStyle.Render("Assistant:") + "\n" + body.Render(t.Display) + "\n")
		}
	}
	return b.String()
}

func (m model) renderHeader() string {
	conn := connectionStyle(m.state.Connection).Render("● " + m.state.Connection.String())
	parts := []string{headerStyle.Render("ragchat"), conn}
	if m.state.Document != "" {
		parts = append(parts, dimStyle.Render(m.state.Document))
	}
	if id := m.state.SessionID; id != "" {
		parts = append(parts, dimStyle.Render("session "+sanitize.Truncate(id, 8)))
	}
	return strings.Join(parts, "  ")
}

func (m model) renderSidebar() string {
	w := m.sidebarWidth()
	lines := []string{headerStyle.Render("History")}
	if len(m.recent) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}
	for i, e := range m.recent {
		text := sanitize.Truncate(sanitize.Preview(e.Question, previewLen), w-3)
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("▸ "+text))
		} else {
			lines = append(lines, "  "+text)
		}
	}
	return sidebarStyle.Width(w - 1).Height(m.viewport.Height).Render(strings.Join(lines, "\n"))
}

func (m model) renderNotice() string {
	switch {
	case m.state.InFlight:
		return m.spin.View() + " Thinking..."
	case m.notice != "":
		return noticeStyle.Render(m.notice)
	case m.state.LastError != "":
		return errorStyle.Render(m.state.LastError)
	}
	return ""
}

func (m model) View() string {
	body := m.viewport.View()
	if m.sidebar {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}

	help := "enter send · ↑/↓ recall · ctrl+r retry · ctrl+l clear · ctrl+y copy · ctrl+b history · esc quit"
	if m.sidebar {
		help = "ctrl+p/ctrl+n select · ctrl+o open · " + help
	}

	var b strings.Builder
	b.WriteString(m.renderHeader() + "\n")
	b.WriteString(body + "\n")
	b.WriteString(m.renderNotice() + "\n")
	b.WriteString(m.input.View() + "\n")
	b.WriteString(dimStyle.Render(sanitize.Truncate(help, m.width)))
	return b.String()
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
