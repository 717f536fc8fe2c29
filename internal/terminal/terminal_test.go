package terminal

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/history"
	"ragchat/internal/rag"
	"ragchat/internal/session"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		kind CommandKind
		arg  int
	}{
		{"What is the capital of France?", CommandNone, -1},
		{"exit", CommandExit, -1},
		{"/quit", CommandExit, -1},
		{"/EXIT", CommandExit, -1},
		{"/retry", CommandRetry, -1},
		{"/history", CommandHistory, -1},
		{"/show 3", CommandShow, 3},
		{"/show", CommandShow, -1},
		{"/show abc", CommandShow, -1},
		{"/show -2", CommandShow, -1},
		{"/copy", CommandCopy, -1},
		{"/clear", CommandClear, -1},
		{"/prev", CommandPrev, -1},
		{"/next", CommandNext, -1},
		{"/status", CommandStatus, -1},
		{"/help", CommandHelp, -1},
		{"/frobnicate", CommandUnknown, -1},
		{"  /retry  ", CommandRetry, -1},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd := ParseCommand(tt.line)
			assert.Equal(t, tt.kind, cmd.Kind)
			assert.Equal(t, tt.arg, cmd.Arg)
		})
	}
}

func TestReader_ReadUserInput(t *testing.T) {
	r := NewReaderFrom(strings.NewReader("  first question \nsecond\nlast without newline"))

	for _, want := range []string{"first question", "second", "last without newline"} {
		got, err := r.ReadUserInput()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := r.ReadUserInput()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestDisplay_PrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayTo(&buf, false)

	processing := 0.42
	d.PrintOutcome(session.Outcome{
		Question: "q",
		Display:  "Paris is the capital.\nSee wiki (http://x)",
		Answer: &rag.Answer{
			Answer:         "**Paris** is the capital.",
			Sources:        []rag.Source{{Page: "3", Excerpt: "Paris is\nthe capital"}},
			ProcessingTime: &processing,
		},
	}, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "│ Paris is the capital.\n")
	assert.Contains(t, out, "│ See wiki (http://x)\n")
	assert.Contains(t, out, "• page 3: Paris is the capital")
	assert.Contains(t, out, "1.5s · server 0.42s")
	assert.NotContains(t, out, "\033[", "no escape codes without color")
}

func TestDisplay_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayTo(&buf, false)

	d.PrintHistory([]history.Entry{
		{Timestamp: "2025-03-01T09:31:00.000000", Question: "newest"},
		{Timestamp: "2025-03-01T09:30:00.000000", Question: "older"},
	}, 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "  4 2025-03-01 09:31  newest", lines[0])
	assert.Equal(t, "  3 2025-03-01 09:30  older", lines[1])

	buf.Reset()
	d.PrintHistory(nil, 0)
	assert.Contains(t, buf.String(), "No history yet")
}

func TestDisplay_PrintStatus(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplayTo(&buf, false)

	d.PrintStatus(session.DisplayState{
		SessionState: session.SessionState{Connection: session.ConnectionDisconnected, LastError: "Not connected to the server"},
	})
	assert.Equal(t, "● Disconnected\n  last error: Not connected to the server\n", buf.String())
}
