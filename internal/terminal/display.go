package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"ragchat/internal/history"
	"ragchat/internal/rag"
	"ragchat/internal/sanitize"
	"ragchat/internal/session"
)

// Display handles line-mode output with colors and formatting
type Display struct {
	out   io.Writer
	color bool

	mu            sync.Mutex
	spinnerActive bool
	spinnerDone   chan struct{}
	spinnerExited chan struct{}
}

// NewDisplay creates a display writing to stdout, colored when stdout is a terminal
func NewDisplay() *Display {
	return NewDisplayTo(os.Stdout, IsTerminal())
}

// NewDisplayTo creates a display writing to out
func NewDisplayTo(out io.Writer, color bool) *Display {
	return &Display{out: out, color: color}
}

// Color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

func (d *Display) paint(color, s string) string {
	if !d.color {
		return s
	}
	return color + s + colorReset
}

func (d *Display) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

// PrintWelcome displays the welcome message
func (d *Display) PrintWelcome(serverURL, sessionID string) {
	d.printf("%s\n", d.paint(colorCyan, "╔════════════════════════════════════════╗"))
	d.printf("%s\n", d.paint(colorCyan, "║   ragchat - ask your document          ║"))
	d.printf("%s\n", d.paint(colorCyan, "╚════════════════════════════════════════╝"))
	d.printf("\n%s\n", d.paint(colorGray, "Server:  "+serverURL))
	d.printf("%s\n", d.paint(colorGray, "Session: "+sessionID))
	d.printf("%s\n\n", d.paint(colorGray, "Commands: /retry /history /show N /copy /prev /next /clear /exit"))
}

// PrintGoodbye displays the goodbye message
func (d *Display) PrintGoodbye() {
	d.printf("\n%s\n", d.paint(colorCyan, "Goodbye!"))
}

// PrintError displays an error message
func (d *Display) PrintError(err error) {
	d.printf("%s\n", d.paint(colorRed, fmt.Sprintf("✗ Error: %v", err)))
}

// PrintInfo displays an info message
func (d *Display) PrintInfo(msg string) {
	d.printf("%s\n", d.paint(colorCyan, "ℹ "+msg))
}

// PrintWarning displays a warning message
func (d *Display) PrintWarning(msg string) {
	d.printf("%s\n", d.paint(colorYellow, "⚠ "+msg))
}

// PrintSuccess displays a success message
func (d *Display) PrintSuccess(msg string) {
	d.printf("%s\n", d.paint(colorGreen, "✓ "+msg))
}

// PrintStatus shows the connection line
func (d *Display) PrintStatus(ds session.DisplayState) {
	var color string
	switch ds.Connection {
	case session.ConnectionConnected:
		color = colorGreen
	case session.ConnectionDisconnected:
		color = colorRed
	default:
		color = colorYellow
	}
	line := "● " + ds.Connection.String()
	if ds.Document != "" {
		line += " · " + ds.Document
	}
	d.printf("%s\n", d.paint(color, line))
	if ds.LastError != "" {
		d.printf("%s\n", d.paint(colorGray, "  last error: "+ds.LastError))
	}
}

// ShowSpinner displays a spinner with a message until StopSpinner is called
func (d *Display) ShowSpinner(msg string) {
	d.StopSpinner()

	d.mu.Lock()
	d.spinnerActive = true
	done := make(chan struct{})
	exited := make(chan struct{})
	d.spinnerDone, d.spinnerExited = done, exited
	d.mu.Unlock()

	go func() {
		defer close(exited)
		spinnerChars := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i = (i + 1) % len(spinnerChars) {
			d.printf("\r%s", d.paint(colorCyan, spinnerChars[i]+" "+msg))
			select {
			case <-done:
				// Clear the spinner line
				d.printf("\r%s\r", clearLine())
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the currently active spinner and waits for it to clear its line
func (d *Display) StopSpinner() {
	d.mu.Lock()
	if !d.spinnerActive {
		d.mu.Unlock()
		return
	}
	d.spinnerActive = false
	done, exited := d.spinnerDone, d.spinnerExited
	d.mu.Unlock()

	close(done)
	<-exited
}

// PrintPrompt displays the user input prompt
func (d *Display) PrintPrompt() {
	d.printf("\n%s", d.paint(colorGreen, "> "))
}

// PrintUserMessage echoes a submitted question with a timestamp
func (d *Display) PrintUserMessage(question string, at time.Time) {
	d.printf("\n%s\n", d.paint(colorGray, "┌─ You · "+at.Format("15:04:05")))
	d.printf("%s %s\n", d.paint(colorGray, "│"), question)
}

// PrintOutcome prints the settled result of a submission
func (d *Display) PrintOutcome(o session.Outcome, elapsed time.Duration) {
	d.printf("%s\n", d.paint(colorBlue, "├─ Assistant"))
	for _, line := range strings.Split(o.Display, "\n") {
		if o.Err != nil {
			line = d.paint(colorRed, line)
		}
		d.printf("%s %s\n", d.paint(colorGray, "│"), line)
	}
	if o.Answer != nil && len(o.Answer.Sources) > 0 {
		d.printSources(o.Answer.Sources)
	}

	meta := formatDuration(elapsed)
	if o.Answer != nil && o.Answer.ProcessingTime != nil {
		meta += fmt.Sprintf(" · server %.2fs", *o.Answer.ProcessingTime)
	}
	d.printf("%s\n", d.paint(colorGray, "└ "+meta))
}

func (d *Display) printSources(sources []rag.Source) {
	d.printf("%s\n", d.paint(colorGray, "│"))
	d.printf("%s\n", d.paint(colorGray, "│ Sources:"))
	for _, s := range sources {
		line := "│    • page " + string(s.Page)
		if s.Excerpt != "" {
			line += ": " + sanitize.Preview(s.Excerpt, 60)
		}
		d.printf("%s\n", d.paint(colorGray, line))
	}
}

// PrintHistory lists recorded exchanges, most recent first. total is the
// number of entries in the log, used to print stable indexes for /show.
func (d *Display) PrintHistory(entries []history.Entry, total int) {
	if len(entries) == 0 {
		d.PrintInfo("No history yet")
		return
	}
	for i, e := range entries {
		index := total - 1 - i
		stamp := e.Timestamp
		if t, err := e.Time(); err == nil {
			stamp = t.Format("2006-01-02 15:04")
		}
		d.printf("%s %s\n",
			d.paint(colorBold, fmt.Sprintf("%3d", index)),
			d.paint(colorGray, stamp)+"  "+sanitize.Preview(e.Question, 60))
	}
}

// PrintRendered writes pre-rendered text, such as glamour output, untouched
func (d *Display) PrintRendered(s string) {
	d.printf("%s\n", strings.TrimRight(s, "\n"))
}

// ClearScreen clears the terminal
func (d *Display) ClearScreen() {
	if d.color {
		d.printf("\033[2J\033[H")
	}
}

// Cleanup ensures the display is in a good state before exit
func (d *Display) Cleanup() {
	d.StopSpinner()
}

// clearLine returns ANSI escape code to clear the current line
func clearLine() string {
	return "\033[2K"
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// IsTerminal checks if stdout is a terminal
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInteractive reports whether both stdin and stdout are terminals
func IsInteractive() bool {
	return IsTerminal() && term.IsTerminal(int(os.Stdin.Fd()))
}

// Size returns the terminal width and height, or 80x24 when unknown
func Size() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 80, 24
	}
	return width, height
}
