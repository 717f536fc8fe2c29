package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/atotto/clipboard"

	"ragchat/internal/config"
	"ragchat/internal/session"
	"ragchat/internal/terminal"
	"ragchat/internal/ui"
)

// runLine is the line-oriented front-end used when stdin or stdout is not a
// terminal, or when -mode=line is given.
func runLine(ctx context.Context, ctrl *session.Controller, cfg *config.Config) error {
	display := terminal.NewDisplay()
	defer display.Cleanup()

	width, _ := terminal.Size()
	style := "auto"
	if !terminal.IsTerminal() {
		style = "notty"
	}
	markdown := ui.NewMarkdownRenderer(style, width)

	// Print welcome message
	display.PrintWelcome(cfg.ServerURL, ctrl.ID())
	if state, _ := ctrl.RetryConnectionCheck(ctx); state != session.ConnectionConnected {
		display.PrintWarning(fmt.Sprintf("Server not reachable at %s; use /retry once it is up", cfg.ServerURL))
	}
	display.PrintStatus(ctrl.DisplayState())

	lines, readErr := readLines(ctx, terminal.NewReader())

	// Main conversation loop
	for {
		display.PrintPrompt()

		var line string
		select {
		case <-ctx.Done():
			display.PrintGoodbye()
			return nil
		case l, ok := <-lines:
			if !ok {
				display.PrintGoodbye()
				if err := <-readErr; err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				return nil
			}
			line = l
		}

		cmd := terminal.ParseCommand(line)
		switch cmd.Kind {
		case terminal.CommandExit:
			display.PrintGoodbye()
			return nil

		case terminal.CommandNone:
			if line == "" {
				continue
			}
			ask(ctx, ctrl, display, line)

		case terminal.CommandRetry:
			if _, err := ctrl.RetryConnectionCheck(ctx); err != nil {
				display.PrintWarning(err.Error())
			}
			display.PrintStatus(ctrl.DisplayState())

		case terminal.CommandStatus:
			display.PrintStatus(ctrl.DisplayState())

		case terminal.CommandHistory:
			display.PrintHistory(ctrl.Recent(cfg.RecentLimit), ctrl.HistoryLen())

		case terminal.CommandShow:
			if cmd.Arg < 0 {
				display.PrintWarning("Usage: /show N (see /history for numbers)")
				continue
			}
			entry, ok := ctrl.Entry(cmd.Arg)
			if !ok {
				display.PrintWarning(fmt.Sprintf("No history entry %d", cmd.Arg))
				continue
			}
			ctrl.ShowEntry(cmd.Arg)
			at, err := entry.Time()
			if err != nil {
				at = time.Time{}
			}
			display.PrintUserMessage(entry.Question, at)
			display.PrintRendered(markdown.Render(entry.Response))

		case terminal.CommandCopy:
			text := ctrl.DisplayState().LastDisplay
			if text == "" {
				display.PrintInfo("Nothing to copy yet")
				continue
			}
			if err := clipboard.WriteAll(text); err != nil {
				display.PrintError(fmt.Errorf("copy failed: %w", err))
				continue
			}
			display.PrintSuccess("Response copied to clipboard")

		case terminal.CommandClear:
			ctrl.ClearTranscript()
			display.ClearScreen()
			display.PrintWelcome(cfg.ServerURL, ctrl.ID())

		case terminal.CommandPrev:
			if q, ok := ctrl.RecallPrevious(); ok {
				display.PrintInfo("↑ " + q)
			} else {
				display.PrintInfo("No older question")
			}

		case terminal.CommandNext:
			q, ok := ctrl.RecallNext()
			switch {
			case !ok:
				display.PrintInfo("Not recalling; use /prev first")
			case q == "":
				display.PrintInfo("Back at the newest question")
			default:
				display.PrintInfo("↓ " + q)
			}

		case terminal.CommandHelp:
			display.PrintInfo("/retry      check the server connection again")
			display.PrintInfo("/status     show the connection state")
			display.PrintInfo("/history    list recent questions")
			display.PrintInfo("/show N     show a recorded answer")
			display.PrintInfo("/copy       copy the last answer")
			display.PrintInfo("/prev /next step through past questions")
			display.PrintInfo("/clear      clear the screen")
			display.PrintInfo("/exit       quit")

		case terminal.CommandUnknown:
			display.PrintWarning(fmt.Sprintf("Unknown command %q, try /help", cmd.Raw))
		}
	}
}

// readLines feeds stdin lines to the loop so it can also watch ctx.
// The error channel receives the read error once lines is closed.
func readLines(ctx context.Context, r *terminal.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			line, err := r.ReadUserInput()
			if err != nil {
				errs <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return lines, errs
}

// ask submits one question and waits for its outcome
func ask(ctx context.Context, ctrl *session.Controller, display *terminal.Display, question string) {
	display.PrintUserMessage(question, time.Now())

	start := time.Now()
	ch, err := ctrl.Submit(ctx, question)
	if err != nil {
		display.PrintError(err)
		if errors.Is(err, session.ErrNotConnected) {
			display.PrintInfo("Check that the server is running, then use /retry")
		}
		return
	}

	if terminal.IsTerminal() {
		display.ShowSpinner("Thinking...")
	}
	select {
	case o := <-ch:
		display.StopSpinner()
		display.PrintOutcome(o, time.Since(start))
	case <-ctx.Done():
		display.StopSpinner()
	}
}
