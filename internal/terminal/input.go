package terminal

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reader reads user input line by line. One Reader must be used for the
// whole session so buffered input is not lost between prompts.
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a reader over stdin
func NewReader() *Reader {
	return NewReaderFrom(os.Stdin)
}

// NewReaderFrom creates a reader over r
func NewReaderFrom(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadUserInput reads a line of input from the user. A final line without a
// newline is returned before io.EOF.
func (r *Reader) ReadUserInput() (string, error) {
	input, err := r.r.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}

	// Trim whitespace and newline
	return strings.TrimSpace(input), nil
}

// CommandKind identifies a line-mode command
type CommandKind int

const (
	// CommandNone means the line is a question.
	CommandNone CommandKind = iota
	CommandExit
	CommandRetry
	CommandHistory
	CommandShow
	CommandCopy
	CommandClear
	CommandPrev
	CommandNext
	CommandStatus
	CommandHelp
	CommandUnknown
)

// Command is a parsed line-mode command
type Command struct {
	Kind CommandKind
	// Arg is the numeric argument of /show, -1 when absent or invalid.
	Arg int
	Raw string
}

// ParseCommand classifies an input line. Anything not starting with "/" is a
// question, except the bare words exit and quit.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	cmd := Command{Kind: CommandNone, Arg: -1, Raw: line}

	if line == "exit" || line == "quit" {
		cmd.Kind = CommandExit
		return cmd
	}
	if !strings.HasPrefix(line, "/") {
		return cmd
	}

	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/exit", "/quit":
		cmd.Kind = CommandExit
	case "/retry":
		cmd.Kind = CommandRetry
	case "/history":
		cmd.Kind = CommandHistory
	case "/show":
		cmd.Kind = CommandShow
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n >= 0 {
				cmd.Arg = n
			}
		}
	case "/copy":
		cmd.Kind = CommandCopy
	case "/clear":
		cmd.Kind = CommandClear
	case "/prev":
		cmd.Kind = CommandPrev
	case "/next":
		cmd.Kind = CommandNext
	case "/status":
		cmd.Kind = CommandStatus
	case "/help":
		cmd.Kind = CommandHelp
	default:
		cmd.Kind = CommandUnknown
	}
	return cmd
}
