package session

import (
	"ragchat/internal/history"
	"ragchat/internal/rag"
)

// ConnectionState is the last known reachability of the service
type ConnectionState int

const (
	ConnectionUnknown ConnectionState = iota
	ConnectionConnected
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnected:
		return "Connected"
	case ConnectionDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// SessionState is the controller state a UI reacts to
type SessionState struct {
	Connection ConnectionState
	InFlight   bool
	LastError  string
}

// Turn is one exchange shown on screen. Display is already sanitized.
type Turn struct {
	Question string
	Display  string
	IsError  bool
	Pending  bool
}

// DisplayState is an immutable snapshot of everything a UI renders
type DisplayState struct {
	SessionState
	SessionID string
	// Document is the identifier the health endpoint reported, if any.
	Document string
	// LastDisplay is the most recent sanitized answer, for copy actions.
	LastDisplay string
	Transcript  []Turn
}

// UpdateKind tells subscribers what changed
type UpdateKind int

const (
	// UpdateState carries a new DisplayState.
	UpdateState UpdateKind = iota
	// UpdateEntryAppended carries the entry just written to history.
	UpdateEntryAppended
	// UpdateHistoryReloaded means another client rewrote the history log.
	UpdateHistoryReloaded
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateEntryAppended:
		return "entry_appended"
	case UpdateHistoryReloaded:
		return "history_reloaded"
	}
	return "state"
}

// Update is delivered to subscribers in the order the controller produced it
type Update struct {
	Kind  UpdateKind
	State DisplayState
	Entry *history.Entry
}

// Outcome is the settled result of one submission
type Outcome struct {
	Question string
	// Display is the sanitized answer or the formatted error.
	Display string
	Answer  *rag.Answer
	Err     error
	// Entry is set when the exchange was recorded in history.
	Entry *history.Entry
}
