package history

// notNavigating is the cursor value when no recall is in progress
const notNavigating = -1

// Source is what a Navigator reads questions from. *Store implements it.
type Source interface {
	Len() int
	Question(stepsBack int) (string, bool)
}

// Navigator is a shell-style up/down cursor over past questions, counted back
// from the most recent entry. It never writes to its source and never wraps.
type Navigator struct {
	source Source
	cursor int
}

// NewNavigator creates a navigator that is not navigating
func NewNavigator(source Source) *Navigator {
	return &Navigator{source: source, cursor: notNavigating}
}

// RecallPrevious steps one entry further back and returns its question.
// ok is false, and the cursor stays put, when already at the oldest entry or the log is empty.
func (n *Navigator) RecallPrevious() (question string, ok bool) {
	size := n.source.Len()
	if n.cursor > size-1 {
		// the log shrank underneath us
		n.cursor = size - 1
	}
	if n.cursor >= size-1 {
		return "", false
	}
	q, found := n.source.Question(n.cursor + 1)
	if !found {
		return "", false
	}
	n.cursor++
	return q, true
}

// RecallNext steps one entry toward the present. Reaching the present returns
// ("", true), meaning "clear the input"; ok is false when not navigating.
func (n *Navigator) RecallNext() (question string, ok bool) {
	if n.cursor == notNavigating {
		return "", false
	}
	n.cursor--
	if n.cursor == notNavigating {
		return "", true
	}
	q, found := n.source.Question(n.cursor)
	if !found {
		n.cursor = notNavigating
		return "", true
	}
	return q, true
}

// Reset leaves navigation. Call it on submit and whenever the log changes.
func (n *Navigator) Reset() {
	n.cursor = notNavigating
}

// Cursor returns the current position, -1 when not navigating
func (n *Navigator) Cursor() int {
	return n.cursor
}

// Navigating reports whether a recall is in progress
func (n *Navigator) Navigating() bool {
	return n.cursor != notNavigating
}
