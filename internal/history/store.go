package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store is the append-only question/response log. It is the only writer of its storage.
type Store struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries []Entry
	// saved is the payload last read or written, to tell our own writes apart.
	saved []byte
}

// NewStore creates a store over storage. A nil logger uses slog.Default().
func NewStore(storage Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: storage,
		logger:  logger,
		now:     time.Now,
		entries: []Entry{},
	}
}

// SetClock replaces the time source used for new entries
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Load reads the persisted log. It never fails: unreadable or malformed data
// is logged and replaced by an empty log.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = []Entry{}

	data, err := s.storage.Load()
	if err != nil {
		s.logger.Warn("history unreadable, starting empty", "error", err)
		return s.copyUnlocked()
	}
	if len(data) == 0 {
		return s.copyUnlocked()
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		attrs := []any{"error", err}
		if q, ok := s.storage.(Quarantiner); ok {
			if backup, qerr := q.Quarantine(); qerr == nil {
				attrs = append(attrs, "backup", backup)
			} else {
				attrs = append(attrs, "backup_error", qerr)
			}
		}
		s.logger.Warn("history corrupted, starting empty", attrs...)
		return s.copyUnlocked()
	}

	if entries != nil {
		s.entries = entries
	}
	s.saved = data
	s.logger.Debug("history loaded", "entries", len(s.entries))
	return s.copyUnlocked()
}

// Append records a pair and rewrites the whole log before returning.
// If the write fails the entry is dropped and the error returned.
func (s *Store) Append(question, response string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Timestamp: s.now().Format(TimestampLayout),
		Question:  question,
		Response:  response,
	}
	s.entries = append(s.entries, entry)

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err == nil {
		err = s.storage.Save(data)
	}
	if err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return Entry{}, fmt.Errorf("failed to persist history: %w", err)
	}
	s.saved = data
	return entry, nil
}

// Reload picks up a log rewritten by another client. It reports whether the
// entries changed; a payload this store wrote itself is not a change. Unlike
// Load, an unreadable payload leaves the current entries in place.
func (s *Store) Reload() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.storage.Load()
	if err != nil {
		return false, err
	}
	if bytes.Equal(data, s.saved) {
		return false, nil
	}

	var entries []Entry
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return false, fmt.Errorf("failed to decode history: %w", err)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	s.entries = entries
	s.saved = data
	s.logger.Info("history reloaded", "entries", len(entries))
	return true, nil
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns the entry at index i in append order
func (s *Store) Entry(i int) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Entries returns a copy of the log in append order
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyUnlocked()
}

// Recent returns up to n entries, most recent first
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= len(s.entries)-n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Question returns the question stepsBack entries before the most recent one
// (0 is the most recent). It lets a Navigator read the log directly.
func (s *Store) Question(stepsBack int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := len(s.entries) - 1 - stepsBack
	if i < 0 || i >= len(s.entries) {
		return "", false
	}
	return s.entries[i].Question, true
}

// copyUnlocked must be called with the lock held
func (s *Store) copyUnlocked() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
