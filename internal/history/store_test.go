package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(time.Second)
		return t
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chatbot_logs.json")
	store := NewStore(NewFileStorage(path), nil)

	entries := store.Load()
	assert.Empty(t, entries)
	assert.Equal(t, 0, store.Len())
}

func TestStore_AppendWritesThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "chatbot_logs.json")
	store := NewStore(NewFileStorage(path), nil)
	store.SetClock(fixedClock(time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)))
	store.Load()

	first, err := store.Append("What is the capital of France?", "**Paris** is the capital.")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T09:30:00.000000", first.Timestamp)

	// Durable before the next call: read the file directly.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk []Entry
	require.NoError(t, json.Unmarshal(data, &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "**Paris** is the capital.", onDisk[0].Response, "raw response is stored")

	_, err = store.Append("And Germany?", "Berlin")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded := NewStore(NewFileStorage(path), nil)
	entries := reloaded.Load()
	require.Len(t, entries, 2)
	assert.Equal(t, "What is the capital of France?", entries[0].Question)
	assert.Equal(t, "And Germany?", entries[1].Question)
	assert.Equal(t, "2025-03-01T09:30:01.000000", entries[1].Timestamp)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp file is renamed away")
}

func TestStore_LoadCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot_logs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"timestamp": "x", "question": `), 0600))

	store := NewStore(NewFileStorage(path), nil)
	entries := store.Load()

	assert.Empty(t, entries)
	corrupt, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err, "corrupted file is kept aside")
	assert.Contains(t, string(corrupt), `"question"`)

	_, err = store.Append("q", "r")
	require.NoError(t, err)
	assert.Len(t, NewStore(NewFileStorage(path), nil).Load(), 1)
}

func TestStore_LoadWrongShape(t *testing.T) {
	store := NewStore(NewMemoryStorage([]byte(`{"sessions": []}`)), nil)
	assert.Empty(t, store.Load())
}

func TestStore_LoadNullArray(t *testing.T) {
	store := NewStore(NewMemoryStorage([]byte(`null`)), nil)
	assert.NotNil(t, store.Load())
	assert.Equal(t, 0, store.Len())
}

func TestStore_LoadPythonWrittenLog(t *testing.T) {
	payload := `[
  {
    "timestamp": "2024-11-02T14:05:09.123456",
    "question": "hello",
    "response": "Error: HTTPConnectionPool(host='172.23.167.1', port=5000)"
  }
]`
	store := NewStore(NewMemoryStorage([]byte(payload)), nil)
	entries := store.Load()
	require.Len(t, entries, 1)

	ts, err := entries[0].Time()
	require.NoError(t, err)
	assert.Equal(t, 14, ts.Hour())
	assert.Equal(t, 123456000, ts.Nanosecond())
}

func TestStore_AppendFailureRollsBack(t *testing.T) {
	storage := NewMemoryStorage(nil)
	store := NewStore(storage, nil)
	store.Load()

	_, err := store.Append("one", "1")
	require.NoError(t, err)

	storage.FailWith(errors.New("disk full"))
	_, err = store.Append("two", "2")
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, store.Len())

	storage.FailWith(nil)
	_, err = store.Append("three", "3")
	require.NoError(t, err)

	var persisted []Entry
	require.NoError(t, json.Unmarshal(storage.Data(), &persisted))
	require.Len(t, persisted, 2)
	assert.Equal(t, "three", persisted[1].Question)
}

func TestStore_RecentAndEntry(t *testing.T) {
	store := NewStore(NewMemoryStorage(nil), nil)
	store.Load()
	for _, q := range []string{"a", "b", "c"} {
		_, err := store.Append(q, "r-"+q)
		require.NoError(t, err)
	}

	recent := store.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Question)
	assert.Equal(t, "b", recent[1].Question)
	assert.Len(t, store.Recent(10), 3)
	assert.Empty(t, store.Recent(0))

	e, ok := store.Entry(0)
	require.True(t, ok)
	assert.Equal(t, "a", e.Question)
	_, ok = store.Entry(3)
	assert.False(t, ok)

	q, ok := store.Question(0)
	assert.True(t, ok)
	assert.Equal(t, "c", q)
	_, ok = store.Question(3)
	assert.False(t, ok)
}

func TestStore_EntriesIsACopy(t *testing.T) {
	store := NewStore(NewMemoryStorage(nil), nil)
	store.Load()
	_, err := store.Append("q", "r")
	require.NoError(t, err)

	entries := store.Entries()
	entries[0].Question = "mutated"

	e, _ := store.Entry(0)
	assert.Equal(t, "q", e.Question)
}
