package history

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Reload(t *testing.T) {
	storage := NewMemoryStorage(nil)
	store := NewStore(storage, nil)
	store.Load()

	_, err := store.Append("first?", "one")
	require.NoError(t, err)

	changed, err := store.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "our own write is not a change")

	// Another client appends to the same log.
	otherStorage := NewMemoryStorage(storage.Data())
	other := NewStore(otherStorage, nil)
	other.Load()
	_, err = other.Append("second?", "two")
	require.NoError(t, err)
	require.NoError(t, storage.Save(otherStorage.Data()))

	changed, err = store.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	require.Equal(t, 2, store.Len())
	assert.Equal(t, "second?", store.Recent(1)[0].Question)
}

func TestStore_ReloadKeepsEntriesOnBadPayload(t *testing.T) {
	storage := NewMemoryStorage(nil)
	store := NewStore(storage, nil)
	store.Load()
	_, err := store.Append("first?", "one")
	require.NoError(t, err)

	require.NoError(t, storage.Save([]byte("{half a write")))

	changed, err := store.Reload()
	assert.Error(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, store.Len())
}

func TestWatch_ReloadsExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot_logs.json")
	store := NewStore(NewFileStorage(path), nil)
	store.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	require.NoError(t, Watch(ctx, path, store, func() { reloads.Add(1) }, nil))

	writer := NewStore(NewFileStorage(path), nil)
	writer.Load()
	_, err := writer.Append("from another window", "hello")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return reloads.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "from another window", store.Recent(1)[0].Question)
}

func TestWatch_IgnoresOwnWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot_logs.json")
	store := NewStore(NewFileStorage(path), nil)
	store.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	require.NoError(t, Watch(ctx, path, store, func() { reloads.Add(1) }, nil))

	_, err := store.Append("mine", "ok")
	require.NoError(t, err)

	time.Sleep(4 * watchDebounce)
	assert.Equal(t, int32(0), reloads.Load())
}
