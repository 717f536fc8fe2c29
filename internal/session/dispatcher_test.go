package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/rag"
)

type askFunc func(ctx context.Context, question string) (*rag.Answer, error)

func (f askFunc) Ask(ctx context.Context, question string) (*rag.Answer, error) { return f(ctx, question) }

// runLoop starts a loop for dispatcher tests and stops it on cleanup
func runLoop(t *testing.T) *loop {
	t.Helper()
	l := newLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	l.start()
	go l.run(ctx)
	t.Cleanup(cancel)
	return l
}

func TestDispatcher_SingleFlight(t *testing.T) {
	l := runLoop(t)
	release := make(chan struct{})
	d := NewDispatcher(context.Background(), askFunc(func(ctx context.Context, q string) (*rag.Answer, error) {
		<-release
		return &rag.Answer{Answer: q}, nil
	}), time.Second, l.post, nil)

	settled := make(chan string, 1)
	var firstErr, secondErr error
	var busy bool
	require.NoError(t, l.call(func() {
		firstErr = d.Dispatch("one", func(a *rag.Answer, err error) {
			// The guard is already released when settle runs.
			assert.False(t, d.InFlight())
			settled <- a.Answer
		}, nil)
		busy = d.InFlight()
		secondErr = d.Dispatch("two", func(*rag.Answer, error) { t.Error("second request must not settle") }, nil)
	}))

	require.NoError(t, firstErr)
	assert.True(t, busy)
	assert.ErrorIs(t, secondErr, ErrRequestInFlight)

	close(release)
	select {
	case got := <-settled:
		assert.Equal(t, "one", got)
	case <-time.After(time.Second):
		t.Fatal("request never settled")
	}
}

func TestDispatcher_PanicBecomesTransportError(t *testing.T) {
	l := runLoop(t)
	d := NewDispatcher(context.Background(), askFunc(func(ctx context.Context, q string) (*rag.Answer, error) {
		panic("nil map")
	}), time.Second, l.post, nil)

	errs := make(chan error, 1)
	require.NoError(t, l.call(func() {
		assert.NoError(t, d.Dispatch("q", func(_ *rag.Answer, err error) { errs <- err }, nil))
	}))

	select {
	case err := <-errs:
		assert.True(t, rag.IsTransport(err))
		assert.Contains(t, err.Error(), "nil map")
	case <-time.After(time.Second):
		t.Fatal("request never settled")
	}
}

func TestDispatcher_DroppedWhenLoopStopped(t *testing.T) {
	l := newLoop(nil)
	l.stop()

	d := NewDispatcher(context.Background(), askFunc(func(ctx context.Context, q string) (*rag.Answer, error) {
		return &rag.Answer{Answer: "late"}, nil
	}), time.Second, l.post, nil)

	dropped := make(chan struct{})
	require.NoError(t, d.Dispatch("q", func(*rag.Answer, error) { t.Error("settled on a stopped loop") }, func() { close(dropped) }))

	select {
	case <-dropped:
	case <-time.After(time.Second):
		t.Fatal("dropped was not called")
	}
}

func TestLoop_RejectsWorkBeforeStart(t *testing.T) {
	l := newLoop(nil)

	assert.False(t, l.post(func() { t.Error("ran on an unstarted loop") }))
	assert.ErrorIs(t, l.call(func() {}), ErrNotStarted)

	l.stop()
	assert.ErrorIs(t, l.call(func() {}), ErrClosed)
}
