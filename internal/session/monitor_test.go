package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/rag"
)

type healthFunc func(ctx context.Context) (*rag.Health, error)

func (f healthFunc) HealthCheck(ctx context.Context) (*rag.Health, error) { return f(ctx) }

func TestMonitor_CheckNow(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    ConnectionState
		wantDoc string
	}{
		{name: "healthy", status: http.StatusOK, body: `{"document":"guide.pdf"}`, want: ConnectionConnected, wantDoc: "guide.pdf"},
		{name: "healthy without body", status: http.StatusOK, want: ConnectionConnected},
		{name: "unavailable", status: http.StatusServiceUnavailable, want: ConnectionDisconnected},
		{name: "server error", status: http.StatusInternalServerError, want: ConnectionDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			var gotState ConnectionState
			var gotDoc string
			m := NewMonitor(rag.NewClient(server.URL), time.Second, func(s ConnectionState, doc string) {
				gotState, gotDoc = s, doc
			}, nil)

			assert.Equal(t, tt.want, m.CheckNow(context.Background()))
			assert.Equal(t, tt.want, gotState)
			assert.Equal(t, tt.wantDoc, gotDoc)
		})
	}
}

func TestMonitor_TimeoutIsDisconnected(t *testing.T) {
	m := NewMonitor(healthFunc(func(ctx context.Context) (*rag.Health, error) {
		<-ctx.Done()
		return nil, &rag.TransportError{Op: "health check", Err: ctx.Err()}
	}), 20*time.Millisecond, nil, nil)

	start := time.Now()
	assert.Equal(t, ConnectionDisconnected, m.CheckNow(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestMonitor_PanicIsDisconnected(t *testing.T) {
	m := NewMonitor(healthFunc(func(ctx context.Context) (*rag.Health, error) {
		panic("bad transport")
	}), time.Second, nil, nil)

	assert.Equal(t, ConnectionDisconnected, m.CheckNow(context.Background()))
}

func TestMonitor_Run(t *testing.T) {
	var mu sync.Mutex
	var results []ConnectionState
	m := NewMonitor(healthFunc(func(ctx context.Context) (*rag.Health, error) {
		return &rag.Health{StatusCode: http.StatusOK}, nil
	}), time.Second, func(s ConnectionState, _ string) {
		mu.Lock()
		results = append(results, s)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Unknown", ConnectionUnknown.String())
	assert.Equal(t, "Connected", ConnectionConnected.String())
	assert.Equal(t, "Disconnected", ConnectionDisconnected.String())
}
