package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragchat/internal/rag"
)

// DefaultHealthTimeout bounds a single health check
const DefaultHealthTimeout = 5 * time.Second

// HealthChecker probes the service health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*rag.Health, error)
}

// Monitor classifies service reachability. It never returns errors: every
// failure, including a timeout, maps to ConnectionDisconnected.
type Monitor struct {
	client  HealthChecker
	timeout time.Duration
	publish func(state ConnectionState, document string)
	logger  *slog.Logger
}

// NewMonitor creates a monitor. publish receives every result and may be nil.
func NewMonitor(client HealthChecker, timeout time.Duration, publish func(ConnectionState, string), logger *slog.Logger) *Monitor {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		client:  client,
		timeout: timeout,
		publish: publish,
		logger:  logger,
	}
}

// CheckNow runs one bounded health check and publishes the result
func (m *Monitor) CheckNow(ctx context.Context) ConnectionState {
	state, document := m.probe(ctx)
	if m.publish != nil {
		m.publish(state, document)
	}
	return state
}

func (m *Monitor) probe(ctx context.Context) (state ConnectionState, document string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health check panicked", "panic", fmt.Sprint(r))
			state, document = ConnectionDisconnected, ""
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	health, err := m.client.HealthCheck(ctx)
	if err != nil {
		m.logger.Info("service unreachable", "error", err, "elapsed", time.Since(start))
		return ConnectionDisconnected, ""
	}
	m.logger.Debug("service healthy", "status", health.StatusCode, "document", health.Document, "elapsed", time.Since(start))
	return ConnectionConnected, health.Document
}

// Run checks on every tick until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}
