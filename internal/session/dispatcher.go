package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ragchat/internal/rag"
)

// DefaultAskTimeout bounds a single ask request
const DefaultAskTimeout = 30 * time.Second

// Asker posts questions to the service
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// Dispatcher sends at most one question at a time. Its guard is confined to the
// session loop: Dispatch must run there, and completions are posted back to it.
type Dispatcher struct {
	client  Asker
	timeout time.Duration
	post    func(func()) bool
	logger  *slog.Logger

	base     context.Context
	inFlight bool
}

// NewDispatcher creates a dispatcher whose completions are handed to post
func NewDispatcher(base context.Context, client Asker, timeout time.Duration, post func(func()) bool, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:  client,
		timeout: timeout,
		post:    post,
		logger:  logger,
		base:    base,
	}
}

// InFlight reports whether a request is outstanding
func (d *Dispatcher) InFlight() bool {
	return d.inFlight
}

// Dispatch starts a request unless one is already outstanding, in which case
// it returns ErrRequestInFlight without touching the network.
//
// settle runs on the loop with the guard already released, so the caller can
// apply the result and publish it in the same step. If the loop is gone by
// then, dropped is called instead, from the request goroutine.
func (d *Dispatcher) Dispatch(question string, settle func(*rag.Answer, error), dropped func()) error {
	if d.inFlight {
		return ErrRequestInFlight
	}
	d.inFlight = true

	go func() {
		start := time.Now()
		answer, err := d.ask(question)
		d.logger.Debug("ask settled", "elapsed", time.Since(start), "error", err)

		if !d.post(func() {
			d.inFlight = false
			settle(answer, err)
		}) && dropped != nil {
			dropped()
		}
	}()
	return nil
}

func (d *Dispatcher) ask(question string) (answer *rag.Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			answer = nil
			err = &rag.TransportError{Op: "ask request", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	ctx, cancel := context.WithTimeout(d.base, d.timeout)
	defer cancel()
	return d.client.Ask(ctx, question)
}
