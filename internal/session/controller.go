// Package session holds the chat session controller: connection tracking,
// single-flight request dispatch, transcript and history bookkeeping.
//
// Every piece of controller state is owned by one goroutine (the session
// loop). Network calls run elsewhere and hand their results back to the loop,
// and subscribers receive immutable snapshots in the order they were made.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"ragchat/internal/history"
	"ragchat/internal/rag"
	"ragchat/internal/sanitize"
)

// Service is the remote question-answering API
type Service interface {
	HealthChecker
	Asker
}

// Options configures a Controller
type Options struct {
	Client  Service
	History *history.Store

	HealthTimeout time.Duration
	AskTimeout    time.Duration
	// PollInterval enables periodic health checks; zero disables them.
	PollInterval time.Duration
	// RetryLimiter throttles RetryConnectionCheck; nil means unlimited.
	RetryLimiter *rate.Limiter

	Logger *slog.Logger
}

// Controller is the unit a presentation layer talks to. Call Start before use
// and Close when done; calls made before Start fail with ErrNotStarted.
type Controller struct {
	id      string
	opts    Options
	logger  *slog.Logger
	history *history.Store
	limiter *rate.Limiter

	loop     *loop
	notifier *notifier
	monitor  *Monitor

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once

	// Owned by the loop goroutine.
	dispatcher  *Dispatcher
	navigator   *history.Navigator
	state       SessionState
	document    string
	lastDisplay string
	transcript  []Turn
}

// New creates a controller for one conversation session
func New(opts Options) *Controller {
	id := uuid.New().String()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)

	if opts.History == nil {
		opts.History = history.NewStore(history.NewMemoryStorage(nil), logger)
	}

	c := &Controller{
		id:        id,
		opts:      opts,
		logger:    logger,
		history:   opts.History,
		limiter:   opts.RetryLimiter,
		loop:      newLoop(logger),
		notifier:  newNotifier(logger),
		navigator: history.NewNavigator(opts.History),
	}
	c.monitor = NewMonitor(opts.Client, opts.HealthTimeout, c.publishConnection, logger)
	return c
}

// ID returns the session identifier
func (c *Controller) ID() string {
	return c.id
}

// Start loads history, runs the session loop, performs the first health check
// and starts polling when configured. It returns immediately.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		c.dispatcher = NewDispatcher(ctx, c.opts.Client, c.opts.AskTimeout, c.loop.post, c.logger)

		entries := c.history.Load()
		c.logger.Info("session started", "history_entries", len(entries))

		c.loop.start()
		c.spawn(func() { c.loop.run(ctx) })
		c.spawn(func() { c.notifier.run(ctx) })
		c.spawn(func() { c.monitor.CheckNow(ctx) })
		if c.opts.PollInterval > 0 {
			c.spawn(func() { c.monitor.Run(ctx, c.opts.PollInterval) })
		}
	})
}

func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Close stops the session loop and background checks. An outstanding request
// is abandoned; its Outcome, if delivered at all, carries ErrClosed.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.loop.stop()
		c.wg.Wait()
		c.logger.Info("session closed")
	})
}

// Subscribe registers fn for every update. fn runs on a dedicated goroutine
// and may call back into the controller. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Update)) func() {
	return c.notifier.subscribe(fn)
}

// Submit validates question and dispatches it. The returned channel yields
// exactly one Outcome once the display update for it has been published.
//
// A session that is not known to be connected is re-checked once before the
// submission is rejected with ErrNotConnected.
func (c *Controller) Submit(ctx context.Context, question string) (<-chan Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var conn ConnectionState
	var busy bool
	if err := c.loop.call(func() {
		conn = c.state.Connection
		busy = c.dispatcher.InFlight()
	}); err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrRequestInFlight
	}

	if conn != ConnectionConnected {
		if conn = c.monitor.CheckNow(ctx); conn != ConnectionConnected {
			c.logger.Info("submission rejected", "reason", "not connected")
			c.loop.post(func() {
				c.state.LastError = "Not connected to the server"
				c.emitState()
			})
			return nil, ErrNotConnected
		}
	}

	out := make(chan Outcome, 1)
	var dispatchErr error
	if err := c.loop.call(func() {
		dispatchErr = c.dispatcher.Dispatch(question,
			func(answer *rag.Answer, err error) { c.settle(question, answer, err, out) },
			func() { out <- Outcome{Question: question, Err: ErrClosed} },
		)
		if dispatchErr != nil {
			return
		}
		c.state.InFlight = true
		c.state.LastError = ""
		c.navigator.Reset()
		c.transcript = append(c.transcript, Turn{Question: question, Pending: true})
		c.emitState()
	}); err != nil {
		return nil, err
	}
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	c.logger.Info("question submitted", "question_len", len(question))
	return out, nil
}

// settle applies a finished request. It runs on the loop.
func (c *Controller) settle(question string, answer *rag.Answer, err error, out chan<- Outcome) {
	if err == nil && answer == nil {
		err = &rag.TransportError{Op: "ask request", Err: errors.New("empty response")}
	}

	outcome := Outcome{Question: question, Answer: answer, Err: err}
	turn := Turn{Question: question}
	var response string
	record := false

	switch {
	case err == nil:
		outcome.Display = sanitize.Response(answer.Answer)
		response = answer.Answer
		record = true
		c.state.Connection = ConnectionConnected
		c.state.LastError = ""
		c.lastDisplay = outcome.Display
		c.logger.Info("answer received", "answer_len", len(answer.Answer), "sources", len(answer.Sources))

	case rag.IsService(err):
		// The server answered, just not successfully: keep the exchange.
		outcome.Display = sanitize.Error(err.Error())
		response = err.Error()
		record = true
		turn.IsError = true
		c.state.Connection = ConnectionConnected
		c.state.LastError = err.Error()
		c.logger.Warn("service error", "error", err)

	default:
		// No response was obtained, so there is nothing to record.
		outcome.Display = sanitize.Error(err.Error())
		turn.IsError = true
		c.state.Connection = ConnectionDisconnected
		c.state.LastError = err.Error()
		c.logger.Warn("request failed", "error", err)
	}
	turn.Display = outcome.Display

	if record {
		entry, appendErr := c.history.Append(question, response)
		if appendErr != nil {
			c.logger.Error("history not saved", "error", appendErr)
			c.state.LastError = appendErr.Error()
		} else {
			outcome.Entry = &entry
		}
	}

	c.navigator.Reset()
	c.replacePending(turn)
	c.state.InFlight = false

	if outcome.Entry != nil {
		c.notifier.publish(Update{Kind: UpdateEntryAppended, State: c.snapshot(), Entry: outcome.Entry})
	}
	c.emitState()
	out <- outcome
}

// replacePending fills in the newest pending turn, or appends when the
// transcript was cleared while the request was out.
func (c *Controller) replacePending(turn Turn) {
	for i := len(c.transcript) - 1; i >= 0; i-- {
		if c.transcript[i].Pending {
			c.transcript[i] = turn
			return
		}
	}
	c.transcript = append(c.transcript, turn)
}

// RetryConnectionCheck runs a health check now. Calls beyond the retry limit
// return the current state with ErrRetryThrottled.
func (c *Controller) RetryConnectionCheck(ctx context.Context) (ConnectionState, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return c.DisplayState().Connection, ErrRetryThrottled
	}
	return c.monitor.CheckNow(ctx), nil
}

// publishConnection is the monitor's sink; it hands results to the loop.
func (c *Controller) publishConnection(state ConnectionState, document string) {
	c.loop.post(func() {
		if state == c.state.Connection && document == c.document {
			return
		}
		c.logger.Info("connection changed", "from", c.state.Connection.String(), "to", state.String())
		c.state.Connection = state
		if state == ConnectionConnected {
			c.document = document
			if c.state.LastError == "Not connected to the server" {
				c.state.LastError = ""
			}
		}
		c.emitState()
	})
}

// DisplayState returns a snapshot of the current state
func (c *Controller) DisplayState() DisplayState {
	var ds DisplayState
	if err := c.loop.call(func() { ds = c.snapshot() }); err != nil {
		return DisplayState{SessionID: c.id}
	}
	return ds
}

// RecallPrevious returns the previous question in history; ok is false at the oldest entry.
func (c *Controller) RecallPrevious() (question string, ok bool) {
	c.loop.call(func() { question, ok = c.navigator.RecallPrevious() })
	return question, ok
}

// RecallNext moves toward the present; ("", true) means clear the input.
func (c *Controller) RecallNext() (question string, ok bool) {
	c.loop.call(func() { question, ok = c.navigator.RecallNext() })
	return question, ok
}

// ResetRecall abandons a recall in progress, e.g. when the user edits the input
func (c *Controller) ResetRecall() {
	c.loop.call(func() { c.navigator.Reset() })
}

// HistoryReloaded tells the session the store picked up entries written by
// another client. Recall restarts from the newest question.
func (c *Controller) HistoryReloaded() {
	c.loop.post(func() {
		c.navigator.Reset()
		c.notifier.publish(Update{Kind: UpdateHistoryReloaded, State: c.snapshot()})
	})
}

// Recent returns up to n history entries, most recent first
func (c *Controller) Recent(n int) []history.Entry {
	return c.history.Recent(n)
}

// HistoryLen returns the number of recorded exchanges
func (c *Controller) HistoryLen() int {
	return c.history.Len()
}

// Entry returns a recorded exchange by append index
func (c *Controller) Entry(i int) (history.Entry, bool) {
	return c.history.Entry(i)
}

// ShowEntry replaces the on-screen transcript with a recorded exchange
func (c *Controller) ShowEntry(i int) (Turn, bool) {
	entry, ok := c.history.Entry(i)
	if !ok {
		return Turn{}, false
	}
	turn := Turn{Question: entry.Question, Display: sanitize.Response(entry.Response)}
	err := c.loop.call(func() {
		// Keep a pending turn so the outstanding request can still land.
		var pending []Turn
		for _, t := range c.transcript {
			if t.Pending {
				pending = append(pending, t)
			}
		}
		c.transcript = append([]Turn{turn}, pending...)
		c.lastDisplay = turn.Display
		c.emitState()
	})
	return turn, err == nil
}

// ClearTranscript empties the on-screen transcript. History is untouched.
func (c *Controller) ClearTranscript() {
	c.loop.call(func() {
		var pending []Turn
		for _, t := range c.transcript {
			if t.Pending {
				pending = append(pending, t)
			}
		}
		c.transcript = pending
		c.emitState()
	})
}

// snapshot must run on the loop
func (c *Controller) snapshot() DisplayState {
	transcript := make([]Turn, len(c.transcript))
	copy(transcript, c.transcript)
	return DisplayState{
		SessionState: c.state,
		SessionID:    c.id,
		Document:     c.document,
		LastDisplay:  c.lastDisplay,
		Transcript:   transcript,
	}
}

// emitState must run on the loop
func (c *Controller) emitState() {
	c.notifier.publish(Update{Kind: UpdateState, State: c.snapshot()})
}
