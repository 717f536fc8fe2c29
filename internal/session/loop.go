package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// loop runs closures one at a time on a single goroutine. All controller state
// is confined to it; other goroutines hand work over with post or call.
type loop struct {
	tasks     chan func()
	started   chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	logger    *slog.Logger
}

func newLoop(logger *slog.Logger) *loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &loop{
		tasks:   make(chan func(), 64),
		started: make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// start marks the loop as accepting work. Call it before spawning run.
func (l *loop) start() {
	l.startOnce.Do(func() { close(l.started) })
}

// ready reports ErrClosed once stopped and ErrNotStarted before start
func (l *loop) ready() error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case <-l.started:
		return nil
	default:
		return ErrNotStarted
	}
}

func (l *loop) run(ctx context.Context) {
	l.start()
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

func (l *loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("session task panicked", "panic", r)
		}
	}()
	fn()
}

func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// post queues fn and returns false if the loop has not started or has stopped
func (l *loop) post(fn func()) bool {
	if l.ready() != nil {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// call runs fn on the loop and waits for it. Never call it from the loop itself.
func (l *loop) call(fn func()) error {
	if err := l.ready(); err != nil {
		return err
	}
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// notifier fans updates out to subscribers on its own goroutine, in publish
// order, so a subscriber may call back into the controller.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]func(Update)
	nextID int
	queue  []Update
	wake   chan struct{}
	logger *slog.Logger
}

func newNotifier(logger *slog.Logger) *notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &notifier{
		subs:   make(map[int]func(Update)),
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

func (n *notifier) subscribe(fn func(Update)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) publish(u Update) {
	n.mu.Lock()
	n.queue = append(n.queue, u)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.wake:
			n.drain()
		}
	}
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		u := n.queue[0]
		n.queue = n.queue[1:]

		ids := make([]int, 0, len(n.subs))
		for id := range n.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		subs := make([]func(Update), 0, len(ids))
		for _, id := range ids {
			subs = append(subs, n.subs[id])
		}
		n.mu.Unlock()

		for _, fn := range subs {
			n.deliver(fn, u)
		}
	}
}

func (n *notifier) deliver(fn func(Update), u Update) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("subscriber panicked", "panic", r, "update", u.Kind.String())
		}
	}()
	fn(u)
}
