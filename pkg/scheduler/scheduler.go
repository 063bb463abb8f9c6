// Package scheduler provides a single-goroutine event loop with cancellable
// deferred tasks. Everything posted to a Loop runs in order on one goroutine,
// so callers get the cooperative, run-to-completion model of a UI event loop.
package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorHandler handles panics raised by posted work
type ErrorHandler func(err interface{}, stack []byte)

var debugLog atomic.Pointer[func(args ...interface{})]

// SetDebugLog routes loop lifecycle messages to fn. A nil fn silences them.
func SetDebugLog(fn func(args ...interface{})) {
	if fn == nil {
		debugLog.Store(nil)
		return
	}
	debugLog.Store(&fn)
}

func logDebug(args ...interface{}) {
	if fn := debugLog.Load(); fn != nil {
		(*fn)(args...)
	}
}

// Loop executes posted functions one at a time on its own goroutine
type Loop struct {
	queue   chan func()
	done    chan struct{}
	stopped sync.Once
	running atomic.Bool
	started atomic.Bool
	wg      sync.WaitGroup

	onError ErrorHandler
	pending atomic.Int64
}

// NewLoop creates a loop with the given queue capacity. It does not run until Start.
func NewLoop(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 256
	}
	return &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// SetErrorHandler sets the handler called when posted work panics
func (l *Loop) SetErrorHandler(handler ErrorHandler) {
	l.onError = handler
}

// Start begins processing posted work
func (l *Loop) Start() {
	if !l.started.CompareAndSwap(false, true) {
		logDebug("[Loop] already started")
		return
	}
	l.running.Store(true)
	l.wg.Add(1)
	go l.run()
}

// Stop ends the loop. Work still queued is dropped and later posts are refused.
// Calling Stop from work running on the loop deadlocks.
func (l *Loop) Stop() {
	l.stopped.Do(func() {
		l.running.Store(false)
		close(l.done)
	})
	l.wg.Wait()
}

// IsRunning returns whether the loop accepts work
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Done is closed once the loop has been stopped
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post enqueues fn. It reports false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do posts fn and waits for it to finish. It must not be called from work
// already running on the loop, which would deadlock.
func (l *Loop) Do(fn func()) bool {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.done:
		return false
	}
}

// After schedules fn to run on the loop once d has elapsed
func (l *Loop) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.release = func() { l.pending.Add(-1) }
	l.pending.Add(1)
	t.timer = time.AfterFunc(d, func() {
		if t.cancelled.Load() {
			return
		}
		if !l.Post(func() {
			if !t.state.CompareAndSwap(taskWaiting, taskFired) {
				return
			}
			l.pending.Add(-1)
			fn()
		}) {
			// Loop is gone; the task simply never runs
			if t.state.CompareAndSwap(taskWaiting, taskDropped) {
				l.pending.Add(-1)
			}
		}
	})
	return t
}

// Pending returns the number of deferred tasks that have neither fired nor been cancelled
func (l *Loop) Pending() int {
	return int(l.pending.Load())
}

func (l *Loop) run() {
	defer l.wg.Done()
	logDebug("[Loop] started")
	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-l.done:
			logDebug("[Loop] stopped")
			return
		}
	}
}

// execute runs a single unit of work with panic recovery
func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			if l.onError != nil {
				l.onError(r, stack)
			} else {
				logDebug(fmt.Sprintf("[Loop] panic: %v\n%s", r, stack))
			}
		}
	}()
	fn()
}

const (
	taskWaiting int32 = iota
	taskFired
	taskCancelled
	taskDropped
)

// Task is a one-shot deferred unit of work
type Task struct {
	timer     *time.Timer
	state     atomic.Int32
	cancelled atomic.Bool
	release   func()
}

// Cancel prevents the task from running. It reports false when the task has
// already fired or was cancelled before.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	if !t.state.CompareAndSwap(taskWaiting, taskCancelled) {
		return false
	}
	t.cancelled.Store(true)
	t.timer.Stop()
	if t.release != nil {
		t.release()
	}
	return true
}

// Pending reports whether the task is still waiting to fire
func (t *Task) Pending() bool {
	return t != nil && t.state.Load() == taskWaiting
}

// Fired reports whether the task ran
func (t *Task) Fired() bool {
	return t != nil && t.state.Load() == taskFired
}
