package reactive

import (
	"sync"
	"sync/atomic"
)

// Listener receives the new value after every Set
type Listener[T any] func(T)

var debugLog atomic.Pointer[func(args ...interface{})]

// SetDebugLog routes state change messages to fn. A nil fn silences them.
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

// State is an owned value that notifies subscribers whenever it is replaced.
// A Set swaps the whole value, so observers never see a partial update.
type State[T any] struct {
	value   T
	version uint64
	mu      sync.RWMutex

	subs   []subscription[T]
	nextID uint64
	subsMu sync.Mutex

	// notifyMu serialises notification rounds so listeners observe values in
	// the order they were set
	notifyMu sync.Mutex
}

type subscription[T any] struct {
	id uint64
	fn Listener[T]
}

// NewState creates a new reactive state
func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial}
}

// Get returns the current value
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Version counts replacements; it starts at zero and grows by one per Set
func (s *State[T]) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set replaces the value and notifies subscribers
func (s *State[T]) Set(value T) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.value = value
	s.version++
	version := s.version
	s.mu.Unlock()

	logDebug("[State] Set, version", version)
	s.notify(value)
}

// Subscribe registers fn and returns a function that removes it.
// Listeners run synchronously on the goroutine that called Set, outside the
// value lock, in subscription order.
func (s *State[T]) Subscribe(fn Listener[T]) func() {
	if fn == nil {
		return func() {}
	}

	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	count := len(s.subs)
	s.subsMu.Unlock()

	logDebug("[State] Subscribed listener", id, "total:", count)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *State[T]) unsubscribe(id uint64) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of registered listeners
func (s *State[T]) Subscribers() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

func (s *State[T]) notify(value T) {
	// Copy under the lock, call outside it so listeners may unsubscribe
	s.subsMu.Lock()
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}
