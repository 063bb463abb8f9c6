package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_PostRunsInOrder(t *testing.T) {
	loop := NewLoop(16)
	loop.Start()
	defer loop.Stop()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if !loop.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}) {
			t.Fatal("Post refused on a running loop")
		}
	}

	// Do waits for everything queued before it
	loop.Do(func() {})

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 10 {
		t.Fatalf("Expected 10 executions, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Errorf("Expected %d at position %d, got %d", i, i, v)
		}
	}
}

func TestLoop_PostBeforeStart(t *testing.T) {
	loop := NewLoop(4)

	var ran atomic.Bool
	loop.Post(func() { ran.Store(true) })
	if ran.Load() {
		t.Fatal("Work ran before Start")
	}

	loop.Start()
	defer loop.Stop()
	loop.Do(func() {})
	if !ran.Load() {
		t.Error("Queued work did not run after Start")
	}
}

func TestLoop_StopRefusesWork(t *testing.T) {
	loop := NewLoop(4)
	loop.Start()
	loop.Stop()
	loop.Stop()

	if loop.IsRunning() {
		t.Error("Loop still running after Stop")
	}
	if loop.Post(func() {}) {
		t.Error("Post accepted after Stop")
	}
	if loop.Do(func() {}) {
		t.Error("Do accepted after Stop")
	}
}

func TestLoop_PanicRecovery(t *testing.T) {
	loop := NewLoop(4)

	var recovered atomic.Value
	loop.SetErrorHandler(func(err interface{}, stack []byte) {
		recovered.Store(err)
	})
	loop.Start()
	defer loop.Stop()

	loop.Do(func() { panic("boom") })

	// Loop keeps going; the handler has run by the time the next Do completes
	var ran bool
	loop.Do(func() { ran = true })
	if !ran {
		t.Error("Loop stopped processing after a panic")
	}
	if recovered.Load() != "boom" {
		t.Errorf("Expected handler to see panic value, got %v", recovered.Load())
	}
}

func TestTask_Fires(t *testing.T) {
	loop := NewLoop(4)
	loop.Start()
	defer loop.Stop()

	fired := make(chan struct{})
	task := loop.After(5*time.Millisecond, func() { close(fired) })

	if !task.Pending() {
		t.Error("Task should be pending right after scheduling")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Task did not fire")
	}

	loop.Do(func() {})
	if !task.Fired() {
		t.Error("Task should report fired")
	}
	if task.Cancel() {
		t.Error("Cancel should fail on a fired task")
	}
	if loop.Pending() != 0 {
		t.Errorf("Expected 0 pending tasks, got %d", loop.Pending())
	}
}

func TestTask_Cancel(t *testing.T) {
	loop := NewLoop(4)
	loop.Start()
	defer loop.Stop()

	var ran atomic.Bool
	task := loop.After(20*time.Millisecond, func() { ran.Store(true) })

	if !task.Cancel() {
		t.Fatal("Cancel should succeed on a pending task")
	}
	if task.Cancel() {
		t.Error("Second Cancel should report false")
	}

	time.Sleep(50 * time.Millisecond)
	loop.Do(func() {})

	if ran.Load() {
		t.Error("Cancelled task ran")
	}
	if task.Pending() || task.Fired() {
		t.Error("Cancelled task should be neither pending nor fired")
	}
	if loop.Pending() != 0 {
		t.Errorf("Expected 0 pending tasks, got %d", loop.Pending())
	}
}

func TestTask_AfterStop(t *testing.T) {
	loop := NewLoop(4)
	loop.Start()

	var ran atomic.Bool
	loop.After(5*time.Millisecond, func() { ran.Store(true) })
	loop.Stop()

	time.Sleep(30 * time.Millisecond)
	if ran.Load() {
		t.Error("Task ran against a stopped loop")
	}
}

func TestNilTask(t *testing.T) {
	var task *Task
	if task.Cancel() || task.Pending() || task.Fired() {
		t.Error("nil task should be inert")
	}
}

func TestSetDebugLog(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	SetDebugLog(func(args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if s, ok := args[0].(string); ok {
			lines = append(lines, s)
		}
	})
	defer SetDebugLog(nil)

	loop := NewLoop(4)
	loop.Start()
	loop.Start()
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"[Loop] already started", "[Loop] started", "[Loop] stopped"}
	for _, w := range want {
		found := false
		for _, l := range lines {
			if l == w {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected debug line %q, got %v", w, lines)
		}
	}
}
