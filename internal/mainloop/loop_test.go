package mainloop

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLoop_RunsInPostOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx) //nolint:errcheck

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for posted closures")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran at position %d", v, i)
		}
	}
}

func TestLoop_InLoop(t *testing.T) {
	l := New()
	if l.InLoop() {
		t.Fatal("idle loop should not report InLoop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx) //nolint:errcheck

	inside := make(chan bool, 1)
	l.Post(func() { inside <- l.InLoop() })

	select {
	case v := <-inside:
		if !v {
			t.Error("closure on the loop should report InLoop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	if l.InLoop() {
		t.Error("test goroutine should not report InLoop")
	}
}

func TestLoop_CallWaits(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx) //nolint:errcheck

	ran := false
	if err := l.Call(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !ran {
		t.Error("Call returned before fn ran")
	}

	// Nested Call from the loop runs inline instead of deadlocking.
	nested := false
	if err := l.Call(ctx, func() {
		_ = l.Call(ctx, func() { nested = true })
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !nested {
		t.Error("nested Call did not run")
	}
}

func TestLoop_CallCancelled(t *testing.T) {
	l := New() // never started
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Call(ctx, func() {}); err == nil {
		t.Fatal("expected error when the loop is not running")
	}
}

func TestLoop_RunPending(t *testing.T) {
	l := New()
	var order []string
	l.Post(func() {
		order = append(order, "a")
		l.Post(func() { order = append(order, "c") })
	})
	l.Post(func() {
		order = append(order, "b")
		if !l.InLoop() {
			t.Error("RunPending should run closures as the loop goroutine")
		}
	})

	if n := l.RunPending(); n != 3 {
		t.Errorf("RunPending ran %d closures, want 3", n)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("order = %v", order)
	}
	if l.Pending() != 0 {
		t.Errorf("pending = %d, want 0", l.Pending())
	}
	if l.InLoop() {
		t.Error("InLoop should be restored after RunPending")
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("Run should report the context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
