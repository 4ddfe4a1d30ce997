// Package mainloop provides the single-goroutine consumer context.  All
// listener callbacks and every listener-facing session call run here,
// one closure at a time, in the order they were posted.
package mainloop

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Loop is an unbounded FIFO executor bound to the goroutine that calls
// [Loop.Run].
type Loop struct {
	mu    sync.Mutex
	tasks *queue.Queue // of func()
	wake  chan struct{}

	owner   atomic.Uint64 // goroutine id running Run, 0 when idle
	running atomic.Bool
}

// New returns an idle Loop.
func New() *Loop {
	return &Loop{
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
	}
}

// Post schedules fn to run on the loop goroutine.  It never blocks, so
// producer goroutines can post while holding their own locks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks.Add(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of posted closures not yet executed.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

// InLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) InLoop() bool {
	id := l.owner.Load()
	return id != 0 && id == goid()
}

// Run executes posted closures on the calling goroutine until ctx is
// done.  Closures still queued at that point are dropped.  Run panics if
// the loop is already running elsewhere.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		panic("mainloop: Run called while already running")
	}
	l.owner.Store(goid())
	defer func() {
		l.owner.Store(0)
		l.running.Store(false)
	}()

	for {
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending executes every closure queued at the time of the call, and
// any they post in turn, on the calling goroutine, standing in for Run.
// It is meant for tests that drive the loop step by step.
func (l *Loop) RunPending() int {
	prev := l.owner.Swap(goid())
	defer l.owner.Store(prev)

	n := 0
	for {
		fn, ok := l.next()
		if !ok {
			return n
		}
		fn()
		n++
	}
}

// Call runs fn on the loop and waits for it to finish.  On the loop
// goroutine it runs fn inline.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	if l.InLoop() {
		fn()
		return nil
	}
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mainloop call: %w", ctx.Err())
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tasks.Length() == 0 {
		return nil, false
	}
	return l.tasks.Remove().(func()), true
}

// goid returns the current goroutine id from the runtime stack header
// ("goroutine 42 [running]:").
func goid() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
