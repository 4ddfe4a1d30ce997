package trigger

import (
	"sync/atomic"
	"testing"
)

func TestRegistry_FireInvokesSubscribers(t *testing.T) {
	var r Registry
	var a, b atomic.Int32

	r.Subscribe("x", func() { a.Add(1) })
	r.Subscribe("x", func() { b.Add(1) })
	r.Subscribe("y", func() { t.Error("handler for y should not run") })

	if n := r.Fire("x"); n != 2 {
		t.Errorf("Fire returned %d, want 2", n)
	}
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
}

func TestRegistry_CancelIsIdempotent(t *testing.T) {
	var r Registry
	var hits atomic.Int32

	cancel := r.Subscribe(Disconnect, func() { hits.Add(1) })
	cancel()
	cancel()

	if n := r.Fire(Disconnect); n != 0 {
		t.Errorf("Fire after cancel returned %d, want 0", n)
	}
	if hits.Load() != 0 {
		t.Error("cancelled handler ran")
	}
	if r.Subscribers(Disconnect) != 0 {
		t.Errorf("subscribers = %d, want 0", r.Subscribers(Disconnect))
	}
}

// A handler that cancels its own subscription must not deadlock.
func TestRegistry_CancelFromHandler(t *testing.T) {
	var r Registry
	var cancel func()
	cancel = r.Subscribe("x", func() { cancel() })

	if n := r.Fire("x"); n != 1 {
		t.Fatalf("Fire returned %d, want 1", n)
	}
	if r.Subscribers("x") != 0 {
		t.Error("handler should have unsubscribed itself")
	}
}

func TestDefaultRegistry(t *testing.T) {
	fired := make(chan struct{}, 1)
	cancel := Subscribe(Disconnect, func() { fired <- struct{}{} })
	defer cancel()

	if Default().Subscribers(Disconnect) < 1 {
		t.Fatal("subscription missing from the default registry")
	}
	Fire(Disconnect)
	select {
	case <-fired:
	default:
		t.Fatal("handler did not run")
	}
}
