// Package trigger implements process-wide named signals.  A transport
// subscribes to [Disconnect] while its stream is open so that code with
// no reference to the session (a signal handler, an admin hook) can
// still force the connection down.
package trigger

import "sync"

// Disconnect is the well-known name of the external disconnect trigger.
const Disconnect = "bgnc.action.DISCONNECT"

// Registry maps names to subscribed handlers.  The zero value is ready
// to use.
type Registry struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string]map[uint64]func()
}

// Subscribe registers fn under name and returns a cancel function.
// Cancel is idempotent and safe to call from inside fn.
func (r *Registry) Subscribe(name string, fn func()) (cancel func()) {
	r.mu.Lock()
	if r.handlers == nil {
		r.handlers = make(map[string]map[uint64]func())
	}
	if r.handlers[name] == nil {
		r.handlers[name] = make(map[uint64]func())
	}
	r.nextID++
	id := r.nextID
	r.handlers[name][id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[name], id)
			if len(r.handlers[name]) == 0 {
				delete(r.handlers, name)
			}
		})
	}
}

// Fire invokes every handler subscribed under name and returns how many
// ran.  Handlers run on the caller's goroutine, outside the registry
// lock.
func (r *Registry) Fire(name string) int {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.handlers[name]))
	for _, fn := range r.handlers[name] {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Subscribers returns the number of handlers under name.
func (r *Registry) Subscribers(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers[name])
}

var process Registry

// Default returns the process-wide registry.
func Default() *Registry { return &process }

// Subscribe registers fn on the process-wide registry.
func Subscribe(name string, fn func()) (cancel func()) {
	return process.Subscribe(name, fn)
}

// Fire fires name on the process-wide registry.
func Fire(name string) int { return process.Fire(name) }
