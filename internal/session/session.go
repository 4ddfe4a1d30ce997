// Package session mediates between a background transport and a
// listener that comes and goes.
//
// Events produced by the transport are accepted on its goroutine,
// queued in one ordered backlog and delivered on the main loop.  When
// no listener is attached the backlog simply grows; the next Attach
// replays it front to back before anything newer is delivered.
// Consecutive reads are coalesced into a single data batch per loop
// wake-up.
package session

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	ncerr "bgnc/internal/errors"
	"bgnc/internal/mainloop"
	"bgnc/internal/metrics"
	"bgnc/internal/transport"
	"bgnc/util"
)

// State is the connection state of a Session.
type State int

const (
	Disconnected State = iota
	Pending
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Pending:
		return "pending"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Listener consumes session events.  Every callback runs on the main
// loop goroutine and may call back into the Session.
type Listener interface {
	OnConnected()
	OnConnectError(err error)
	OnDataBatch(chunks [][]byte)
	OnIoError(err error)
}

// Notifier shows the "still connected in background" indication.
type Notifier interface {
	Show(name string)
	Cancel()
}

// Transport is the stream a Session owns while not Disconnected.
type Transport interface {
	Connect(sink transport.Sink)
	Disconnect()
	Write(p []byte) error
	Name() string
}

// Options configures a Session.  Loop is required.
type Options struct {
	Loop     *mainloop.Loop
	Notifier Notifier
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// Session owns at most one transport and buffers its events for a
// listener that may be absent.
//
// Lock order: connMu before mu, connMu before readMu.  mu and readMu
// are never held together.
type Session struct {
	id      string
	loop    *mainloop.Loop
	notify  Notifier
	logger  *util.Logger
	metrics *metrics.Collector

	connMu    sync.Mutex
	state     State
	gen       uint64
	transport Transport

	mu          sync.Mutex // lock A
	listener    Listener
	backlog     *queue.Queue // of *pendingEvent
	drainPosted bool

	readMu sync.Mutex // lock B
	open   *readBatch
}

// New creates a disconnected Session.
func New(opts Options) *Session {
	if opts.Loop == nil {
		panic("session: Options.Loop is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = util.NewLogger(0)
	}
	return &Session{
		id:      uuid.NewString(),
		loop:    opts.Loop,
		notify:  opts.Notifier,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		backlog: queue.New(),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current connection state.
func (s *Session) State() State {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.state
}

// Pending returns the number of events waiting for delivery.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog.Length()
}

// ── Control surface ──────────────────────────────────────────────────

// Connect hands t to the session and starts it.  Connect panics unless
// the session is Disconnected.
func (s *Session) Connect(t Transport) {
	s.connMu.Lock()
	if s.state != Disconnected {
		st := s.state
		s.connMu.Unlock()
		panic(fmt.Sprintf("session: Connect while %s", st))
	}
	s.state = Pending
	s.gen++
	s.transport = t
	sink := &producer{s: s, gen: s.gen}
	s.connMu.Unlock()

	s.logger.Debug("session %s: connecting to %s (gen %d)", s.id, t.Name(), sink.gen)
	t.Connect(sink)
}

// Disconnect tears the transport down.  Events the transport produces
// afterwards are dropped; events already accepted stay queued.
func (s *Session) Disconnect() {
	s.connMu.Lock()
	wasConnected := s.state == Connected
	s.state = Disconnected
	s.gen++
	t := s.transport
	s.transport = nil
	s.connMu.Unlock()

	s.closeBatch()
	s.notify.Cancel()
	if wasConnected {
		s.metrics.ConnectionClosed()
	}
	if t != nil {
		s.logger.Debug("session %s: disconnecting %s", s.id, t.Name())
		t.Disconnect()
	}
}

// Write sends p on the transport.  It fails with ErrNotConnected unless
// the session is Connected.
func (s *Session) Write(p []byte) error {
	s.connMu.Lock()
	t := s.transport
	ok := s.state == Connected && t != nil
	s.connMu.Unlock()

	if !ok {
		return ncerr.ErrNotConnected
	}
	if err := t.Write(p); err != nil {
		return err
	}
	s.metrics.BytesSent(int64(len(p)))
	return nil
}

// Attach sets l as the listener and synchronously replays the backlog
// to it.  Attach must run on the main loop goroutine.
func (s *Session) Attach(l Listener) {
	if !s.loop.InLoop() {
		panic("session: Attach called off the main loop")
	}
	if l == nil {
		panic("session: Attach with nil listener")
	}

	s.notify.Cancel()
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.metrics.Attached()

	s.drain(true)
}

// Detach clears the listener.  Later events are kept for the next
// Attach.  If the stream is still up the background notice is shown.
func (s *Session) Detach() {
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	s.metrics.Detached()

	s.connMu.Lock()
	connected := s.state == Connected
	var name string
	if s.transport != nil {
		name = s.transport.Name()
	}
	s.connMu.Unlock()

	if connected {
		s.notify.Show(name)
	}
}

// ── Event intake (transport goroutine) ──────────────────────────────

// producer is the transport.Sink handed to one transport.  Its gen pins
// it to that transport so a superseded one cannot inject events.
type producer struct {
	s   *Session
	gen uint64
}

func (p *producer) OnConnected() { p.s.accept(p.gen, &pendingEvent{kind: EventConnected}) }

func (p *producer) OnConnectError(err error) {
	p.s.accept(p.gen, &pendingEvent{kind: EventConnectFailed, err: err})
}

func (p *producer) OnIoError(err error) {
	p.s.accept(p.gen, &pendingEvent{kind: EventIoError, err: err})
}

func (p *producer) OnRead(chunk []byte) { p.s.acceptRead(p.gen, chunk) }

var _ transport.Sink = (*producer)(nil)

// live reports whether events from gen are still accepted.  Caller
// holds connMu.
func (s *Session) live(gen uint64) bool {
	return gen == s.gen && s.state != Disconnected
}

func (s *Session) accept(gen uint64, ev *pendingEvent) {
	s.connMu.Lock()
	if !s.live(gen) {
		s.connMu.Unlock()
		s.logger.Debug("session %s: dropped stale %s event", s.id, ev.kind)
		return
	}

	var teardown Transport
	switch ev.kind {
	case EventConnected:
		s.state = Connected
		s.metrics.ConnectionOpened()
	case EventConnectFailed, EventIoError:
		if s.state == Connected {
			s.metrics.ConnectionClosed()
		}
		if ev.kind == EventConnectFailed {
			s.metrics.ConnectFailed()
		}
		if ev.err != nil {
			s.metrics.RecordError(ev.err.Error())
		}
		s.state = Disconnected
		s.gen++
		teardown = s.transport
		s.transport = nil
	}

	// Reads after this event start a new batch.
	s.closeBatch()
	s.enqueue(ev)
	s.connMu.Unlock()

	if teardown != nil {
		s.notify.Cancel()
		teardown.Disconnect()
	}
}

func (s *Session) acceptRead(gen uint64, chunk []byte) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if !s.live(gen) {
		return
	}
	s.metrics.BytesReceived(int64(len(chunk)))

	s.readMu.Lock()
	if s.open != nil {
		s.open.chunks = append(s.open.chunks, chunk)
		s.readMu.Unlock()
		return
	}
	b := &readBatch{chunks: [][]byte{chunk}}
	s.open = b
	s.readMu.Unlock()

	s.enqueue(&pendingEvent{kind: EventDataBatch, batch: b})
}

// closeBatch stops appending to the open batch, if any.
func (s *Session) closeBatch() {
	s.readMu.Lock()
	s.open = nil
	s.readMu.Unlock()
}

// takeBatch seals b and returns its chunks.
func (s *Session) takeBatch(b *readBatch) [][]byte {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.open == b {
		s.open = nil
	}
	return b.chunks
}

// enqueue appends ev to the backlog and schedules a drain if a
// listener is there to receive it.
func (s *Session) enqueue(ev *pendingEvent) {
	s.mu.Lock()
	s.backlog.Add(ev)
	post := s.listener != nil && !s.drainPosted
	if post {
		s.drainPosted = true
	}
	n := s.backlog.Length()
	s.mu.Unlock()

	s.metrics.SetBacklog(n)
	if post {
		s.loop.Post(func() { s.drain(false) })
	}
}

// ── Delivery (main loop) ─────────────────────────────────────────────

// drain delivers backlog entries while a listener is attached.  The
// listener is re-sampled before every entry so a callback that detaches
// leaves the rest queued.  The posted drain owns drainPosted; the
// synchronous one run by Attach leaves it alone.
func (s *Session) drain(replay bool) {
	for {
		s.mu.Lock()
		l := s.listener
		if l == nil || s.backlog.Length() == 0 {
			if !replay {
				s.drainPosted = false
			}
			s.mu.Unlock()
			return
		}
		ev := s.backlog.Remove().(*pendingEvent)
		n := s.backlog.Length()
		s.mu.Unlock()

		s.metrics.SetBacklog(n)
		s.deliver(l, ev, replay)
	}
}

func (s *Session) deliver(l Listener, ev *pendingEvent, replay bool) {
	s.metrics.EventDelivered(replay)
	switch ev.kind {
	case EventConnected:
		l.OnConnected()
	case EventConnectFailed:
		l.OnConnectError(ev.err)
	case EventIoError:
		l.OnIoError(ev.err)
	case EventDataBatch:
		chunks := s.takeBatch(ev.batch)
		s.metrics.BatchDelivered(len(chunks))
		l.OnDataBatch(chunks)
	}
}

type nopNotifier struct{}

func (nopNotifier) Show(string) {}
func (nopNotifier) Cancel()     {}
