// Package metrics provides lightweight, lock-free counters and gauges
// for tracking runtime statistics of a bgnc session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a bgnc session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	connectFailures   atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	eventsLive        atomic.Int64
	eventsReplayed    atomic.Int64
	batches           atomic.Int64
	chunks            atomic.Int64
	backlog           atomic.Int64
	attaches          atomic.Int64
	detaches          atomic.Int64
	gatewayReconnects atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ConnectFailed records a transport that never came up.
func (c *Collector) ConnectFailed() {
	if c == nil {
		return
	}
	c.connectFailures.Add(1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records n bytes read from the network.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesSent records n bytes written to the network.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Delivery metrics ─────────────────────────────────────────────────

// EventDelivered records one event handed to a listener.  replayed is
// true when the event waited in the backlog for an attach.
func (c *Collector) EventDelivered(replayed bool) {
	if c == nil {
		return
	}
	if replayed {
		c.eventsReplayed.Add(1)
	} else {
		c.eventsLive.Add(1)
	}
}

// BatchDelivered records a data batch of n chunks.
func (c *Collector) BatchDelivered(n int) {
	if c == nil {
		return
	}
	c.batches.Add(1)
	c.chunks.Add(int64(n))
}

// SetBacklog records the number of undelivered events.
func (c *Collector) SetBacklog(n int) {
	if c == nil {
		return
	}
	c.backlog.Store(int64(n))
}

// Backlog returns the last recorded backlog depth.
func (c *Collector) Backlog() int64 {
	if c == nil {
		return 0
	}
	return c.backlog.Load()
}

// ReplayedEvents returns how many events were delivered from the backlog.
func (c *Collector) ReplayedEvents() int64 {
	if c == nil {
		return 0
	}
	return c.eventsReplayed.Load()
}

// LiveEvents returns how many events were delivered without waiting.
func (c *Collector) LiveEvents() int64 {
	if c == nil {
		return 0
	}
	return c.eventsLive.Load()
}

// ── Listener metrics ─────────────────────────────────────────────────

// Attached records a listener attach.
func (c *Collector) Attached() {
	if c == nil {
		return
	}
	c.attaches.Add(1)
}

// Detached records a listener detach.
func (c *Collector) Detached() {
	if c == nil {
		return
	}
	c.detaches.Add(1)
}

// ── Gateway metrics ──────────────────────────────────────────────────

// GatewayReconnect records an SSH gateway being re-established.
func (c *Collector) GatewayReconnect() {
	if c == nil {
		return
	}
	c.gatewayReconnects.Add(1)
}

// GatewayReconnects returns the total gateway reconnection count.
func (c *Collector) GatewayReconnects() int64 {
	if c == nil {
		return 0
	}
	return c.gatewayReconnects.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	ConnectFailures   int64  `json:"connect_failures"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	EventsLive        int64  `json:"events_live"`
	EventsReplayed    int64  `json:"events_replayed"`
	Batches           int64  `json:"batches"`
	Chunks            int64  `json:"chunks"`
	Backlog           int64  `json:"backlog"`
	Attaches          int64  `json:"attaches"`
	Detaches          int64  `json:"detaches"`
	GatewayReconnects int64  `json:"gateway_reconnects"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		ConnectFailures:   c.connectFailures.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		EventsLive:        c.eventsLive.Load(),
		EventsReplayed:    c.eventsReplayed.Load(),
		Batches:           c.batches.Load(),
		Chunks:            c.chunks.Load(),
		Backlog:           c.backlog.Load(),
		Attaches:          c.attaches.Load(),
		Detaches:          c.detaches.Load(),
		GatewayReconnects: c.gatewayReconnects.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
