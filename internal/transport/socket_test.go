package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	ncerr "bgnc/internal/errors"
	"bgnc/internal/trigger"
)

// event is one recorded Sink call.
type event struct {
	kind string // "connected", "connect-error", "read", "io-error"
	data []byte
	err  error
}

type chanSink struct{ ch chan event }

func newChanSink() *chanSink { return &chanSink{ch: make(chan event, 64)} }

func (s *chanSink) OnConnected()             { s.ch <- event{kind: "connected"} }
func (s *chanSink) OnConnectError(err error) { s.ch <- event{kind: "connect-error", err: err} }
func (s *chanSink) OnRead(p []byte)          { s.ch <- event{kind: "read", data: p} }
func (s *chanSink) OnIoError(err error)      { s.ch <- event{kind: "io-error", err: err} }

func (s *chanSink) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-s.ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sink event")
		return event{}
	}
}

func (s *chanSink) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-s.ch:
		t.Fatalf("unexpected event %q (%v)", ev.kind, ev.err)
	case <-time.After(d):
	}
}

// serve accepts one connection on a loopback listener and hands it to fn.
func serve(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return ln.Addr().String()
}

func newTestSocket(addr string, reg *trigger.Registry) *Socket {
	return NewSocket(SocketConfig{
		Dialer:   &TCPDialer{Timeout: 2 * time.Second},
		Network:  "tcp",
		Address:  addr,
		Triggers: reg,
	})
}

func TestSocket_ConnectReadEOF(t *testing.T) {
	addr := serve(t, func(c net.Conn) {
		c.Write([]byte("hello")) //nolint:errcheck
	})

	s := newTestSocket(addr, &trigger.Registry{})
	sink := newChanSink()
	s.Connect(sink)

	if ev := sink.next(t); ev.kind != "connected" {
		t.Fatalf("first event = %q, want connected", ev.kind)
	}

	var got []byte
	for {
		ev := sink.next(t)
		if ev.kind == "read" {
			got = append(got, ev.data...)
			continue
		}
		if ev.kind != "io-error" {
			t.Fatalf("unexpected event %q", ev.kind)
		}
		var ioErr *ncerr.IOError
		if !errors.As(ev.err, &ioErr) {
			t.Fatalf("io error %T is not *IOError", ev.err)
		}
		if !ncerr.IsClosed(ev.err) {
			t.Errorf("remote close should classify as closed: %v", ev.err)
		}
		break
	}
	if string(got) != "hello" {
		t.Errorf("read %q, want %q", got, "hello")
	}
	if s.Connected() {
		t.Error("socket should be disconnected after EOF")
	}
}

func TestSocket_ChunksNeverExceedBuffer(t *testing.T) {
	payload := make([]byte, 3*ReadBufferSize+17)
	for i := range payload {
		payload[i] = byte(i)
	}
	addr := serve(t, func(c net.Conn) {
		c.Write(payload) //nolint:errcheck
	})

	s := newTestSocket(addr, &trigger.Registry{})
	sink := newChanSink()
	s.Connect(sink)
	defer s.Disconnect()

	sink.next(t) // connected
	total := 0
	for total < len(payload) {
		ev := sink.next(t)
		if ev.kind != "read" {
			t.Fatalf("got %q after %d bytes", ev.kind, total)
		}
		if len(ev.data) > ReadBufferSize {
			t.Fatalf("chunk of %d bytes exceeds %d", len(ev.data), ReadBufferSize)
		}
		for i, b := range ev.data {
			if b != payload[total+i] {
				t.Fatalf("byte %d = %d, want %d", total+i, b, payload[total+i])
			}
		}
		total += len(ev.data)
	}
}

func TestSocket_ConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := newTestSocket(addr, &trigger.Registry{})
	sink := newChanSink()
	s.Connect(sink)

	ev := sink.next(t)
	if ev.kind != "connect-error" {
		t.Fatalf("event = %q, want connect-error", ev.kind)
	}
	var ce *ncerr.ConnectError
	if !errors.As(ev.err, &ce) || ce.Target != addr {
		t.Errorf("error = %v, want ConnectError for %s", ev.err, addr)
	}
	sink.quiet(t, 100*time.Millisecond)
}

func TestSocket_WriteNotConnected(t *testing.T) {
	s := newTestSocket("127.0.0.1:1", &trigger.Registry{})
	if err := s.Write([]byte("x")); !errors.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("Write = %v, want ErrNotConnected", err)
	}
}

func TestSocket_WriteReachesPeer(t *testing.T) {
	received := make(chan []byte, 1)
	addr := serve(t, func(c net.Conn) {
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		received <- buf[:n]
	})

	s := newTestSocket(addr, &trigger.Registry{})
	sink := newChanSink()
	s.Connect(sink)
	defer s.Disconnect()

	sink.next(t) // connected
	if err := s.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	select {
	case got := <-received:
		if string(got) != "ping" {
			t.Errorf("peer got %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("peer never received data")
	}
}

func TestSocket_DisconnectSilencesSink(t *testing.T) {
	hold := make(chan struct{})
	addr := serve(t, func(c net.Conn) { <-hold })
	defer close(hold)

	reg := &trigger.Registry{}
	s := newTestSocket(addr, reg)
	sink := newChanSink()
	s.Connect(sink)
	sink.next(t) // connected

	if reg.Subscribers(trigger.Disconnect) != 1 {
		t.Fatalf("subscribers = %d, want 1", reg.Subscribers(trigger.Disconnect))
	}

	s.Disconnect()
	s.Disconnect()

	if s.Connected() {
		t.Error("still connected after Disconnect")
	}
	if reg.Subscribers(trigger.Disconnect) != 0 {
		t.Error("trigger subscription should be released")
	}
	if err := s.Write([]byte("x")); !errors.Is(err, ncerr.ErrNotConnected) {
		t.Errorf("Write after Disconnect = %v", err)
	}
	// The read error caused by closing our own conn is not reported.
	sink.quiet(t, 100*time.Millisecond)
}

func TestSocket_DisconnectDuringDial(t *testing.T) {
	d := &blockingDialer{entered: make(chan struct{})}
	s := NewSocket(SocketConfig{Dialer: d, Network: "tcp", Address: "blocked:1", Triggers: &trigger.Registry{}})
	sink := newChanSink()
	s.Connect(sink)

	<-d.entered
	s.Disconnect()
	sink.quiet(t, 100*time.Millisecond)
}

func TestSocket_TriggerForcesDisconnect(t *testing.T) {
	hold := make(chan struct{})
	addr := serve(t, func(c net.Conn) { <-hold })
	defer close(hold)

	reg := &trigger.Registry{}
	s := newTestSocket(addr, reg)
	sink := newChanSink()
	s.Connect(sink)
	sink.next(t) // connected

	if n := reg.Fire(trigger.Disconnect); n != 1 {
		t.Fatalf("Fire reached %d handlers, want 1", n)
	}

	ev := sink.next(t)
	if ev.kind != "io-error" || !errors.Is(ev.err, ncerr.ErrBackgroundDisconnect) {
		t.Fatalf("event = %q %v, want io-error background disconnect", ev.kind, ev.err)
	}
	if s.Connected() {
		t.Error("trigger should disconnect the socket")
	}
	sink.quiet(t, 100*time.Millisecond)
}

func TestSocket_ConnectTwicePanics(t *testing.T) {
	s := NewSocket(SocketConfig{Dialer: &blockingDialer{entered: make(chan struct{}, 1)}, Triggers: &trigger.Registry{}})
	s.Connect(newChanSink())
	defer s.Disconnect()

	defer func() {
		if recover() == nil {
			t.Error("second Connect should panic")
		}
	}()
	s.Connect(newChanSink())
}

// blockingDialer blocks until the dial context is cancelled.
type blockingDialer struct {
	once    sync.Once
	entered chan struct{}
}

func (d *blockingDialer) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	d.once.Do(func() { close(d.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *blockingDialer) Close() error { return nil }
