package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	ncerr "bgnc/internal/errors"
	"bgnc/internal/trigger"
	"bgnc/util"
)

// ReadBufferSize is the size of a single read from the stream.  Each
// non-empty read becomes one chunk.
const ReadBufferSize = 1024

// SocketConfig describes one stream.
type SocketConfig struct {
	Dialer  Dialer
	Network string // "tcp", "udp", ...; passed through to Dialer
	Address string // host:port, or a URL for WSDialer
	Name    string // peer name used in errors and notices; defaults to Address

	Logger *util.Logger
	// Triggers is the registry the socket subscribes to for the
	// external disconnect trigger.  Nil means the process default.
	Triggers *trigger.Registry
}

// Socket is a one-shot transport: Connect once, Disconnect once.  A
// reconnect uses a fresh Socket.
type Socket struct {
	cfg SocketConfig

	mu          sync.Mutex
	sink        Sink
	conn        net.Conn
	cancel      context.CancelFunc
	unsubscribe func()
	started     bool
	closed      bool
	connected   bool
}

// NewSocket returns an unconnected Socket.
func NewSocket(cfg SocketConfig) *Socket {
	if cfg.Name == "" {
		cfg.Name = cfg.Address
	}
	if cfg.Logger == nil {
		cfg.Logger = util.NewLogger(0)
	}
	if cfg.Triggers == nil {
		cfg.Triggers = trigger.Default()
	}
	return &Socket{cfg: cfg}
}

// Name returns the peer name.
func (s *Socket) Name() string { return s.cfg.Name }

// Connected reports whether the stream is open.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect starts the connect/read goroutine.  All events go to sink
// until Disconnect.  Connect panics if called twice; it does nothing
// after Disconnect.
func (s *Socket) Connect(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		panic("transport: Socket.Connect called twice")
	}
	s.started = true
	if s.closed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sink = sink
	s.cancel = cancel
	go s.run(ctx)
}

// Disconnect closes the stream.  Pending dials are cancelled, the sink
// is dropped so nothing more is reported, and close errors are
// swallowed.  Safe to call from any goroutine, any number of times.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.connected = false
	s.sink = nil
	cancel, conn, unsubscribe := s.cancel, s.conn, s.unsubscribe
	s.cancel, s.conn, s.unsubscribe = nil, nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	s.cfg.Logger.Debug("transport %s closed", s.cfg.Name)
}

// Write sends p on the stream synchronously.
func (s *Socket) Write(p []byte) error {
	s.mu.Lock()
	conn, connected := s.conn, s.connected
	s.mu.Unlock()

	if !connected {
		return ncerr.ErrNotConnected
	}
	if _, err := conn.Write(p); err != nil {
		return fmt.Errorf("write %s: %w", s.cfg.Name, err)
	}
	return nil
}

func (s *Socket) currentSink() Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// ── reader goroutine ────────────────────────────────────────────────

func (s *Socket) run(ctx context.Context) {
	s.cfg.Logger.Debug("transport: dialing %s %s", s.cfg.Network, s.cfg.Address)

	conn, err := s.cfg.Dialer.Dial(ctx, s.cfg.Network, s.cfg.Address)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		if sink := s.currentSink(); sink != nil {
			sink.OnConnectError(&ncerr.ConnectError{Target: s.cfg.Name, Err: err})
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	// connected flips before OnConnected so a listener reacting to the
	// event can write immediately.
	s.conn = conn
	s.connected = true
	sink := s.sink
	s.mu.Unlock()

	unsubscribe := s.cfg.Triggers.Subscribe(trigger.Disconnect, s.onTrigger)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.cfg.Logger.Verbose("connected to %s (%s)", s.cfg.Name, conn.RemoteAddr())
	sink.OnConnected()
	s.readLoop(conn)
}

func (s *Socket) readLoop(conn net.Conn) {
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sink := s.currentSink(); sink != nil {
				sink.OnRead(chunk)
			}
		}
		if err != nil {
			if sink := s.currentSink(); sink != nil {
				sink.OnIoError(&ncerr.IOError{Target: s.cfg.Name, Err: err})
			}
			s.Disconnect()
			return
		}
	}
}

func (s *Socket) onTrigger() {
	s.cfg.Logger.Verbose("disconnect trigger fired for %s", s.cfg.Name)
	if sink := s.currentSink(); sink != nil {
		sink.OnIoError(&ncerr.IOError{Target: s.cfg.Name, Err: ncerr.ErrBackgroundDisconnect})
	}
	s.Disconnect()
}
