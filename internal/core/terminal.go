package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"bgnc/internal/console"
	ncerr "bgnc/internal/errors"
	"bgnc/internal/mainloop"
	"bgnc/internal/metrics"
	"bgnc/internal/session"
	"bgnc/internal/transport"
	"bgnc/internal/trigger"
	"bgnc/util"
)

// TerminalMode relays stdin and stdout through a background session.
// The terminal can detach and reattach without losing the stream, and
// reconnect on request once the stream has ended.
type TerminalMode struct {
	Target        Target
	Newline       []byte
	Escape        byte
	EscapeEnabled bool

	// KeepOpen keeps the mode running after the stream ends so it can
	// be reconnected with the escape command.  It needs EscapeEnabled.
	KeepOpen bool

	Logger   *util.Logger
	Metrics  *metrics.Collector
	Triggers *trigger.Registry

	// Toggle flips between attached and detached on every receive.
	Toggle <-chan struct{}

	// Stdin, Stdout and Stderr default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Describe returns a one-line summary for --dry-run.
func (m *TerminalMode) Describe() string {
	network := m.Target.Network
	if network == "" {
		network = "websocket"
	}
	return fmt.Sprintf("connect %s (%s) via %T, keep-open=%t", m.Target.Name, network, m.Target.Dialer, m.KeepOpen)
}

// terminalRun is the per-Run state.  Every field is touched on the main
// loop only.
type terminalRun struct {
	m      *TerminalMode
	loop   *mainloop.Loop
	sess   *session.Session
	term   *console.Terminal
	input  *inputFilter
	stderr io.Writer
	cancel context.CancelFunc

	attached  bool
	stdinDone bool
	result    error
}

// Run connects, attaches the terminal and serves until the stream ends
// (or the user quits, with KeepOpen).  A clean close by the peer
// returns nil.
func (m *TerminalMode) Run(ctx context.Context) error {
	defer m.Target.Dialer.Close()

	stdin, stdout, stderr := m.streams()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := mainloop.New()
	r := &terminalRun{
		m:      m,
		loop:   loop,
		stderr: stderr,
		cancel: cancel,
		input:  newInputFilter(m.Escape, m.EscapeEnabled, m.Newline),
	}
	r.sess = session.New(session.Options{
		Loop:     loop,
		Notifier: &console.Notice{Out: stderr, Logger: m.Logger},
		Logger:   m.Logger,
		Metrics:  m.Metrics,
	})
	r.term = &console.Terminal{Out: stdout, Logger: m.Logger, OnEnd: r.ended}

	m.Logger.Debug("session %s", r.sess.ID())
	loop.Post(func() {
		r.attach()
		r.connect()
	})

	go r.readInput(ctx, stdin)
	if m.Toggle != nil {
		go r.forwardToggles(ctx)
	}

	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.result = err
	}
	r.sess.Disconnect()
	return r.result
}

func (m *TerminalMode) streams() (io.Reader, io.Writer, io.Writer) {
	stdin, stdout, stderr := m.Stdin, m.Stdout, m.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdin, stdout, stderr
}

func (r *terminalRun) connect() {
	t := r.m.Target
	r.m.Logger.Verbose("connecting to %s", t.Name)
	r.sess.Connect(transport.NewSocket(transport.SocketConfig{
		Dialer:   t.Dialer,
		Network:  t.Network,
		Address:  t.Address,
		Name:     t.Name,
		Logger:   r.m.Logger,
		Triggers: r.m.Triggers,
	}))
}

func (r *terminalRun) attach() {
	if r.attached {
		return
	}
	r.attached = true
	r.sess.Attach(r.term)
}

func (r *terminalRun) detach() {
	if !r.attached {
		return
	}
	r.attached = false
	r.sess.Detach()
	r.m.Logger.Verbose("detached")
}

// ended is the terminal's OnEnd hook.
func (r *terminalRun) ended(err error) {
	r.result = err
	if r.m.KeepOpen && r.m.EscapeEnabled && !r.stdinDone {
		fmt.Fprintf(r.stderr, "bgnc: stream ended (%cr to reconnect, %c. to quit)\n", r.m.Escape, r.m.Escape)
		return
	}
	r.cancel()
}

func (r *terminalRun) readInput(ctx context.Context, stdin io.Reader) {
	buf := make([]byte, transport.ReadBufferSize)
	for {
		n, err := stdin.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			r.loop.Post(func() { r.handleInput(chunk) })
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				r.m.Logger.Warn("stdin: %v", err)
			}
			r.loop.Post(r.inputClosed)
			return
		}
	}
}

func (r *terminalRun) forwardToggles(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.m.Toggle:
			r.loop.Post(func() {
				if r.attached {
					r.detach()
				} else {
					r.attach()
				}
			})
		}
	}
}

func (r *terminalRun) handleInput(chunk []byte) {
	r.input.Feed(chunk, r.send, r.command)
}

func (r *terminalRun) send(p []byte) {
	if err := r.sess.Write(p); err != nil {
		if errors.Is(err, ncerr.ErrNotConnected) {
			r.m.Logger.Warn("not connected; %d bytes dropped", len(p))
			return
		}
		r.m.Logger.Warn("send: %v", err)
	}
}

func (r *terminalRun) inputClosed() {
	r.m.Logger.Debug("stdin closed")
	r.stdinDone = true
	// Nothing could ask for a reconnect any more.
	if r.sess.State() == session.Disconnected && r.sess.Pending() == 0 {
		r.cancel()
	}
}

func (r *terminalRun) command(c byte) {
	switch c {
	case cmdQuit:
		r.m.Logger.Verbose("quit")
		r.result = nil
		r.cancel()
	case cmdDetach:
		r.detach()
	case cmdAttach:
		r.attach()
	case cmdReconnect:
		if st := r.sess.State(); st != session.Disconnected {
			fmt.Fprintf(r.stderr, "bgnc: already %s\n", st)
			return
		}
		r.result = nil
		r.connect()
	case cmdStats:
		fmt.Fprintln(r.stderr, r.m.Metrics.JSON())
	case cmdHelp:
		fmt.Fprintf(r.stderr, escapeHelp, r.m.Escape)
	}
}
