// Package console is the terminal side of a session: a Listener that
// copies received bytes to stdout and reports connection status on the
// logger, and a Notifier for the "still connected in background" line.
package console

import (
	"io"
	"sync"

	ncerr "bgnc/internal/errors"
	"bgnc/util"
)

// Terminal implements session.Listener.  All callbacks are expected on
// the main loop.
type Terminal struct {
	Out    io.Writer
	Logger *util.Logger

	// OnEnd, when set, is called after a terminal event has been
	// reported.  err is nil for a clean remote close.
	OnEnd func(err error)

	mu       sync.Mutex
	received int64
}

// OnConnected reports the stream is up.
func (t *Terminal) OnConnected() {
	t.Logger.Info("connected")
}

// OnConnectError reports a failed connection attempt.
func (t *Terminal) OnConnectError(err error) {
	t.Logger.Error("connection failed: %v", err)
	if ncerr.IsRetryable(err) {
		t.Logger.Info("type ~r to retry")
	}
	t.end(err)
}

// OnDataBatch writes every chunk to Out in order.
func (t *Terminal) OnDataBatch(chunks [][]byte) {
	for _, c := range chunks {
		n, err := t.Out.Write(c)
		t.mu.Lock()
		t.received += int64(n)
		t.mu.Unlock()
		if err != nil {
			t.Logger.Warn("stdout: %v", err)
			return
		}
	}
}

// OnIoError reports the end of the stream.
func (t *Terminal) OnIoError(err error) {
	switch {
	case ncerr.IsClosed(err):
		t.Logger.Info("connection closed by peer")
		t.end(nil)
	case ncerr.Is(err, ncerr.ErrBackgroundDisconnect):
		t.Logger.Info("disconnected")
		t.end(nil)
	default:
		t.Logger.Error("connection lost: %v", err)
		t.end(err)
	}
}

// Received returns how many bytes have been written to Out.
func (t *Terminal) Received() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

func (t *Terminal) end(err error) {
	if t.OnEnd != nil {
		t.OnEnd(err)
	}
}
