package console

import (
	"fmt"
	"io"
	"sync"

	"bgnc/util"
)

// Notice implements session.Notifier.  The notice goes to Out (usually
// stderr) regardless of verbosity, since it is the only sign that a
// detached connection is still alive.
type Notice struct {
	Out    io.Writer
	Logger *util.Logger

	mu    sync.Mutex
	shown string
}

// Show announces that name is still connected while nothing is
// attached.  Repeated calls for the same peer print once.
func (n *Notice) Show(name string) {
	n.mu.Lock()
	if n.shown == name {
		n.mu.Unlock()
		return
	}
	n.shown = name
	n.mu.Unlock()

	fmt.Fprintf(n.Out, "bgnc: still connected to %s in background (~a to attach)\n", name)
}

// Cancel clears the notice.
func (n *Notice) Cancel() {
	n.mu.Lock()
	was := n.shown
	n.shown = ""
	n.mu.Unlock()

	if was != "" && n.Logger != nil {
		n.Logger.Debug("background notice for %s cleared", was)
	}
}

// Showing returns the peer the notice is currently shown for, or "".
func (n *Notice) Showing() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown
}
