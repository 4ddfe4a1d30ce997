package session

import "fmt"

// EventKind tags a pending event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventConnectFailed
	EventDataBatch
	EventIoError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventConnectFailed:
		return "connect-failed"
	case EventDataBatch:
		return "data"
	case EventIoError:
		return "io-error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// readBatch is the coalescing accumulator for consecutive reads.  It is
// open while OnRead may still append to it and sealed once the
// consumer takes it.
type readBatch struct {
	chunks [][]byte
}

// pendingEvent is one accepted, not yet delivered event.
type pendingEvent struct {
	kind  EventKind
	err   error
	batch *readBatch // EventDataBatch only
}
