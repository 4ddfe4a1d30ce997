package core

// Escape commands, recognised right after the escape character at the
// start of a line.
const (
	cmdQuit      = '.'
	cmdDetach    = 'd'
	cmdAttach    = 'a'
	cmdReconnect = 'r'
	cmdStats     = 's'
	cmdHelp      = '?'
)

const escapeHelp = `Supported escape sequences:
 %[1]c.   disconnect and quit
 %[1]cd   detach (stream stays open in background)
 %[1]ca   attach and replay what arrived meanwhile
 %[1]cr   reconnect after the stream has ended
 %[1]cs   print session statistics
 %[1]c?   this message
 %[1]c%[1]c   send the escape character
(Escapes are only recognised immediately after a newline.)
`

func isCommand(c byte) bool {
	switch c {
	case cmdQuit, cmdDetach, cmdAttach, cmdReconnect, cmdStats, cmdHelp:
		return true
	}
	return false
}

// inputFilter splits typed input into bytes for the peer and escape
// commands, and rewrites newlines on the way out.
type inputFilter struct {
	esc     byte
	enabled bool
	newline []byte

	lineStart   bool
	pending     bool // escape char seen at line start
	swallowNext bool // drop the newline ending a command line
}

func newInputFilter(esc byte, enabled bool, newline []byte) *inputFilter {
	if len(newline) == 0 {
		newline = []byte("\n")
	}
	return &inputFilter{esc: esc, enabled: enabled, newline: newline, lineStart: true}
}

// Feed processes p.  send receives translated data in input order;
// command is called for each escape command at the point it occurred.
func (f *inputFilter) Feed(p []byte, send func([]byte), command func(byte)) {
	var out []byte
	flush := func() {
		if len(out) > 0 {
			send(out)
			out = nil
		}
	}

	for _, c := range p {
		if f.swallowNext {
			f.swallowNext = false
			if c == '\n' {
				f.lineStart = true
				continue
			}
		}

		if f.pending {
			f.pending = false
			switch {
			case c == f.esc:
				out = append(out, f.esc)
				f.lineStart = false
				continue
			case isCommand(c):
				flush()
				command(c)
				f.swallowNext = true
				f.lineStart = true
				continue
			default:
				out = append(out, f.esc)
			}
		} else if f.enabled && f.lineStart && c == f.esc {
			f.pending = true
			continue
		}

		if c == '\n' {
			out = append(out, f.newline...)
			f.lineStart = true
			continue
		}
		out = append(out, c)
		f.lineStart = c == '\r'
	}
	flush()
}
