package core

import (
	"bytes"
	"testing"
)

type feedResult struct {
	data []byte
	cmds []byte
	// order records 'D' for a send and the command byte otherwise.
	order []byte
}

func feed(f *inputFilter, chunks ...string) feedResult {
	var r feedResult
	for _, c := range chunks {
		f.Feed([]byte(c),
			func(p []byte) {
				r.data = append(r.data, p...)
				r.order = append(r.order, 'D')
			},
			func(c byte) {
				r.cmds = append(r.cmds, c)
				r.order = append(r.order, c)
			})
	}
	return r
}

func TestInputFilter(t *testing.T) {
	tests := []struct {
		name    string
		newline string
		in      []string
		data    string
		cmds    string
	}{
		{"plain", "\n", []string{"hello\n"}, "hello\n", ""},
		{"crlf translation", "\r\n", []string{"a\nb\n"}, "a\r\nb\r\n", ""},
		{"cr translation", "\r", []string{"a\n"}, "a\r", ""},
		{"quit at start", "\n", []string{"~."}, "", "."},
		{"command newline swallowed", "\n", []string{"~d\nnext\n"}, "next\n", "d"},
		{"command after newline", "\n", []string{"hi\n~a\n"}, "hi\n", "a"},
		{"tilde mid-line is data", "\n", []string{"a~.\n"}, "a~.\n", ""},
		{"double escape sends one", "\n", []string{"~~x\n"}, "~x\n", ""},
		{"unknown command passes through", "\n", []string{"~x\n"}, "~x\n", ""},
		{"split across reads", "\n", []string{"line\n~", "r", "\n"}, "line\n", "r"},
		{"every command", "\n", []string{"~.\n~d\n~a\n~r\n~s\n~?\n"}, "", ".dars?"},
		{"escape after cr", "\n", []string{"x\r~s"}, "x\r", "s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := feed(newInputFilter('~', true, []byte(tt.newline)), tt.in...)
			if string(r.data) != tt.data {
				t.Errorf("data = %q, want %q", r.data, tt.data)
			}
			if string(r.cmds) != tt.cmds {
				t.Errorf("commands = %q, want %q", r.cmds, tt.cmds)
			}
		})
	}
}

func TestInputFilter_Disabled(t *testing.T) {
	r := feed(newInputFilter('~', false, nil), "~.\n")
	if string(r.data) != "~.\n" || len(r.cmds) != 0 {
		t.Errorf("data=%q cmds=%q", r.data, r.cmds)
	}
}

func TestInputFilter_CommandOrdering(t *testing.T) {
	r := feed(newInputFilter('~', true, nil), "one\n~d\ntwo\n")
	if !bytes.Equal(r.order, []byte("DdD")) {
		t.Errorf("order = %q, want data, command, data", r.order)
	}
}
