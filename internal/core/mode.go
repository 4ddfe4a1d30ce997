// Package core is the orchestration layer.  It turns a Config into a
// runnable mode: the dial target every (re)connect uses, the session
// that keeps the stream alive in the background, and the terminal that
// attaches to it.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  console  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of bgnc.  It owns its full
// lifecycle from the first connect to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
