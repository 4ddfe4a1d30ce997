//go:build !unix

package cmd

import (
	"context"

	"bgnc/util"
)

// watchSignals is a no-op where SIGUSR1/SIGUSR2 do not exist.
func watchSignals(ctx context.Context, _ chan<- struct{}, _ *util.Logger) {
	<-ctx.Done()
}
