//go:build unix

package cmd

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"bgnc/internal/trigger"
	"bgnc/util"
)

// watchSignals maps SIGUSR1 to the external disconnect trigger and
// SIGUSR2 to an attach toggle until ctx is done.
func watchSignals(ctx context.Context, toggle chan<- struct{}, logger *util.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGUSR1, unix.SIGUSR2)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			switch sig {
			case unix.SIGUSR1:
				n := trigger.Fire(trigger.Disconnect)
				logger.Debug("SIGUSR1: disconnect trigger reached %d stream(s)", n)
			case unix.SIGUSR2:
				select {
				case toggle <- struct{}{}:
				default:
				}
			}
		}
	}
}
