// bgnc - netcat whose stream outlives the terminal attached to it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bgnc/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bgnc: %v\n", err)
		os.Exit(1)
	}
}
