package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/zsiec/hostpanel/internal/cli"
)

func main() {
	// Cancel on SIGINT or SIGTERM so open panels are expired before exit.
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	code := cli.Execute(ctx)
	cancel()
	os.Exit(code)
}
