package main

import (
	"context"
	"os"

	"logwatch/internal/logging"
)

// watchShutdownSignals cancels the watch loop on the first signal. It only
// touches the cancel func, never watcher state; the loop notices the
// cancellation and the caller runs the shutdown sequence.
func watchShutdownSignals(logger *logging.Logger, cancel context.CancelFunc, signals <-chan os.Signal) func() {
	if signals == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				received++
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				if received == 1 {
					logger.Info("shutdown signal received", fields)
					cancel()
					continue
				}
				if received == 2 {
					logger.Info("shutdown already in progress; ignoring signal", fields)
				}
			}
		}
	}()

	return func() {
		close(done)
	}
}
