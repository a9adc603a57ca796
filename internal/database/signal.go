package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownContext derives a context that is canceled on SIGTERM or SIGINT so
// in-flight queries are abandoned and connections can be closed. onSignal,
// if non-nil, runs before the cancellation.
func ShutdownContext(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
