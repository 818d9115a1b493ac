package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context that is cancelled on the first SIGINT or
// SIGTERM. A second signal exits the process immediately.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Warn("interrupted, finishing the current unit of work", "signal", sig.String())
		cancel()

		sig = <-sigs
		slog.Error("interrupted again, exiting", "signal", sig.String())
		os.Exit(130)
	}()

	return ctx
}

// Fatal logs message and exits with status 1.
func Fatal(message string, err error) {
	if err != nil {
		slog.Error(message, "err", err)
	} else {
		slog.Error(message)
	}
	os.Exit(1)
}
