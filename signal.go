package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forceExit ends the process when a second interrupt arrives. Tests
// replace it.
var forceExit = os.Exit

// shutdownContext derives a context from parent for one upload run.
// SIGINT or SIGTERM cancels it, which aborts the in-flight request while
// the attempt is still written to the history. A second signal exits with
// exitFault without waiting. Canceling parent releases the signal goroutine.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT, syscall.SIGTERM)

	go watchInterrupts(parent, ctx, cancel, interrupts, logger)

	return ctx
}

func watchInterrupts(
	parent, run context.Context, cancel context.CancelFunc,
	interrupts chan os.Signal, logger *slog.Logger,
) {
	defer signal.Stop(interrupts)

	sig, ok := nextSignal(run, interrupts)
	if !ok {
		return
	}

	logger.Info("interrupted, aborting upload", slog.String("signal", sig.String()))
	cancel()

	sig, ok = nextSignal(parent, interrupts)
	if !ok {
		return
	}

	logger.Warn("interrupted again, exiting now", slog.String("signal", sig.String()))
	forceExit(exitFault)
}

// nextSignal waits for a signal until ctx is done.
func nextSignal(ctx context.Context, interrupts <-chan os.Signal) (os.Signal, bool) {
	select {
	case sig := <-interrupts:
		return sig, true
	case <-ctx.Done():
		return nil, false
	}
}
