package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// signalListener is implemented by anything that can be told to stop in
// response to an OS signal, mirroring this codebase's own cmd/signal.go
// contract for its long-running agent/server processes.
type signalListener interface {
	Signal(os.Signal)
}

// listenSignals subscribes to SIGINT/SIGTERM and forwards whichever
// fires first to listener, same shape as the teacher's listenSignals but
// scoped to the rivet command package.
func listenSignals(ctx context.Context, listener signalListener) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			listener.Signal(os.Interrupt)
		case sig := <-sigs:
			listener.Signal(sig)
		}
	}()
}
