//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// signalContext returns a context canceled on Ctrl+C. Windows has no
// SIGTERM; the runtime maps console close and Ctrl+Break to os.Interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
