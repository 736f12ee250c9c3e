//go:build !windows

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-ptt/internal/session"
)

// handleSignals maps SIGUSR1 to a stop request and SIGHUP to a settings
// reload until ctx is done.
func handleSignals(ctx context.Context, ctrl *session.Controller, reload func()) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGUSR1:
				slog.Info("gostt-ptt: stop requested", "signal", sig)
				ctrl.RequestStop()
			case syscall.SIGHUP:
				slog.Info("gostt-ptt: reloading settings", "signal", sig)
				reload()
			}
		}
	}
}
