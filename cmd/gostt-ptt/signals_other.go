//go:build windows

package main

import (
	"context"

	"github.com/chaz8081/gostt-ptt/internal/session"
)

// handleSignals waits for ctx; Windows has no stop or reload signals. The
// settings watcher still picks up edits.
func handleSignals(ctx context.Context, _ *session.Controller, _ func()) error {
	<-ctx.Done()
	return nil
}
