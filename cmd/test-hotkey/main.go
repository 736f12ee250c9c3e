// Command test-hotkey is a manual test for the global push-to-talk key.
// Run it, then hold and release the key to see edges.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--key f9]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gostt-ptt/internal/hotkey"
)

func main() {
	key := flag.String("key", hotkey.DefaultKey, "key to listen for (e.g. f9, space, a)")
	flag.Parse()

	listener := hotkey.NewListener(*key)
	fmt.Printf("Listening for %q (code %d)...\n", listener.Key().Name, listener.Key().Code)
	fmt.Println("Press Ctrl+C to exit.")

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read edges
	go func() {
		for edge := range listener.Events() {
			switch edge {
			case hotkey.Pressed:
				fmt.Println(">>> PRESSED  (recording)")
			case hotkey.Released:
				fmt.Println("<<< RELEASED (transcribe)")
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
