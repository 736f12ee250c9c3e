// Command test-inject is a manual test for transcript output.
// It waits 3 seconds, then copies or pastes test text.
// Focus a text editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--mode clipboard|paste] [--preserve]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/gostt-ptt/internal/config"
	"github.com/chaz8081/gostt-ptt/internal/inject"
)

func main() {
	mode := flag.String("mode", string(config.OutputPaste), "output mode: clipboard or paste")
	preserve := flag.Bool("preserve", true, "restore the previous clipboard after pasting")
	flag.Parse()

	text := "Hello from gostt-ptt!"

	fmt.Printf("Will output %q using %q mode in 3 seconds...\n", text, *mode)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	out := inject.NewOutput(inject.NewClipboard(), inject.RobotKeys{})
	if err := out.Apply(text, config.OutputMode(*mode), *preserve); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
