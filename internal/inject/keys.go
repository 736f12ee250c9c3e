package inject

import (
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Keys presses and releases single keys as independent primitives.
type Keys interface {
	Down(key string) error
	Up(key string) error
}

// RobotKeys injects synthetic key events through robotgo.
type RobotKeys struct{}

func (RobotKeys) Down(key string) error {
	return robotgo.KeyToggle(key, "down")
}

func (RobotKeys) Up(key string) error {
	return robotgo.KeyToggle(key, "up")
}

// PasteModifier is the modifier held for the paste shortcut on this
// platform: Command on macOS, Control elsewhere.
func PasteModifier() string {
	return pasteModifier(runtime.GOOS)
}

func pasteModifier(goos string) string {
	if goos == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
