// Package hotkey turns the global keyboard hook into push-to-talk edges for
// a single rebindable key.
package hotkey

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// DefaultKey is used when a configured key name cannot be resolved.
const DefaultKey = "f9"

// Edge is a logical transition of the push-to-talk key.
type Edge int

const (
	// Pressed is emitted once per physical press, ignoring key repeat.
	Pressed Edge = iota
	// Released is emitted when the held key goes up.
	Released
)

func (e Edge) String() string {
	switch e {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// Key is a resolved key binding.
type Key struct {
	Name string
	Code uint16
}

// ParseKey resolves a single character or named key ("f9", "space",
// "ctrl") through gohook's key table. Unknown names fall back to
// DefaultKey and report ok=false.
func ParseKey(name string) (key Key, ok bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if code, found := hook.Keycode[n]; found && n != "" {
		return Key{Name: n, Code: code}, true
	}
	return Key{Name: DefaultKey, Code: hook.Keycode[DefaultKey]}, false
}

// Edges deduplicates raw key-down/key-up events for one key. It is not safe
// for concurrent use.
type Edges struct {
	code uint16
	held bool
}

// NewEdges tracks the key with the given code.
func NewEdges(code uint16) *Edges {
	return &Edges{code: code}
}

// Down handles a raw key-down. It returns Pressed on the first down for the
// tracked key and false for repeats and other keys.
func (e *Edges) Down(code uint16) (Edge, bool) {
	if code != e.code || e.held {
		return 0, false
	}
	e.held = true
	return Pressed, true
}

// Up handles a raw key-up. It returns Released only when the tracked key
// was held.
func (e *Edges) Up(code uint16) (Edge, bool) {
	if code != e.code || !e.held {
		return 0, false
	}
	e.held = false
	return Released, true
}

// Reset tracks a new key code and forgets any held state.
func (e *Edges) Reset(code uint16) {
	e.code = code
	e.held = false
}

// Held reports whether the tracked key is currently down.
func (e *Edges) Held() bool {
	return e.held
}

// Listener listens to the global keyboard hook and emits edges for the
// bound key.
type Listener struct {
	mu    sync.Mutex
	key   Key
	edges *Edges

	ch   chan Edge
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener bound to keyName. An unresolvable name is
// logged and replaced by DefaultKey.
func NewListener(keyName string) *Listener {
	key := resolve(keyName)
	return &Listener{
		key:   key,
		edges: NewEdges(key.Code),
		ch:    make(chan Edge, 16),
		done:  make(chan struct{}),
	}
}

func resolve(name string) Key {
	key, ok := ParseKey(name)
	if !ok {
		slog.Warn("hotkey: unknown key, using default", "key", name, "default", key.Name)
	}
	return key
}

// Events returns the channel that receives edges. It is closed when the
// listener stops.
func (l *Listener) Events() <-chan Edge {
	return l.ch
}

// Key returns the current binding.
func (l *Listener) Key() Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key
}

// Rebind swaps the tracked key without restarting the hook. It takes effect
// on the next event. If the old key is held, a Released edge is emitted so
// a recording in progress ends instead of waiting on the new key.
func (l *Listener) Rebind(keyName string) {
	key := resolve(keyName)
	l.mu.Lock()
	if key == l.key {
		l.mu.Unlock()
		return
	}
	wasHeld := l.edges.Held()
	l.key = key
	l.edges.Reset(key.Code)
	l.mu.Unlock()

	slog.Info("hotkey: rebound", "key", key.Name, "released_held", wasHeld)
	if wasHeld {
		l.emit(Released)
	}
}

// Start installs the global hook and blocks until Stop is called. Run it in
// a goroutine.
func (l *Listener) Start() {
	defer close(l.ch)

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()

	slog.Info("hotkey: listening", "key", l.Key().Name)
	for {
		select {
		case <-l.done:
			return
		case ev, ok := <-evChan:
			if !ok {
				return
			}
			l.handle(ev)
		}
	}
}

// handle feeds one raw hook event through the dedupe state. Panics are
// contained so a bad event cannot take down the hook goroutine.
func (l *Listener) handle(ev hook.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("hotkey: event handler panic", "panic", r)
		}
	}()

	var (
		edge Edge
		ok   bool
	)
	l.mu.Lock()
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		edge, ok = l.edges.Down(ev.Keycode)
	case hook.KeyUp:
		edge, ok = l.edges.Up(ev.Keycode)
	}
	l.mu.Unlock()

	if ok {
		l.emit(edge)
	}
}

func (l *Listener) emit(edge Edge) {
	select {
	case l.ch <- edge:
	case <-l.done:
	default:
		slog.Warn("hotkey: event channel full, dropping edge", "edge", edge)
	}
}

// Stop terminates the listener. It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
