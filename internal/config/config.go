package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppName is the directory name used for settings, logs and models.
const AppName = "Voice"

// Decode errors for input that holds no settings object.
var (
	ErrEmpty     = errors.New("settings file is empty")
	ErrNotObject = errors.New("settings are not an object")
)

// OutputMode selects how a transcript reaches the user.
type OutputMode string

const (
	// OutputClipboard copies the transcript and stops there.
	OutputClipboard OutputMode = "clipboard"
	// OutputPaste copies the transcript and sends the paste shortcut.
	OutputPaste OutputMode = "paste"
)

// Config holds the persisted user settings.
type Config struct {
	Hotkey              string     `json:"hotkey" yaml:"hotkey"`
	Model               string     `json:"model" yaml:"model"`
	Language            string     `json:"language" yaml:"language"` // "auto" or a language code
	Device              string     `json:"device" yaml:"device"`     // "cpu" or "cuda"
	ComputeType         string     `json:"computeType" yaml:"computeType"`
	OutputMode          OutputMode `json:"outputMode" yaml:"outputMode"`
	PreserveClipboard   bool       `json:"preserveClipboard" yaml:"preserveClipboard"`
	VADFilter           bool       `json:"vadFilter" yaml:"vadFilter"`
	AlwaysOnTop         bool       `json:"alwaysOnTop" yaml:"alwaysOnTop"`
	ShowBar             bool       `json:"showBar" yaml:"showBar"`
	ShowTranscriptToast bool       `json:"showTranscriptToast" yaml:"showTranscriptToast"`
	RememberPosition    bool       `json:"rememberPosition" yaml:"rememberPosition"`
	WindowPos           *[2]int    `json:"windowPos" yaml:"windowPos"`
}

// Default returns a Config with the documented default values.
func Default() *Config {
	return &Config{
		Hotkey:              "f9",
		Model:               "base",
		Language:            "auto",
		Device:              "cpu",
		ComputeType:         "int8",
		OutputMode:          OutputClipboard,
		PreserveClipboard:   true,
		VADFilter:           false,
		AlwaysOnTop:         true,
		ShowBar:             true,
		ShowTranscriptToast: true,
		RememberPosition:    true,
		WindowPos:           nil,
	}
}

// DefaultConfigDir returns the per-OS settings directory.
func DefaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base, _ = os.UserHomeDir()
		}
		return filepath.Join(base, AppName)
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", AppName)
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", strings.ToLower(AppName))
	}
}

// DefaultConfigPath returns the default settings file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// DefaultLogPath returns the path of the append-only application log.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), "gostt-ptt.log")
}

// DefaultModelsDir returns the directory whisper models are stored in.
func DefaultModelsDir() string {
	return filepath.Join(DefaultConfigDir(), "models")
}

// Load reads the settings file at path. It never fails: a missing or
// malformed file yields Default(), and a known field holding a value of the
// wrong type keeps its default. Use it for the startup load only; reloads
// go through Read so a bad edit cannot replace the user's settings.
func Load(path string) *Config {
	cfg, err := Read(path)
	if err != nil {
		slog.Debug("config: using defaults", "path", path, "reason", err)
		return Default()
	}
	return cfg
}

// Read reads and decodes the settings file at path, reporting missing,
// unreadable or malformed files as errors.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(data, isYAML(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes settings from data, falling back to Default() when data is
// not a settings object.
func Parse(data []byte, asYAML bool) *Config {
	cfg, err := Decode(data, asYAML)
	if err != nil {
		slog.Debug("config: malformed settings, using defaults", "err", err)
		return Default()
	}
	return cfg
}

// Decode decodes settings from data. YAML input is accepted when asYAML is
// set; otherwise data must be a JSON object. Empty input is an error, since
// it usually means the file is still being written.
func Decode(data []byte, asYAML bool) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}
	fields, err := decodeFields(data, asYAML)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	cfg := Default()
	cfg.apply(fields)
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory if needed. The
// file is replaced atomically.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: replace %s: %w", path, err)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.WindowPos != nil {
		pos := *c.WindowPos
		out.WindowPos = &pos
	}
	return &out
}

// Equal reports whether c and o hold the same settings.
func (c *Config) Equal(o *Config) bool {
	if c == nil || o == nil {
		return c == o
	}
	a, b := *c, *o
	a.WindowPos, b.WindowPos = nil, nil
	if a != b {
		return false
	}
	switch {
	case c.WindowPos == nil && o.WindowPos == nil:
		return true
	case c.WindowPos == nil || o.WindowPos == nil:
		return false
	default:
		return *c.WindowPos == *o.WindowPos
	}
}

// ParseLogLevel converts a level name to a slog.Level. Unknown names map to
// info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// decodeFields splits the top-level object into raw JSON values keyed by
// field name.
func decodeFields(data []byte, asYAML bool) (map[string]json.RawMessage, error) {
	if !asYAML {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, err
		}
		return fields, nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	fields := make(map[string]json.RawMessage, len(doc))
	for k, v := range doc {
		raw, err := json.Marshal(v)
		if err != nil {
			continue
		}
		fields[k] = raw
	}
	return fields, nil
}

// apply copies every allow-listed field present in fields onto c. Names
// after the first are snake_case spellings written by older builds.
func (c *Config) apply(fields map[string]json.RawMessage) {
	setString(fields, &c.Hotkey, "hotkey")
	setString(fields, &c.Model, "model")
	setString(fields, &c.Language, "language")
	setString(fields, &c.Device, "device")
	setString(fields, &c.ComputeType, "computeType", "compute_type")
	setBool(fields, &c.PreserveClipboard, "preserveClipboard", "preserve_clipboard")
	setBool(fields, &c.VADFilter, "vadFilter", "vad_filter")
	setBool(fields, &c.AlwaysOnTop, "alwaysOnTop", "always_on_top")
	setBool(fields, &c.ShowBar, "showBar", "show_bar")
	setBool(fields, &c.ShowTranscriptToast, "showTranscriptToast", "show_transcript_toast")
	setBool(fields, &c.RememberPosition, "rememberPosition", "remember_position")

	if raw, ok := lookup(fields, "windowPos", "window_pos"); ok {
		if isNull(raw) {
			c.WindowPos = nil
		} else {
			decodeInto(raw, &c.WindowPos)
		}
	}

	var mode string
	if setString(fields, &mode, "outputMode", "output_mode") {
		c.OutputMode = OutputMode(mode)
		return
	}
	// Legacy: a boolean "paste after copy" predates outputMode.
	var paste bool
	if raw, ok := lookup(fields, "pasteAfterCopy", "paste_after_copy"); ok && decodeInto(raw, &paste) {
		if paste {
			c.OutputMode = OutputPaste
		} else {
			c.OutputMode = OutputClipboard
		}
	}
}

// normalize folds values into their canonical form and replaces values that
// cannot be used with defaults.
func (c *Config) normalize() {
	def := Default()

	c.Hotkey = strings.ToLower(strings.TrimSpace(c.Hotkey))
	if c.Hotkey == "" {
		c.Hotkey = def.Hotkey
	}
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = def.Model
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = def.Language
	}
	c.Device = strings.ToLower(strings.TrimSpace(c.Device))
	if c.Device == "" {
		c.Device = def.Device
	}
	c.ComputeType = strings.ToLower(strings.TrimSpace(c.ComputeType))
	if c.ComputeType == "" {
		c.ComputeType = def.ComputeType
	}
	switch OutputMode(strings.ToLower(string(c.OutputMode))) {
	case OutputPaste:
		c.OutputMode = OutputPaste
	case OutputClipboard:
		c.OutputMode = OutputClipboard
	default:
		c.OutputMode = def.OutputMode
	}
}

func lookup(fields map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		if raw, ok := fields[name]; ok {
			return raw, true
		}
	}
	return nil, false
}

func setString(fields map[string]json.RawMessage, dst *string, names ...string) bool {
	raw, ok := lookup(fields, names...)
	return ok && decodeInto(raw, dst)
}

func setBool(fields map[string]json.RawMessage, dst *bool, names ...string) bool {
	raw, ok := lookup(fields, names...)
	return ok && decodeInto(raw, dst)
}

// decodeInto unmarshals raw into a fresh T and only then stores it, so a
// type mismatch or a null leaves dst untouched.
func decodeInto[T any](raw json.RawMessage, dst *T) bool {
	if isNull(raw) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
