// Package config loads process configuration from defaults, an optional JSON
// file and environment variables, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/avoid/internal/detector"
	"github.com/ayusman/avoid/internal/overlay"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Environment variable names.
const (
	EnvConfigFile = "AVOID_CONFIG"
	EnvSource     = "AVOID_SOURCE"
	EnvAddr       = "AVOID_ADDR"
	EnvDB         = "AVOID_DB"
	EnvStaticDir  = "AVOID_STATIC_DIR"
	EnvSerialPort = "AVOID_SERIAL_PORT"
	EnvSerialBaud = "AVOID_SERIAL_BAUD"
	EnvLogLevel   = "AVOID_LOG_LEVEL"
	EnvLogJSON    = "AVOID_LOG_JSON"
	EnvTray       = "AVOID_TRAY"
	EnvPitchInv   = "AVOID_PITCH_INVERTED"
	EnvHook       = "AVOID_HOOK"
	EnvHookTime   = "AVOID_HOOK_TIMEOUT"
)

const maxFileSize = 1 << 20

// Config is the complete process configuration.
type Config struct {
	// Source is a capture device index ("0") or a stream URL.
	Source string
	// Addr is the HTTP listen address.
	Addr string
	// DBPath is the flight log database. Empty disables the log.
	DBPath string
	// StaticDir is served at / when set.
	StaticDir string

	SerialPort string
	SerialBaud int

	LogLevel string
	LogJSON  bool
	Tray     bool

	// MotionThreshold is the percentage of changed pixels that switches
	// capture to the active frame rate.
	MotionThreshold float64
	// StreamWidth is the width annotated frames are resized to before
	// streaming. Zero keeps the capture size.
	StreamWidth int
	// PitchInverted flips the vertical sense of pitch commands.
	PitchInverted bool

	// Hook is a program run on every command transition. Empty disables it.
	Hook        string
	HookTimeout time.Duration

	Detection detector.Config
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Source:          "0",
		Addr:            "127.0.0.1:8080",
		DBPath:          "avoid.db",
		SerialBaud:      57600,
		LogLevel:        "info",
		MotionThreshold: 1.0,
		StreamWidth:     overlay.DefaultDisplayWidth,
		Detection:       detector.DefaultConfig(),
	}
}

// Load reads .env if present, then the JSON file named by AVOID_CONFIG, then
// the remaining environment variables, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("%w: source is empty", ErrInvalid)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalid)
	}
	if c.SerialPort != "" && c.SerialBaud <= 0 {
		return fmt.Errorf("%w: serial baud %d must be positive", ErrInvalid, c.SerialBaud)
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 100 {
		return fmt.Errorf("%w: motion threshold %.2f outside 0-100", ErrInvalid, c.MotionThreshold)
	}
	if c.HookTimeout < 0 {
		return fmt.Errorf("%w: hook timeout %s is negative", ErrInvalid, c.HookTimeout)
	}
	if c.StreamWidth < 0 {
		return fmt.Errorf("%w: stream width %d is negative", ErrInvalid, c.StreamWidth)
	}
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// File is the JSON file schema. Omitted fields keep their current value.
type File struct {
	Source          *string  `json:"source,omitempty"`
	Addr            *string  `json:"addr,omitempty"`
	DBPath          *string  `json:"db_path,omitempty"`
	StaticDir       *string  `json:"static_dir,omitempty"`
	SerialPort      *string  `json:"serial_port,omitempty"`
	SerialBaud      *int     `json:"serial_baud,omitempty"`
	LogLevel        *string  `json:"log_level,omitempty"`
	LogJSON         *bool    `json:"log_json,omitempty"`
	Tray            *bool    `json:"tray,omitempty"`
	MotionThreshold *float64 `json:"motion_threshold,omitempty"`
	StreamWidth     *int     `json:"stream_width,omitempty"`
	PitchInverted   *bool    `json:"pitch_inverted,omitempty"`
	Hook            *string  `json:"hook,omitempty"`
	// HookTimeout is a Go duration string such as "1500ms".
	HookTimeout *string `json:"hook_timeout,omitempty"`

	Detection *DetectionFile `json:"detection,omitempty"`
}

// DetectionFile overrides detection parameters. Colors is keyed by colour
// name; a present key replaces that colour's ranges and a colour absent from
// the map is dropped from the table.
type DetectionFile struct {
	Colors     map[string][]detector.HSVRange `json:"colors,omitempty"`
	Rules      []detector.Rule                `json:"rules,omitempty"`
	NoiseFloor *float64                       `json:"noise_floor,omitempty"`
	Shape      *detector.ShapeParams          `json:"shape,omitempty"`
}

// ApplyFile overlays the JSON file at path onto c.
func (c *Config) ApplyFile(path string) error {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return fmt.Errorf("%w: config file must have .json extension, got %q", ErrInvalid, ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalid, info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrInvalid, clean, err)
	}
	return c.Apply(f)
}

// Apply overlays the set fields of f onto c.
func (c *Config) Apply(f File) error {
	setString(&c.Source, f.Source)
	setString(&c.Addr, f.Addr)
	setString(&c.DBPath, f.DBPath)
	setString(&c.StaticDir, f.StaticDir)
	setString(&c.SerialPort, f.SerialPort)
	setString(&c.LogLevel, f.LogLevel)
	if f.SerialBaud != nil {
		c.SerialBaud = *f.SerialBaud
	}
	if f.LogJSON != nil {
		c.LogJSON = *f.LogJSON
	}
	if f.Tray != nil {
		c.Tray = *f.Tray
	}
	if f.MotionThreshold != nil {
		c.MotionThreshold = *f.MotionThreshold
	}
	if f.StreamWidth != nil {
		c.StreamWidth = *f.StreamWidth
	}
	if f.PitchInverted != nil {
		c.PitchInverted = *f.PitchInverted
	}
	setString(&c.Hook, f.Hook)
	if f.HookTimeout != nil {
		d, err := time.ParseDuration(*f.HookTimeout)
		if err != nil {
			return fmt.Errorf("%w: hook_timeout: %w", ErrInvalid, err)
		}
		c.HookTimeout = d
	}

	if f.Detection == nil {
		return nil
	}
	d := f.Detection
	if d.Colors != nil {
		table, err := ColorTable(d.Colors)
		if err != nil {
			return err
		}
		c.Detection.Colors = table
	}
	if d.Rules != nil {
		c.Detection.Rules = d.Rules
	}
	if d.NoiseFloor != nil {
		c.Detection.NoiseFloor = *d.NoiseFloor
	}
	if d.Shape != nil {
		c.Detection.Shape = *d.Shape
	}
	return nil
}

// ColorTable converts a name-keyed colour map into a table ordered by the
// canonical colour order, so the same map always yields the same table.
func ColorTable(m map[string][]detector.HSVRange) ([]detector.ColorRange, error) {
	table := make([]detector.ColorRange, 0, len(m))
	for name, ranges := range m {
		color, err := detector.ParseColor(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		table = append(table, detector.ColorRange{Color: color, Ranges: ranges})
	}
	slices.SortFunc(table, func(a, b detector.ColorRange) int {
		return int(a.Color) - int(b.Color)
	})
	return table, nil
}

// ApplyEnv overlays environment variables read through getenv onto c.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setEnvString(&c.Source, getenv(EnvSource))
	setEnvString(&c.Addr, getenv(EnvAddr))
	setEnvString(&c.DBPath, getenv(EnvDB))
	setEnvString(&c.StaticDir, getenv(EnvStaticDir))
	setEnvString(&c.SerialPort, getenv(EnvSerialPort))
	setEnvString(&c.LogLevel, getenv(EnvLogLevel))
	setEnvString(&c.Hook, getenv(EnvHook))

	if v := getenv(EnvHookTime); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvHookTime, v, err)
		}
		c.HookTimeout = d
	}

	if v := getenv(EnvSerialBaud); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, EnvSerialBaud, v, err)
		}
		c.SerialBaud = baud
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{EnvLogJSON, &c.LogJSON},
		{EnvTray, &c.Tray},
		{EnvPitchInv, &c.PitchInverted},
	}
	for _, b := range bools {
		v := getenv(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, b.name, v, err)
		}
		*b.dst = parsed
	}
	return nil
}

// CameraDevice returns the device index when Source is numeric.
func (c Config) CameraDevice() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(c.Source))
	if err != nil {
		return 0, false
	}
	return id, true
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setEnvString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
