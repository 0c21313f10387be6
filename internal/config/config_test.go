package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/avoid/internal/detector"
	"github.com/ayusman/avoid/internal/overlay"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0", cfg.Source)
	assert.Equal(t, detector.DefaultNoiseFloor, cfg.Detection.NoiseFloor)
	assert.Len(t, cfg.Detection.Colors, 3)
	assert.False(t, cfg.PitchInverted)
	assert.Equal(t, overlay.DefaultDisplayWidth, cfg.StreamWidth)

	id, ok := cfg.CameraDevice()
	assert.True(t, ok)
	assert.Equal(t, 0, id)
}

func TestApplyFile(t *testing.T) {
	path := writeFile(t, "avoid.json", `{
		"source": "http://192.168.1.20:8080/video",
		"serial_port": "/dev/ttyACM0",
		"pitch_inverted": true,
		"hook": "/usr/local/bin/avoid-hook",
		"hook_timeout": "750ms",
		"detection": {
			"noise_floor": 250,
			"colors": {
				"blue":  [{"hue_lo": 100, "hue_hi": 130, "sat_lo": 150, "sat_hi": 255, "val_lo": 0, "val_hi": 255}],
				"red":   [{"hue_lo": 0, "hue_hi": 8, "sat_lo": 120, "sat_hi": 255, "val_lo": 70, "val_hi": 255},
				          {"hue_lo": 172, "hue_hi": 180, "sat_lo": 120, "sat_hi": 255, "val_lo": 70, "val_hi": 255}]
			},
			"rules": [{"color": "red", "shape": "triangle", "class": "dangerous_obstacle"}]
		}
	}`)

	cfg := Default()
	require.NoError(t, cfg.ApplyFile(path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://192.168.1.20:8080/video", cfg.Source)
	_, ok := cfg.CameraDevice()
	assert.False(t, ok)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort)
	assert.Equal(t, 57600, cfg.SerialBaud, "unset fields keep defaults")
	assert.True(t, cfg.PitchInverted)
	assert.Equal(t, "/usr/local/bin/avoid-hook", cfg.Hook)
	assert.Equal(t, 750*time.Millisecond, cfg.HookTimeout)
	assert.Equal(t, 250.0, cfg.Detection.NoiseFloor)
	assert.Equal(t, detector.DefaultShapeParams(), cfg.Detection.Shape)

	require.Len(t, cfg.Detection.Colors, 2)
	assert.Equal(t, detector.ColorRed, cfg.Detection.Colors[0].Color)
	assert.Equal(t, detector.ColorBlue, cfg.Detection.Colors[1].Color)
	assert.Equal(t, 172, cfg.Detection.Colors[0].Ranges[1].HueLo)

	assert.Equal(t, []detector.Rule{
		{Color: detector.ColorRed, Shape: detector.ShapeTriangle, Class: detector.ClassDangerousObstacle},
	}, cfg.Detection.Rules)
}

func TestApplyFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "avoid.yaml", "{}"},
		{"malformed json", "avoid.json", "{"},
		{"unknown colour", "avoid.json", `{"detection": {"colors": {"purple": []}}}`},
		{"bad hook timeout", "avoid.json", `{"hook_timeout": "soon"}`},
		{"unknown shape", "avoid.json", `{"detection": {"rules": [{"color": "red", "shape": "hexagon", "class": "none"}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyFile(writeFile(t, tt.file, tt.body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		cfg := Default()
		assert.Error(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "nope.json")))
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvSource:     "2",
		EnvAddr:       ":9000",
		EnvSerialPort: "/dev/ttyUSB0",
		EnvSerialBaud: "115200",
		EnvLogJSON:    "true",
		EnvTray:       "1",
		EnvPitchInv:   "false",
		EnvHook:       "./hooks/notify.sh",
		EnvHookTime:   "3s",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.True(t, cfg.LogJSON)
	assert.True(t, cfg.Tray)
	assert.False(t, cfg.PitchInverted)
	assert.Equal(t, "avoid.db", cfg.DBPath)
	assert.Equal(t, "./hooks/notify.sh", cfg.Hook)
	assert.Equal(t, 3*time.Second, cfg.HookTimeout)

	id, ok := cfg.CameraDevice()
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestApplyEnv_Errors(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.ApplyEnv(envMap(map[string]string{EnvSerialBaud: "fast"})), ErrInvalid)
	assert.ErrorIs(t, cfg.ApplyEnv(envMap(map[string]string{EnvTray: "maybe"})), ErrInvalid)
	assert.ErrorIs(t, cfg.ApplyEnv(envMap(map[string]string{EnvHookTime: "10"})), ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty source", func(c *Config) { c.Source = " " }},
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"serial without baud", func(c *Config) { c.SerialPort = "/dev/ttyS0"; c.SerialBaud = 0 }},
		{"motion threshold", func(c *Config) { c.MotionThreshold = 150 }},
		{"hook timeout", func(c *Config) { c.HookTimeout = -time.Second }},
		{"stream width", func(c *Config) { c.StreamWidth = -1 }},
		{"inverted hue bounds", func(c *Config) { c.Detection.Colors[1].Ranges[0].HueLo = 90 }},
		{"empty range set", func(c *Config) { c.Detection.Colors[2].Ranges = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}

	t.Run("detection errors keep their sentinel", func(t *testing.T) {
		cfg := Default()
		cfg.Detection.NoiseFloor = -1
		err := cfg.Validate()
		assert.ErrorIs(t, err, ErrInvalid)
		assert.ErrorIs(t, err, detector.ErrInvalidConfig)
	})
}

func TestColorTable_Deterministic(t *testing.T) {
	m := map[string][]detector.HSVRange{
		"blue":  {{HueLo: 94, HueHi: 126, SatHi: 255, ValHi: 255}},
		"green": {{HueLo: 36, HueHi: 86, SatHi: 255, ValHi: 255}},
		"red":   {{HueLo: 0, HueHi: 10, SatHi: 255, ValHi: 255}},
	}

	first, err := ColorTable(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ColorTable(m)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("ColorTable() changed between calls (-first +again):\n%s", diff)
		}
	}

	want := []detector.Color{detector.ColorRed, detector.ColorGreen, detector.ColorBlue}
	for i, cr := range first {
		assert.Equal(t, want[i], cr.Color)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "avoid.json", `{"addr": ":7000", "detection": {"noise_floor": 100}}`)
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvAddr, ":7001")
	t.Setenv(EnvSource, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Addr, "environment wins over file")
	assert.Equal(t, 100.0, cfg.Detection.NoiseFloor)
}

func TestLoad_InvalidFileFailsFast(t *testing.T) {
	path := writeFile(t, "avoid.json", `{"detection": {"noise_floor": -4}}`)
	t.Setenv(EnvConfigFile, path)

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}
