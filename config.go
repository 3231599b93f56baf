package pano

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the conservative values the grid has always shipped with.
const (
	DefaultMaxConcurrent    = 2
	DefaultDeferredTeardown = 3000 * time.Millisecond
	DefaultAdmissionRetry   = 500 * time.Millisecond

	DefaultAutoRotateSpeed = -2.0
	DefaultInitialPitch    = 10.0
	DefaultInitialYaw      = 180.0
	DefaultHFOV            = 110.0
	DefaultPreloadMarginPx = 50

	MinHFOV = 50.0
	MaxHFOV = 120.0
)

// ErrInvalidConfig is returned by Validate and LoadConfig.
var ErrInvalidConfig = errors.New("pano: invalid config")

// PoolConfig bounds the number of live viewers and times their teardown.
type PoolConfig struct {
	// MaxConcurrent is the hard cap on live rendering contexts. Keep it
	// well below the runtime's real context ceiling.
	MaxConcurrent int `yaml:"max_concurrent"`

	// DeferredTeardown is how long a viewer that left the viewport keeps
	// its slot before eviction. Zero evicts as soon as it leaves.
	DeferredTeardown time.Duration `yaml:"-"`

	// AdmissionRetry is the polling interval while waiting for a slot.
	AdmissionRetry time.Duration `yaml:"-"`
}

// ViewerConfig configures a single panorama viewer.
type ViewerConfig struct {
	// AutoRotateSpeed is in degrees per second. Negative rotates left,
	// zero disables auto-rotation.
	AutoRotateSpeed float64 `yaml:"auto_rotate_speed"`

	// ShowControls enables the compass overlay and zoom input.
	ShowControls bool `yaml:"show_controls"`

	InitialPitch float64 `yaml:"initial_pitch"`
	InitialYaw   float64 `yaml:"initial_yaw"`

	// HFOV is the horizontal field of view in degrees, clamped to
	// [MinHFOV, MaxHFOV].
	HFOV float64 `yaml:"hfov"`

	// Lazy defers construction until the card nears the viewport. A
	// non-lazy viewer is treated as visible from mount.
	Lazy bool `yaml:"lazy"`

	// PreloadMarginPx expands the viewport on every side so a card is
	// reported visible slightly before it scrolls into frame. Zero
	// reports only cards that overlap the viewport itself.
	PreloadMarginPx int `yaml:"preload_margin_px"`
}

// Orientation is the camera state a viewer is constructed with.
type Orientation struct {
	Pitch           float64
	Yaw             float64
	HFOV            float64
	AutoRotateSpeed float64
}

// Orientation returns the initial camera orientation for the viewer.
func (c ViewerConfig) Orientation() Orientation {
	return Orientation{
		Pitch:           c.InitialPitch,
		Yaw:             c.InitialYaw,
		HFOV:            c.HFOV,
		AutoRotateSpeed: c.AutoRotateSpeed,
	}
}

// Config is the file-level configuration.
type Config struct {
	Pool   PoolConfig   `yaml:"pool"`
	Viewer ViewerConfig `yaml:"viewer"`
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrent:    DefaultMaxConcurrent,
		DeferredTeardown: DefaultDeferredTeardown,
		AdmissionRetry:   DefaultAdmissionRetry,
	}
}

// DefaultViewerConfig returns the default viewer configuration.
func DefaultViewerConfig() ViewerConfig {
	return ViewerConfig{
		AutoRotateSpeed: DefaultAutoRotateSpeed,
		InitialPitch:    DefaultInitialPitch,
		InitialYaw:      DefaultInitialYaw,
		HFOV:            DefaultHFOV,
		Lazy:            true,
		PreloadMarginPx: DefaultPreloadMarginPx,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Pool:   DefaultPoolConfig(),
		Viewer: DefaultViewerConfig(),
	}
}

// Normalize fills zero values that are never valid with defaults.
// DeferredTeardown is kept as is: zero is a real setting.
func (c PoolConfig) Normalize() PoolConfig {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.AdmissionRetry == 0 {
		c.AdmissionRetry = DefaultAdmissionRetry
	}
	return c
}

// Validate reports configuration that cannot be normalized.
func (c PoolConfig) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("%w: max_concurrent must be at least 1, got %d", ErrInvalidConfig, c.MaxConcurrent)
	}
	if c.DeferredTeardown < 0 {
		return fmt.Errorf("%w: deferred teardown must not be negative, got %v", ErrInvalidConfig, c.DeferredTeardown)
	}
	if c.AdmissionRetry <= 0 {
		return fmt.Errorf("%w: admission retry must be positive, got %v", ErrInvalidConfig, c.AdmissionRetry)
	}
	return nil
}

// Normalize fills a zero HFOV with the default and clamps it.
// PreloadMarginPx is kept as is: zero is a real setting.
func (c ViewerConfig) Normalize() ViewerConfig {
	if c.HFOV == 0 {
		c.HFOV = DefaultHFOV
	}
	c.HFOV = ClampHFOV(c.HFOV)
	return c
}

// Validate reports configuration that cannot be normalized.
func (c ViewerConfig) Validate() error {
	if c.PreloadMarginPx < 0 {
		return fmt.Errorf("%w: preload_margin_px must not be negative, got %d", ErrInvalidConfig, c.PreloadMarginPx)
	}
	if c.InitialPitch < -90 || c.InitialPitch > 90 {
		return fmt.Errorf("%w: initial_pitch must be within [-90, 90], got %g", ErrInvalidConfig, c.InitialPitch)
	}
	return nil
}

// Normalize normalizes both sections.
func (c Config) Normalize() Config {
	c.Pool = c.Pool.Normalize()
	c.Viewer = c.Viewer.Normalize()
	return c
}

// Validate validates both sections.
func (c Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return c.Viewer.Validate()
}

// ClampHFOV limits a field of view to [MinHFOV, MaxHFOV].
func ClampHFOV(v float64) float64 {
	switch {
	case v < MinHFOV:
		return MinHFOV
	case v > MaxHFOV:
		return MaxHFOV
	default:
		return v
	}
}

// fileConfig is the on-disk shape. Durations are written in milliseconds.
type fileConfig struct {
	Pool struct {
		MaxConcurrent      int `yaml:"max_concurrent"`
		DeferredTeardownMs int `yaml:"deferred_teardown_ms"`
		AdmissionRetryMs   int `yaml:"admission_retry_ms"`
	} `yaml:"pool"`
	Viewer ViewerConfig `yaml:"viewer"`
}

// ParseConfig decodes YAML configuration. Absent keys keep their defaults;
// unknown keys are rejected.
//
// Example:
//
//	pool:
//	  max_concurrent: 4
//	  deferred_teardown_ms: 3000
//	  admission_retry_ms: 500
//	viewer:
//	  auto_rotate_speed: -3
//	  lazy: true
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	fc := fileConfig{Viewer: cfg.Viewer}
	fc.Pool.MaxConcurrent = cfg.Pool.MaxConcurrent
	fc.Pool.DeferredTeardownMs = int(cfg.Pool.DeferredTeardown / time.Millisecond)
	fc.Pool.AdmissionRetryMs = int(cfg.Pool.AdmissionRetry / time.Millisecond)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.Viewer = fc.Viewer
	cfg.Pool = PoolConfig{
		MaxConcurrent:    fc.Pool.MaxConcurrent,
		DeferredTeardown: time.Duration(fc.Pool.DeferredTeardownMs) * time.Millisecond,
		AdmissionRetry:   time.Duration(fc.Pool.AdmissionRetryMs) * time.Millisecond,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.Normalize(), nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pano: reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
