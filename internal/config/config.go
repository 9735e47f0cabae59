// Package config loads posecam settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/device"
	"github.com/ayusman/posecam/internal/loop"
	"github.com/ayusman/posecam/internal/transform"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the data directory.
const FileName = "config.yaml"

// Config holds every tunable the overlay depends on.
type Config struct {
	CameraID         int     `yaml:"camera_id"`
	CameraFPS        int     `yaml:"camera_fps"`
	CaptureWidth     int     `yaml:"capture_width"`
	CaptureHeight    int     `yaml:"capture_height"`
	Platform         string  `yaml:"platform"`           // a (texture auto-rotates) or b
	MinKeypointScore float64 `yaml:"min_keypoint_score"` // joints at or below are hidden
	OutputWidth      float64 `yaml:"output_width"`       // model input width; height from platform aspect
	PreviewWidth     float64 `yaml:"preview_width"`      // on-screen width; height from platform aspect
	AutoRender       bool    `yaml:"auto_render"`
	DisplayHz        int     `yaml:"display_hz"`
	FlipInput        bool    `yaml:"flip_input"`
	MaxFrameErrors   int     `yaml:"max_frame_errors"`
	Orientation      string  `yaml:"orientation"`
	ListenAddr       string  `yaml:"listen_addr"`
	DataDir          string  `yaml:"data_dir"`
	ModelScript      string  `yaml:"model_script"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	dataDir := ".posecam"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".posecam")
	}

	return Config{
		CameraID:         0,
		CameraFPS:        capture.DefaultFPS,
		CaptureWidth:     capture.DefaultWidth,
		CaptureHeight:    capture.DefaultHeight,
		Platform:         "a",
		MinKeypointScore: transform.DefaultMinScore,
		OutputWidth:      180,
		PreviewWidth:     1080,
		AutoRender:       true,
		DisplayHz:        loop.DefaultDisplayHz,
		FlipInput:        true,
		MaxFrameErrors:   loop.DefaultMaxFrameErrors,
		Orientation:      device.PortraitUp.String(),
		ListenAddr:       ":8080",
		DataDir:          dataDir,
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrCreate loads path, first writing the defaults there if the file
// does not exist yet so users have a template to edit.
func LoadOrCreate(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Default().Save(path); err != nil {
			return Default(), fmt.Errorf("write default config: %w", err)
		}
	}
	return Load(path)
}

// Save writes the config as YAML, creating parent directories as needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := transform.ParseFamily(c.Platform); err != nil {
		return err
	}
	if _, err := device.ParseOrientation(c.Orientation); err != nil {
		return err
	}
	if c.CameraFPS <= 0 {
		return fmt.Errorf("camera_fps must be positive, got %d", c.CameraFPS)
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return fmt.Errorf("capture size must be positive, got %dx%d", c.CaptureWidth, c.CaptureHeight)
	}
	if c.MinKeypointScore < 0 || c.MinKeypointScore > 1 {
		return fmt.Errorf("min_keypoint_score %v out of range [0,1]", c.MinKeypointScore)
	}
	if c.OutputWidth <= 0 {
		return fmt.Errorf("output_width must be positive, got %v", c.OutputWidth)
	}
	if c.PreviewWidth <= 0 {
		return fmt.Errorf("preview_width must be positive, got %v", c.PreviewWidth)
	}
	if c.DisplayHz <= 0 {
		return fmt.Errorf("display_hz must be positive, got %d", c.DisplayHz)
	}
	if c.MaxFrameErrors <= 0 {
		return fmt.Errorf("max_frame_errors must be positive, got %d", c.MaxFrameErrors)
	}
	return nil
}

// Device returns the capture device settings.
func (c Config) Device() capture.DeviceConfig {
	return capture.DeviceConfig{
		ID:     c.CameraID,
		Width:  c.CaptureWidth,
		Height: c.CaptureHeight,
		FPS:    c.CameraFPS,
	}
}

// Profile returns the platform profile for the configured family.
func (c Config) Profile() transform.PlatformProfile {
	family, err := transform.ParseFamily(c.Platform)
	if err != nil {
		family = transform.FamilyA
	}
	return transform.ProfileFor(family)
}

// OutputRect returns the nominal portrait model-input rectangle.
func (c Config) OutputRect() transform.Rect {
	return c.Profile().RectForWidth(c.OutputWidth)
}

// PreviewRect returns the nominal portrait preview rectangle.
func (c Config) PreviewRect() transform.Rect {
	return c.Profile().RectForWidth(c.PreviewWidth)
}

// InitialOrientation returns the configured starting orientation.
func (c Config) InitialOrientation() device.Orientation {
	o, err := device.ParseOrientation(c.Orientation)
	if err != nil {
		return device.PortraitUp
	}
	return o
}

// DBPath returns the settings database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "posecam.db")
}
