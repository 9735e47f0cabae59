package capture

import (
	"errors"
	"testing"
)

func TestNewCamera_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		config  DeviceConfig
		wantFPS int
	}{
		{"zero config", DeviceConfig{}, DefaultFPS},
		{"requested rate", DeviceConfig{ID: 1, FPS: 24}, 24},
		{"negative rate", DeviceConfig{ID: 2, FPS: -1}, DefaultFPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be open initially")
			}
		})
	}

	d := DeviceConfig{}.withDefaults()
	if d.Width != DefaultWidth || d.Height != DefaultHeight {
		t.Errorf("withDefaults() size = %dx%d, want %dx%d", d.Width, d.Height, DefaultWidth, DefaultHeight)
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DeviceConfig{})

	steps := []struct {
		fps  int
		want int
	}{
		{fps: 15, want: 15},
		{fps: 60, want: 60},
		{fps: 0, want: 60},
		{fps: -5, want: 60},
	}

	for _, s := range steps {
		cam.SetFPS(s.fps)
		if got := cam.FPS(); got != s.want {
			t.Errorf("after SetFPS(%d): FPS() = %d, want %d", s.fps, got, s.want)
		}
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(DeviceConfig{})

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(DeviceConfig{})

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on unopened camera = %v, want nil", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DeviceConfig{})
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Empty() {
			t.Error("ReadFrame() returned empty mat")
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}
