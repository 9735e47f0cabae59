package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/ayusman/posecam/internal/device"
	"github.com/ayusman/posecam/internal/transform"
	"gocv.io/x/gocv"
)

type fixedFacing device.Facing

func (f fixedFacing) Facing() device.Facing { return device.Facing(f) }

func TestPrepare(t *testing.T) {
	// 480 rows x 640 cols, landscape sensor output
	src := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer src.Close()

	tests := []struct {
		name     string
		rotation int
		size     transform.Rect
		flip     bool
	}{
		{"no rotation", 0, transform.Rect{Width: 180, Height: 240}, false},
		{"quarter turn", 90, transform.Rect{Width: 180, Height: 320}, false},
		{"half turn with flip", 180, transform.Rect{Width: 180, Height: 240}, true},
		{"three quarter turn", 270, transform.Rect{Width: 320, Height: 180}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Prepare(src, tt.rotation, tt.size, tt.flip)
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			defer out.Close()

			if out.Cols() != int(tt.size.Width) || out.Rows() != int(tt.size.Height) {
				t.Errorf("Prepare() size = %dx%d, want %vx%v", out.Cols(), out.Rows(), tt.size.Width, tt.size.Height)
			}
		})
	}

	t.Run("rejects odd rotation", func(t *testing.T) {
		if _, err := Prepare(src, 45, transform.Rect{Width: 10, Height: 10}, false); err == nil {
			t.Error("expected error for 45 degree rotation")
		}
	})

	t.Run("rejects empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		if _, err := Prepare(empty, 0, transform.Rect{Width: 10, Height: 10}, false); err == nil {
			t.Error("expected error for empty frame")
		}
	})
}

func newTestSource(t *testing.T, family transform.Family, o device.Orientation, f device.Facing, loop bool) (*Source, *MockCamera) {
	t.Helper()

	raw := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { raw.Close() })

	cam := NewMockCamera([]*gocv.Mat{&raw}, loop)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	profile := transform.ProfileFor(family)
	src := NewSource(cam, device.NewManualMonitor(o), fixedFacing(f), SourceConfig{
		Profile:   profile,
		Output:    profile.RectForWidth(180),
		FlipInput: true,
	})
	return src, cam
}

func TestSource_NextFrame(t *testing.T) {
	tests := []struct {
		name         string
		family       transform.Family
		orientation  device.Orientation
		facing       device.Facing
		wantCols     int
		wantRows     int
		wantRotation int
	}{
		{"family A portrait", transform.FamilyA, device.PortraitUp, device.Front, 180, 240, 0},
		{"family A landscape keeps size", transform.FamilyA, device.LandscapeLeft, device.Front, 180, 240, 0},
		{"family B portrait", transform.FamilyB, device.PortraitUp, device.Back, 180, 320, 0},
		{"family B landscape left front", transform.FamilyB, device.LandscapeLeft, device.Front, 320, 180, 270},
		{"family B landscape right back", transform.FamilyB, device.LandscapeRight, device.Back, 320, 180, 270},
		{"family B upside down", transform.FamilyB, device.PortraitDown, device.Front, 180, 320, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, _ := newTestSource(t, tt.family, tt.orientation, tt.facing, true)

			frame, err := src.NextFrame(context.Background())
			if err != nil {
				t.Fatalf("NextFrame() error = %v", err)
			}
			defer frame.Close()

			if frame.Mat.Cols() != tt.wantCols || frame.Mat.Rows() != tt.wantRows {
				t.Errorf("frame size = %dx%d, want %dx%d", frame.Mat.Cols(), frame.Mat.Rows(), tt.wantCols, tt.wantRows)
			}
			if frame.Rotation != tt.wantRotation {
				t.Errorf("Rotation = %d, want %d", frame.Rotation, tt.wantRotation)
			}
			if frame.Seq != 1 {
				t.Errorf("Seq = %d, want 1", frame.Seq)
			}
		})
	}
}

func TestSource_Exhaustion(t *testing.T) {
	src, _ := newTestSource(t, transform.FamilyA, device.PortraitUp, device.Front, false)

	frame, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame() error = %v", err)
	}
	frame.Close()

	_, err = src.NextFrame(context.Background())
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("NextFrame() error = %v, want ErrExhausted", err)
	}
}

func TestSource_CancelledContext(t *testing.T) {
	src, cam := newTestSource(t, transform.FamilyA, device.PortraitUp, device.Front, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.NextFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("NextFrame() error = %v, want context.Canceled", err)
	}
	if cam.Reads() != 0 {
		t.Errorf("camera read %d times, want 0", cam.Reads())
	}
}

func TestFrame_CloseTwice(t *testing.T) {
	frame := &Frame{Mat: gocv.NewMat()}
	if err := frame.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := frame.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
