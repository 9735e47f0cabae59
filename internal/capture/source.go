package capture

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/ayusman/posecam/internal/device"
	"github.com/ayusman/posecam/internal/transform"
	"gocv.io/x/gocv"
)

// Frame is a model-ready image owned by exactly one consumer, which must Close it.
type Frame struct {
	Mat gocv.Mat
	Seq uint64
	// Rotation is the clockwise rotation applied to the raw capture, in degrees.
	Rotation int

	closed bool
}

// Close releases the frame's pixel buffer. It is safe to call more than once.
func (f *Frame) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true
	return f.Mat.Close()
}

// Closed reports whether Close has been called.
func (f *Frame) Closed() bool {
	return f.closed
}

// FacingProvider reports which camera the user has selected.
type FacingProvider interface {
	Facing() device.Facing
}

// SourceConfig controls how raw captures are turned into model input.
type SourceConfig struct {
	Profile transform.PlatformProfile
	// Output is the nominal portrait output rectangle frames are resized to.
	Output transform.Rect
	// FlipInput mirrors every frame horizontally before inference.
	FlipInput bool
}

// Source reads frames from a camera and prepares them for the pose model:
// texture rotation, resize to the effective output rectangle, optional flip.
// Orientation and facing are sampled once per frame.
type Source struct {
	camera  Camera
	monitor device.OrientationMonitor
	facing  FacingProvider
	config  SourceConfig
	seq     atomic.Uint64
}

// NewSource creates a Source over an opened camera.
func NewSource(camera Camera, monitor device.OrientationMonitor, facing FacingProvider, config SourceConfig) *Source {
	return &Source{
		camera:  camera,
		monitor: monitor,
		facing:  facing,
		config:  config,
	}
}

// View returns the transform view for the current device state.
func (s *Source) View(preview transform.Rect) transform.View {
	return transform.View{
		Orientation: s.monitor.Current(),
		Facing:      s.facing.Facing(),
		Profile:     s.config.Profile,
		Output:      s.config.Output,
		Preview:     preview,
	}
}

// NextFrame captures and prepares the next frame.
// Errors wrapping ErrExhausted mean no further frames will arrive.
func (s *Source) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.camera.ReadFrame()
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	// The camera read is not interruptible; drop the frame if we were cancelled meanwhile.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := s.View(s.config.Output)
	rotation := view.TextureRotation()
	out := view.EffectiveOutput()

	mat, err := Prepare(*raw, rotation, out, s.config.FlipInput)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Mat:      mat,
		Seq:      s.seq.Add(1),
		Rotation: rotation,
	}, nil
}

// Prepare rotates src clockwise by rotation degrees, resizes it to size and
// optionally mirrors it. The returned Mat is owned by the caller.
func Prepare(src gocv.Mat, rotation int, size transform.Rect, flip bool) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.Mat{}, fmt.Errorf("prepare: empty frame")
	}

	rotated := gocv.NewMat()
	defer rotated.Close()

	switch rotation {
	case 0:
		src.CopyTo(&rotated)
	case 90:
		gocv.Rotate(src, &rotated, gocv.Rotate90Clockwise)
	case 180:
		gocv.Rotate(src, &rotated, gocv.Rotate180Clockwise)
	case 270:
		gocv.Rotate(src, &rotated, gocv.Rotate90CounterClockwise)
	default:
		return gocv.Mat{}, fmt.Errorf("prepare: unsupported rotation %d", rotation)
	}

	resized := gocv.NewMat()
	gocv.Resize(rotated, &resized, image.Pt(int(size.Width), int(size.Height)), 0, 0, gocv.InterpolationLinear)

	if !flip {
		return resized, nil
	}

	flipped := gocv.NewMat()
	gocv.Flip(resized, &flipped, 1)
	resized.Close()

	return flipped, nil
}
