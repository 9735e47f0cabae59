// Package capture provides camera capture and model-input preparation using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

// Capture defaults, applied when a DeviceConfig field is zero.
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrExhausted is returned when no further frames can be obtained.
	ErrExhausted = errors.New("frame source exhausted")
)

// Camera is a raw frame producer. Frames come back in sensor orientation;
// Source rotates and scales them for the pose model.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns a frame the caller must Close.
	ReadFrame() (*gocv.Mat, error)
	// SetFPS requests a capture rate. Rates <= 0 are ignored.
	SetFPS(fps int)
	// FPS returns the capture rate in effect.
	FPS() int
	IsOpen() bool
}

// DeviceConfig selects a capture device and the raw format requested from it.
type DeviceConfig struct {
	ID     int
	Width  int
	Height int
	FPS    int
}

func (d DeviceConfig) withDefaults() DeviceConfig {
	if d.Width <= 0 {
		d.Width = DefaultWidth
	}
	if d.Height <= 0 {
		d.Height = DefaultHeight
	}
	if d.FPS <= 0 {
		d.FPS = DefaultFPS
	}
	return d
}

// deviceCamera reads from a local video device through OpenCV.
type deviceCamera struct {
	mu     sync.Mutex
	config DeviceConfig
	video  *gocv.VideoCapture
}

// NewCamera creates a closed Camera for the given device.
func NewCamera(config DeviceConfig) Camera {
	return &deviceCamera{config: config.withDefaults()}
}

// Open starts capture with the configured format. Opening an open camera is a no-op.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.video != nil {
		return nil
	}

	video, err := gocv.OpenVideoCapture(c.config.ID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", c.config.ID, err)
	}

	video.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
	video.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	video.Set(gocv.VideoCaptureFPS, float64(c.config.FPS))

	// Devices round the request to a mode they support.
	if got := int(video.Get(gocv.VideoCaptureFPS)); got > 0 && got != c.config.FPS {
		log.Printf("camera %d: requested %d fps, device reports %d", c.config.ID, c.config.FPS, got)
		c.config.FPS = got
	}

	c.video = video
	return nil
}

// Close releases the device.
func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.video == nil {
		return nil
	}
	err := c.video.Close()
	c.video = nil
	return err
}

// ReadFrame grabs the next frame. A device that has gone away reports ErrExhausted.
func (c *deviceCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.video == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if !c.video.Read(&mat) {
		mat.Close()
		if !c.video.IsOpened() {
			return nil, fmt.Errorf("camera %d closed: %w", c.config.ID, ErrExhausted)
		}
		return nil, fmt.Errorf("camera %d: read failed", c.config.ID)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("camera %d: empty frame", c.config.ID)
	}

	return &mat, nil
}

// SetFPS changes the requested capture rate, applying it at once if open.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.config.FPS = fps
	if c.video != nil {
		c.video.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.FPS
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video != nil
}
