package pose

import (
	"context"

	"gocv.io/x/gocv"
)

// Estimator defines the interface for single-person pose estimation.
type Estimator interface {
	// Estimate runs the model against one frame and returns its keypoints.
	// The frame is owned by the caller and must not be retained.
	Estimate(ctx context.Context, frame *gocv.Mat) (Result, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for the subprocess estimator.
type Config struct {
	// ScriptPath overrides the model service script location.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the script.
	PythonPath string

	// IdleTimeoutSec shuts the service down after this many idle seconds (default: 30).
	IdleTimeoutSec int

	// JPEGQuality is the encode quality for frames sent to the service (default: 90).
	JPEGQuality int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		IdleTimeoutSec: 30,
		JPEGQuality:    90,
	}
}
