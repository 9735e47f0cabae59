package pose

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockEstimator is a test implementation of the Estimator interface.
// It allows tests to control the estimation results and timing.
type MockEstimator struct {
	mu         sync.Mutex
	result     Result
	err        error
	delay      time.Duration
	onEstimate func(call int)
	calls      int
	inFlight   int
	maxFlight  int
	closed     bool
}

// NewMockEstimator creates a new MockEstimator instance.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{}
}

// SetResult sets the result that will be returned by Estimate.
func (m *MockEstimator) SetResult(result Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetError sets the error that will be returned by Estimate.
func (m *MockEstimator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes every Estimate call take at least d.
func (m *MockEstimator) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// OnEstimate registers a hook run at the start of every call with its 1-based number.
// The hook runs outside the mock's lock and may block.
func (m *MockEstimator) OnEstimate(fn func(call int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEstimate = fn
}

// Estimate returns the pre-configured result or error.
func (m *MockEstimator) Estimate(ctx context.Context, frame *gocv.Mat) (Result, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	hook := m.onEstimate
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if hook != nil {
		hook(call)
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Result{}, m.err
	}
	return m.result, nil
}

// Calls returns how many times Estimate has been invoked.
func (m *MockEstimator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight returns the largest number of concurrent Estimate calls observed.
func (m *MockEstimator) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// Close marks the mock as closed.
func (m *MockEstimator) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockEstimator) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// StandingPose returns a preset Result of an upright subject facing the camera,
// laid out in a 180x240 output rectangle with every joint confidently detected.
func StandingPose() Result {
	coords := [NumKeypoints][2]float64{
		Nose:          {90, 40},
		LeftEye:       {96, 34},
		RightEye:      {84, 34},
		LeftEar:       {104, 38},
		RightEar:      {76, 38},
		LeftShoulder:  {112, 70},
		RightShoulder: {68, 70},
		LeftElbow:     {122, 105},
		RightElbow:    {58, 105},
		LeftWrist:     {126, 138},
		RightWrist:    {54, 138},
		LeftHip:       {104, 140},
		RightHip:      {76, 140},
		LeftKnee:      {106, 182},
		RightKnee:     {74, 182},
		LeftAnkle:     {108, 224},
		RightAnkle:    {72, 224},
	}

	result := Result{Keypoints: make([]Keypoint, NumKeypoints)}
	for i, c := range coords {
		result.Keypoints[i] = Keypoint{
			Name:  KeypointNames[i],
			X:     c[0],
			Y:     c[1],
			Score: Score(0.9),
		}
	}
	return result
}
