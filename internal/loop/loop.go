// Package loop drives the acquire, infer, publish, reschedule cycle that feeds
// the pose overlay.
//
// A Loop runs on a single goroutine and never has more than one inference call
// outstanding. Cancellation is cooperative: Cancel sets a flag that the loop
// samples right before committing to an inference call and again after each
// publish. A call that was already committed when Cancel ran is allowed to
// finish and publish, so observers may see one more result after Cancel
// returns.
//
// No deadline is placed on the estimator. If it never returns, the loop never
// observes cancellation and Done never closes.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/fps"
	"github.com/ayusman/posecam/internal/pose"
	"github.com/google/uuid"
)

// DefaultMaxFrameErrors is how many consecutive frame read failures are
// tolerated before the frame source is considered exhausted.
const DefaultMaxFrameErrors = 30

var (
	// ErrAlreadyRunning is returned by Start on a running loop.
	ErrAlreadyRunning = errors.New("inference loop already running")
	// ErrCancelled is returned by Start on a cancelled loop.
	ErrCancelled = errors.New("inference loop cancelled")
	// ErrNotStarted is returned by Cancel on a loop that was never started.
	ErrNotStarted = errors.New("inference loop not started")
	// ErrFrameSourceExhausted is reported by Err when the loop stopped because
	// no further frames could be acquired.
	ErrFrameSourceExhausted = errors.New("frame source exhausted")
	// ErrPanicked is reported by Err when a frame source or preview hook
	// panicked on the loop goroutine.
	ErrPanicked = errors.New("inference loop panicked")
)

// State is the lifecycle state of a Loop.
type State int32

const (
	Idle State = iota
	Running
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// FrameSource yields model-ready frames. Errors wrapping capture.ErrExhausted
// are fatal to the loop; any other error is retried on the next cycle.
type FrameSource interface {
	NextFrame(ctx context.Context) (*capture.Frame, error)
}

// Snapshot is one published cycle result. The pose and the frame rate are
// always published together.
type Snapshot struct {
	Seq     uint64
	Pose    pose.Result
	FPS     int
	HasFPS  bool
	Latency time.Duration
	At      time.Time
}

// Options configures a Loop.
type Options struct {
	// Scheduler paces cycles. Nil uses a FrameTicker at DefaultDisplayHz.
	Scheduler Scheduler

	// AutoRender is true when the preview redraws itself. When false,
	// PreviewUpdate is called once per cycle after publishing.
	AutoRender    bool
	PreviewUpdate func()

	// MaxFrameErrors is the number of consecutive frame read failures
	// tolerated before the loop stops. 0 uses DefaultMaxFrameErrors.
	MaxFrameErrors int

	// Now is the clock used to measure inference latency.
	Now func() time.Time
}

// DefaultOptions returns Options with sensible default values.
func DefaultOptions() Options {
	return Options{
		AutoRender:     true,
		MaxFrameErrors: DefaultMaxFrameErrors,
		Now:            time.Now,
	}
}

// Loop is a single-use inference loop: Idle, then Running, then Cancelled.
// A cancelled loop cannot be restarted; create a new one instead.
type Loop struct {
	id        string
	source    FrameSource
	estimator pose.Estimator
	opts      Options

	mu         sync.Mutex
	state      State
	stop       atomic.Bool
	stopWaits  context.CancelFunc
	err        error
	ownedTimer *FrameTicker

	seq     uint64
	latest  atomic.Pointer[Snapshot]
	updates chan struct{}
	done    chan struct{}
}

// New creates an idle Loop. It is the only caller of est while running.
func New(src FrameSource, est pose.Estimator, opts Options) *Loop {
	if opts.MaxFrameErrors <= 0 {
		opts.MaxFrameErrors = DefaultMaxFrameErrors
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Loop{
		id:        uuid.NewString(),
		source:    src,
		estimator: est,
		opts:      opts,
		state:     Idle,
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// ID returns the loop's unique instance id.
func (l *Loop) ID() string {
	return l.id
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start begins cycling on a new goroutine. Cancelling ctx stops the loop the
// same way Cancel does and is also passed to the estimator.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Running:
		return ErrAlreadyRunning
	case Cancelled:
		return ErrCancelled
	}

	scheduler := l.opts.Scheduler
	if scheduler == nil {
		l.ownedTimer = NewFrameTicker(DefaultDisplayHz)
		scheduler = l.ownedTimer
	}

	waitCtx, stopWaits := context.WithCancel(ctx)
	l.stopWaits = stopWaits
	l.state = Running

	go l.run(ctx, waitCtx, scheduler)

	log.Printf("inference loop %s started", l.id)
	return nil
}

// Cancel requests the loop to stop and moves it to Cancelled. Once Cancel
// returns no new inference call begins; one already in flight may still
// publish. Cancel does not wait for the goroutine to exit; use Done for that.
// Cancelling an already cancelled loop is a no-op.
func (l *Loop) Cancel() error {
	l.mu.Lock()
	switch l.state {
	case Idle:
		l.mu.Unlock()
		return ErrNotStarted
	case Cancelled:
		l.mu.Unlock()
		return nil
	}

	l.stop.Store(true)
	l.state = Cancelled
	stopWaits := l.stopWaits
	l.mu.Unlock()

	stopWaits()
	log.Printf("inference loop %s cancel requested", l.id)
	return nil
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns the fatal error that stopped the loop, or nil if it was
// cancelled or is still running.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Latest returns the most recently published snapshot, or nil before the
// first successful cycle.
func (l *Loop) Latest() *Snapshot {
	return l.latest.Load()
}

// Updates receives a value after each publish. It holds at most one pending
// notification; a slow reader sees only that something changed and should
// read Latest.
func (l *Loop) Updates() <-chan struct{} {
	return l.updates
}

func (l *Loop) run(ctx, waitCtx context.Context, scheduler Scheduler) {
	defer close(l.done)
	defer l.stopWaits()
	if l.ownedTimer != nil {
		defer l.ownedTimer.Stop()
	}
	// Runs before done is closed so waiters observe the error.
	defer func() {
		if r := recover(); r != nil {
			l.finish(fmt.Errorf("%w: %v", ErrPanicked, r))
		}
	}()

	frameErrors := 0

	for {
		frame, err := l.source.NextFrame(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				l.finish(nil)
				return
			}
			if errors.Is(err, capture.ErrExhausted) {
				l.finish(fmt.Errorf("%w: %v", ErrFrameSourceExhausted, err))
				return
			}

			frameErrors++
			log.Printf("inference loop %s: read frame: %v (%d consecutive)", l.id, err, frameErrors)
			if frameErrors >= l.opts.MaxFrameErrors {
				l.finish(fmt.Errorf("%w: %d consecutive read failures, last: %v", ErrFrameSourceExhausted, frameErrors, err))
				return
			}
		} else {
			frameErrors = 0

			if !l.commit() {
				frame.Close()
				l.finish(nil)
				return
			}
			l.cycle(ctx, frame)
		}

		if l.stop.Load() {
			l.finish(nil)
			return
		}

		if !l.opts.AutoRender && l.opts.PreviewUpdate != nil {
			l.opts.PreviewUpdate()
		}

		if err := scheduler.Wait(waitCtx); err != nil {
			l.finish(nil)
			return
		}
	}
}

// commit decides, under the same lock Cancel takes, whether the next
// inference call may begin.
func (l *Loop) commit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.stop.Load()
}

// cycle runs one inference call and publishes its result. The frame is
// released as soon as the estimator returns.
func (l *Loop) cycle(ctx context.Context, frame *capture.Frame) {
	start := l.opts.Now()
	result, err := l.estimate(ctx, frame)
	end := l.opts.Now()
	frame.Close()

	if err != nil {
		log.Printf("inference loop %s: estimate frame %d: %v", l.id, frame.Seq, err)
		return
	}

	l.publish(result, end.Sub(start), end)
}

func (l *Loop) estimate(ctx context.Context, frame *capture.Frame) (result pose.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("estimator panic: %v", r)
		}
	}()
	return l.estimator.Estimate(ctx, &frame.Mat)
}

func (l *Loop) publish(result pose.Result, latency time.Duration, at time.Time) {
	l.seq++
	snap := &Snapshot{
		Seq:     l.seq,
		Pose:    result,
		Latency: latency,
		At:      at,
	}

	if rate, ok := fps.FromLatency(latency); ok {
		snap.FPS = rate
		snap.HasFPS = true
	} else if prev := l.latest.Load(); prev != nil {
		snap.FPS = prev.FPS
		snap.HasFPS = prev.HasFPS
	}

	l.latest.Store(snap)

	select {
	case l.updates <- struct{}{}:
	default:
	}
}

// finish moves the loop to its terminal state from the loop goroutine.
func (l *Loop) finish(err error) {
	l.mu.Lock()
	l.stop.Store(true)
	l.state = Cancelled
	if err != nil && l.err == nil {
		l.err = err
	}
	l.mu.Unlock()

	if err != nil {
		log.Printf("inference loop %s stopped: %v", l.id, err)
		return
	}
	log.Printf("inference loop %s stopped", l.id)
}
