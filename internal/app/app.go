// Package app wires the camera, pose estimator, inference loop and presenters
// into the running posecam overlay.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/posecam/internal/capture"
	"github.com/ayusman/posecam/internal/config"
	"github.com/ayusman/posecam/internal/device"
	"github.com/ayusman/posecam/internal/loop"
	"github.com/ayusman/posecam/internal/overlay"
	"github.com/ayusman/posecam/internal/pose"
	"github.com/ayusman/posecam/internal/store"
)

// stopTimeout bounds how long Stop waits for an in-flight inference call.
const stopTimeout = 3 * time.Second

// ErrRunning is returned by Start when the overlay is already running.
var ErrRunning = errors.New("overlay already running")

// Options supplies collaborators. Nil fields are built from the config.
type Options struct {
	Camera     capture.Camera
	Estimator  pose.Estimator
	Store      *store.Store
	Monitor    *device.ManualMonitor
	Scheduler  loop.Scheduler
	Presenters []overlay.Presenter
}

// Status is a point-in-time view of the overlay for the API and tray.
type Status struct {
	LoopID        string             `json:"loop_id,omitempty"`
	State         string             `json:"state"`
	Error         string             `json:"error,omitempty"`
	Seq           uint64             `json:"seq"`
	FPS           int                `json:"fps"`
	HasFPS        bool               `json:"has_fps"`
	Orientation   device.Orientation `json:"orientation"`
	Facing        device.Facing      `json:"facing"`
	Debug         bool               `json:"debug"`
	PreviewFrames uint64             `json:"preview_frames"`
}

// App is the posecam overlay: one inference loop feeding one render goroutine.
type App struct {
	config     config.Config
	camera     capture.Camera
	estimator  pose.Estimator
	store      *store.Store
	monitor    *device.ManualMonitor
	scheduler  loop.Scheduler
	source     *capture.Source
	canvas     *overlay.Canvas
	presenters overlay.Multi

	mu           sync.RWMutex
	facing       device.Facing
	debug        bool
	loop         *loop.Loop
	stopRender   context.CancelFunc
	renderDone   chan struct{}
	rotated      chan struct{}
	unsubscribe  func()
	previewFrame atomic.Uint64
	debugHooks   []func(on bool)
}

// New creates an App. Camera facing and debug mode are restored from the
// store when one is given.
func New(cfg config.Config, opts Options) *App {
	a := &App{
		config:    cfg,
		camera:    opts.Camera,
		estimator: opts.Estimator,
		store:     opts.Store,
		monitor:   opts.Monitor,
		scheduler: opts.Scheduler,
		facing:    device.Front,
		debug:     true,
		rotated:   make(chan struct{}, 1),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(cfg.Device())
	}
	if a.monitor == nil {
		a.monitor = device.NewManualMonitor(cfg.InitialOrientation())
	}

	// Try MoveNet first, fall back to the mock estimator
	if a.estimator == nil {
		estCfg := pose.DefaultConfig()
		estCfg.ScriptPath = cfg.ModelScript
		if mn, err := pose.NewMoveNetEstimator(estCfg); err == nil {
			a.estimator = mn
			log.Println("using MoveNet pose estimation")
		} else {
			log.Printf("MoveNet not available (%v), using mock estimator", err)
			a.estimator = pose.NewMockEstimator()
		}
	}

	a.source = capture.NewSource(a.camera, a.monitor, a, capture.SourceConfig{
		Profile:   cfg.Profile(),
		Output:    cfg.OutputRect(),
		FlipInput: cfg.FlipInput,
	})

	screen := a.source.View(cfg.PreviewRect()).Screen()
	a.canvas = overlay.NewCanvas(int(screen.Width), int(screen.Height))
	a.presenters = append(overlay.Multi{a.canvas}, opts.Presenters...)

	a.restoreSettings()
	return a
}

func (a *App) restoreSettings() {
	if a.store == nil {
		return
	}
	settings := a.store.Settings()

	if v, err := settings.GetOr(store.KeyCameraFacing, a.facing.String()); err != nil {
		log.Printf("failed to load camera facing: %v", err)
	} else if f, err := device.ParseFacing(v); err == nil {
		a.facing = f
	}

	if v, err := settings.GetOr(store.KeyDebugMode, strconv.FormatBool(a.debug)); err != nil {
		log.Printf("failed to load debug mode: %v", err)
	} else if b, err := strconv.ParseBool(v); err == nil {
		a.debug = b
	}
}

// Start opens the camera and starts the inference loop and render goroutine.
// A fatal loop error stops rendering; the App then stays quiescent until
// Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loop != nil && a.loop.State() == loop.Running {
		return ErrRunning
	}

	// A previous run that ended on a fatal error leaves these behind.
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	if a.stopRender != nil {
		a.stopRender()
		a.stopRender = nil
	}

	if !a.camera.IsOpen() {
		a.camera.SetFPS(a.config.CameraFPS)
		if err := a.camera.Open(); err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		log.Printf("camera open at %d fps", a.camera.FPS())
	}

	opts := loop.DefaultOptions()
	opts.Scheduler = a.scheduler
	var ticker *loop.FrameTicker
	if opts.Scheduler == nil {
		ticker = loop.NewFrameTicker(a.config.DisplayHz)
		opts.Scheduler = ticker
	}
	opts.AutoRender = a.config.AutoRender
	opts.PreviewUpdate = a.previewUpdated
	opts.MaxFrameErrors = a.config.MaxFrameErrors

	l := loop.New(a.source, a.estimator, opts)
	if err := l.Start(ctx); err != nil {
		if ticker != nil {
			ticker.Stop()
		}
		return err
	}

	renderCtx, stopRender := context.WithCancel(ctx)
	a.loop = l
	a.stopRender = stopRender
	a.renderDone = make(chan struct{})
	a.unsubscribe = a.monitor.Subscribe(a.orientationChanged)

	go a.runRender(renderCtx, l, ticker, a.renderDone)

	log.Printf("overlay started (loop %s, platform %s)", l.ID(), a.config.Profile().Family)
	return nil
}

// Stop cancels the loop, waits briefly for it to exit and releases the camera
// and estimator. Stop is safe to call more than once.
func (a *App) Stop() {
	a.mu.Lock()
	l := a.loop
	stopRender := a.stopRender
	renderDone := a.renderDone
	unsubscribe := a.unsubscribe
	a.stopRender = nil
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if l != nil {
		l.Cancel()
		select {
		case <-l.Done():
		case <-time.After(stopTimeout):
			log.Printf("inference loop %s did not exit within %v", l.ID(), stopTimeout)
		}
	}
	if stopRender != nil {
		stopRender()
		<-renderDone
	}

	if err := a.camera.Close(); err != nil {
		log.Printf("error closing camera: %v", err)
	}
	if err := a.estimator.Close(); err != nil {
		log.Printf("error closing estimator: %v", err)
	}

	log.Println("overlay stopped")
}

// Done is closed when the current loop exits, or is nil before Start.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.loop == nil {
		return nil
	}
	return a.loop.Done()
}

// Err returns the fatal error that stopped the loop, if any.
func (a *App) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.loop == nil {
		return nil
	}
	return a.loop.Err()
}

// Facing returns the selected camera. It implements capture.FacingProvider.
func (a *App) Facing() device.Facing {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.facing
}

// SetFacing selects the camera and persists the choice.
func (a *App) SetFacing(f device.Facing) error {
	a.mu.Lock()
	a.facing = f
	a.mu.Unlock()

	log.Printf("camera facing set to %s", f)
	return a.persist(store.KeyCameraFacing, f.String())
}

// ToggleFacing flips between the front and back camera.
func (a *App) ToggleFacing() error {
	return a.SetFacing(a.Facing().Toggle())
}

// Debug reports whether the skeleton overlay is drawn.
func (a *App) Debug() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.debug
}

// SetDebug turns the skeleton overlay on or off and persists the choice.
// Inference keeps running while the overlay is off.
func (a *App) SetDebug(on bool) error {
	a.mu.Lock()
	a.debug = on
	hooks := append(([]func(bool))(nil), a.debugHooks...)
	a.mu.Unlock()

	// Hooks run outside the lock so they may call back into the App.
	for _, fn := range hooks {
		fn(on)
	}

	log.Printf("debug overlay set to %v", on)
	return a.persist(store.KeyDebugMode, strconv.FormatBool(on))
}

// OnDebugChange registers fn to be called after every SetDebug, whichever
// surface (API or tray) made the change.
func (a *App) OnDebugChange(fn func(on bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debugHooks = append(a.debugHooks, fn)
}

// SetOrientation updates the device orientation.
func (a *App) SetOrientation(o device.Orientation) {
	a.monitor.Set(o)
}

// Orientation returns the current device orientation.
func (a *App) Orientation() device.Orientation {
	return a.monitor.Current()
}

// Canvas returns the off-screen overlay canvas.
func (a *App) Canvas() *overlay.Canvas {
	return a.canvas
}

// Status returns the current overlay status.
func (a *App) Status() Status {
	a.mu.RLock()
	l := a.loop
	st := Status{
		State:         loop.Idle.String(),
		Facing:        a.facing,
		Debug:         a.debug,
		PreviewFrames: a.previewFrame.Load(),
	}
	a.mu.RUnlock()

	st.Orientation = a.monitor.Current()
	if l == nil {
		return st
	}

	st.LoopID = l.ID()
	st.State = l.State().String()
	if err := l.Err(); err != nil {
		st.Error = err.Error()
	}
	if snap := l.Latest(); snap != nil {
		st.Seq = snap.Seq
		st.FPS = snap.FPS
		st.HasFPS = snap.HasFPS
	}
	return st
}

func (a *App) persist(key, value string) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.Settings().Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (a *App) previewUpdated() {
	a.previewFrame.Add(1)
}

func (a *App) orientationChanged(o device.Orientation) {
	log.Printf("orientation changed to %s", o)
	select {
	case a.rotated <- struct{}{}:
	default:
	}
}
