// Package tray provides the system tray menu for posecam.
package tray

import (
	"fmt"
	"sync"

	"github.com/ayusman/posecam/internal/transform"
	"github.com/getlantern/systray"
)

const appTitle = "posecam"

// Tray represents the system tray application. It also shows the inference
// frame rate in its title, so it can be registered as an overlay presenter.
type Tray struct {
	onFlip   func()
	getDebug func() bool
	onDebug  func(on bool)
	onQuit  func()
	debug   bool
	title   string
	ready   bool
	mu      sync.RWMutex

	// Menu items stored for later updates
	menuDebug *systray.MenuItem
}

// New creates a new Tray reflecting the given debug state.
func New(debug bool) *Tray {
	return &Tray{
		debug: debug,
		title: appTitle,
	}
}

// OnFlip sets the callback called when "Flip camera" is clicked.
func (t *Tray) OnFlip(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFlip = fn
}

// OnDebug wires the debug toggle. get reports the current overlay state,
// which other surfaces may have changed; set is called with the new state
// when the menu item is clicked.
func (t *Tray) OnDebug(get func() bool, set func(on bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.getDebug = get
	t.onDebug = set
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// onReady sets up the menu structure once the tray is up.
func (t *Tray) onReady() {
	t.mu.Lock()
	t.ready = true
	systray.SetTitle(t.title)
	systray.SetTooltip("posecam pose overlay")

	menuFlip := systray.AddMenuItem("Flip camera", "Switch between front and back camera")
	t.menuDebug = systray.AddMenuItem(debugLabel(t.debug), "Show or hide the skeleton overlay")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit posecam")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-menuFlip.ClickedCh:
				t.handleFlip()
			case <-t.menuDebug.ClickedCh:
				t.handleDebug()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func debugLabel(on bool) string {
	if on {
		return "● Debug on"
	}
	return "○ Debug off"
}

func (t *Tray) handleFlip() {
	t.mu.RLock()
	callback := t.onFlip
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleDebug() {
	t.mu.RLock()
	current := t.debug
	get, callback := t.getDebug, t.onDebug
	t.mu.RUnlock()

	// Callbacks run outside the lock to prevent deadlocks
	if get != nil {
		current = get()
	}
	on := !current
	t.SetDebug(on)

	if callback != nil {
		callback(on)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetDebug updates the debug state shown in the menu without firing OnDebug.
// Register it with the App so API changes show up in the menu.
func (t *Tray) SetDebug(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.debug = on
	if t.menuDebug != nil {
		t.menuDebug.SetTitle(debugLabel(on))
	}
}

// Quit stops the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// Render is a no-op; the tray shows no geometry.
func (t *Tray) Render(edges []transform.Edge, points []transform.Point) {}

// SetFPS shows the inference frame rate in the tray title.
func (t *Tray) SetFPS(fps int, ok bool) {
	title := appTitle
	if ok {
		title = fmt.Sprintf("%s %d fps", appTitle, fps)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if title == t.title {
		return
	}
	t.title = title
	if t.ready {
		systray.SetTitle(title)
	}
}

// Title returns the current tray title.
func (t *Tray) Title() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

// Debug returns the debug state shown in the menu.
func (t *Tray) Debug() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.debug
}
