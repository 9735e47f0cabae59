package app

import (
	"context"
	"log"

	"github.com/ayusman/posecam/internal/loop"
	"github.com/ayusman/posecam/internal/transform"
)

// runRender turns published snapshots into overlay renders.
//
// Render logic:
// 1. Wait for a publish or an orientation change
// 2. Sample orientation and facing for the current view
// 3. Project the latest pose, or nothing when debug is off
// 4. Hand the frame rate and geometry to every presenter
//
// It exits when ctx is cancelled or the loop stops. The ticker, if any, is
// owned by this run and stopped on exit.
func (a *App) runRender(ctx context.Context, l *loop.Loop, ticker *loop.FrameTicker, done chan struct{}) {
	defer close(done)
	if ticker != nil {
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-l.Updates():
			a.render(l.Latest())

		case <-a.rotated:
			a.resizeCanvas()
			a.render(l.Latest())

		case <-l.Done():
			// Show whatever was published last before going quiet.
			select {
			case <-l.Updates():
				a.render(l.Latest())
			default:
			}
			if err := l.Err(); err != nil {
				log.Printf("overlay stopped rendering: %v", err)
			}
			return
		}
	}
}

// render projects snap for the current view and presents it.
func (a *App) render(snap *loop.Snapshot) {
	if snap == nil {
		return
	}

	view := a.source.View(a.config.PreviewRect())

	var ov transform.Overlay
	if a.Debug() {
		ov = transform.Project(view, snap.Pose, a.config.MinKeypointScore)
	}

	a.presenters.SetFPS(snap.FPS, snap.HasFPS)
	a.presenters.Render(ov.Edges, ov.Points)
}

func (a *App) resizeCanvas() {
	screen := a.source.View(a.config.PreviewRect()).Screen()
	a.canvas.Resize(int(screen.Width), int(screen.Height))
}
