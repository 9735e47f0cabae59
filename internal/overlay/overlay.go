// Package overlay draws transformed pose keypoints and skeleton edges.
package overlay

import "github.com/ayusman/posecam/internal/transform"

// Presenter consumes one frame's worth of overlay geometry.
// Render is called synchronously from the render goroutine and must not block
// for long; presenters give no feedback to the caller.
type Presenter interface {
	Render(edges []transform.Edge, points []transform.Point)
}

// StatusPresenter is implemented by presenters that also show the frame rate.
type StatusPresenter interface {
	Presenter
	SetFPS(fps int, ok bool)
}

// Multi fans a render out to several presenters in order.
type Multi []Presenter

// Render forwards to every presenter.
func (m Multi) Render(edges []transform.Edge, points []transform.Point) {
	for _, p := range m {
		p.Render(edges, points)
	}
}

// SetFPS forwards to every presenter that shows the frame rate.
func (m Multi) SetFPS(fps int, ok bool) {
	for _, p := range m {
		if sp, isStatus := p.(StatusPresenter); isStatus {
			sp.SetFPS(fps, ok)
		}
	}
}
