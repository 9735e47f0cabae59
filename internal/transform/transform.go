// Package transform maps pose keypoints from the model's output rectangle into
// screen space, correcting for device orientation and camera mirroring.
//
// Every function in this package is pure: identical inputs give identical outputs.
package transform

import (
	"github.com/ayusman/posecam/internal/device"
	"github.com/ayusman/posecam/internal/pose"
)

// DefaultMinScore is the keypoint confidence a joint must exceed to be drawn.
const DefaultMinScore = 0.3

// Rect is a width/height pair.
type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Swap returns r with width and height exchanged.
func (r Rect) Swap() Rect {
	return Rect{Width: r.Height, Height: r.Width}
}

// Point is a screen-space position, optionally labelled with its joint name.
type Point struct {
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Edge is a skeleton bone between two screen-space points.
type Edge struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Overlay is everything a presenter needs to draw one pose.
type Overlay struct {
	Points []Point `json:"points"`
	Edges  []Edge  `json:"edges"`
}

// View captures the device state a transform depends on.
// Output and Preview are the nominal portrait rectangles.
type View struct {
	Orientation device.Orientation
	Facing      device.Facing
	Profile     PlatformProfile
	Output      Rect
	Preview     Rect
}

// EffectiveOutput returns the output rectangle frames are actually resized to.
// Its dimensions swap in landscape when the profile requires it.
func (v View) EffectiveOutput() Rect {
	if v.Orientation.IsLandscape() && v.Profile.SwapOutputInLandscape {
		return v.Output.Swap()
	}
	return v.Output
}

// Screen returns the preview rectangle as laid out on screen for the current
// orientation: portrait keeps it as is, landscape swaps width and height.
func (v View) Screen() Rect {
	if v.Orientation.IsPortrait() {
		return v.Preview
	}
	return v.Preview.Swap()
}

// Mirrored reports whether x is flipped for this view.
func (v View) Mirrored() bool {
	return v.Profile.Mirrors(v.Facing)
}

// TextureRotation returns the pre-inference frame rotation for this view.
func (v View) TextureRotation() int {
	return TextureRotation(v.Profile, v.Orientation, v.Facing)
}

// ToScreen maps (x, y) in output-rectangle space to screen space.
// Results are not clamped; points outside the output rectangle land off screen.
func ToScreen(v View, x, y float64) Point {
	eff := v.EffectiveOutput()
	if v.Mirrored() {
		x = eff.Width - x
	}

	screen := v.Screen()
	return Point{
		X: x / eff.Width * screen.Width,
		Y: y / eff.Height * screen.Height,
	}
}

// Project filters a pose by confidence and maps what remains to screen space.
// Points need a confidence strictly above minScore; edges need both endpoint
// confidences at or above it. A missing score counts as 1.0.
func Project(v View, result pose.Result, minScore float64) Overlay {
	overlay := Overlay{
		Points: make([]Point, 0, len(result.Keypoints)),
		Edges:  make([]Edge, 0, len(pose.Skeleton)),
	}

	for _, k := range result.Keypoints {
		if k.Confidence() <= minScore {
			continue
		}
		p := ToScreen(v, k.X, k.Y)
		p.Name = k.Name
		overlay.Points = append(overlay.Points, p)
	}

	for _, pair := range pose.Skeleton {
		i, j := pair[0], pair[1]
		if i >= len(result.Keypoints) || j >= len(result.Keypoints) {
			continue
		}
		k1, k2 := result.Keypoints[i], result.Keypoints[j]
		if k1.Confidence() < minScore || k2.Confidence() < minScore {
			continue
		}
		from := ToScreen(v, k1.X, k1.Y)
		from.Name = k1.Name
		to := ToScreen(v, k2.X, k2.Y)
		to.Name = k2.Name
		overlay.Edges = append(overlay.Edges, Edge{From: from, To: to})
	}

	return overlay
}
