package overlay

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/ayusman/posecam/internal/transform"
	"gocv.io/x/gocv"
)

// Drawing style for the overlay.
const (
	PointRadius      = 4
	PointStroke      = 2
	EdgeThickness    = 2
	fpsTextScale     = 0.6
	fpsTextThickness = 1
)

var (
	pointFill   = color.RGBA{R: 0x00, G: 0xAA, B: 0x00, A: 0xFF}
	pointStroke = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	edgeColor   = color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF}
	textColor   = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Canvas renders overlays onto an off-screen image and keeps the latest one
// JPEG-encoded for streaming.
type Canvas struct {
	mu     sync.RWMutex
	width  int
	height int
	fps    int
	hasFPS bool
	jpeg   []byte
	seq    uint64
}

// NewCanvas creates a Canvas of the given screen size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{width: width, height: height}
}

// Resize changes the canvas size, e.g. after an orientation change.
func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
}

// Size returns the current canvas size.
func (c *Canvas) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

// SetFPS sets the frame rate drawn in the top-left corner.
func (c *Canvas) SetFPS(fps int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
	c.hasFPS = ok
}

// Render draws edges under points and stores the encoded result.
func (c *Canvas) Render(edges []transform.Edge, points []transform.Point) {
	c.mu.RLock()
	width, height := c.width, c.height
	label := "FPS: -"
	if c.hasFPS {
		label = fmt.Sprintf("FPS: %d", c.fps)
	}
	c.mu.RUnlock()

	if width <= 0 || height <= 0 {
		return
	}

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC3)
	defer img.Close()

	Draw(&img, edges, points)
	gocv.PutText(&img, label, image.Pt(10, 24), gocv.FontHersheySimplex, fpsTextScale, textColor, fpsTextThickness)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	c.mu.Lock()
	c.jpeg = data
	c.seq++
	c.mu.Unlock()
}

// JPEG returns the latest rendered overlay and its render sequence number.
// The sequence is 0 until the first render.
func (c *Canvas) JPEG() ([]byte, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jpeg, c.seq
}

// Draw paints skeleton edges and keypoints onto img.
func Draw(img *gocv.Mat, edges []transform.Edge, points []transform.Point) {
	for _, e := range edges {
		gocv.Line(img, toPt(e.From), toPt(e.To), edgeColor, EdgeThickness)
	}
	for _, p := range points {
		center := toPt(p)
		gocv.Circle(img, center, PointRadius, pointFill, -1)
		gocv.Circle(img, center, PointRadius, pointStroke, PointStroke)
	}
}

func toPt(p transform.Point) image.Point {
	return image.Pt(int(p.X+0.5), int(p.Y+0.5))
}
