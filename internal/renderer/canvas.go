package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/ivlev/sketch2video/internal/system"
)

type vec struct {
	X, Y float64
}

func (a vec) add(b vec) vec       { return vec{a.X + b.X, a.Y + b.Y} }
func (a vec) sub(b vec) vec       { return vec{a.X - b.X, a.Y - b.Y} }
func (a vec) scale(k float64) vec { return vec{a.X * k, a.Y * k} }
func (a vec) len() float64        { return math.Hypot(a.X, a.Y) }

// coordLimit keeps coordinates inside the 26.6 fixed point range.
const coordLimit = 1 << 20

func clampCoord(v float64) float64 {
	return math.Max(-coordLimit, math.Min(coordLimit, v))
}

func (a vec) fixed() fixed.Point26_6 {
	return rasterx.ToFixedP(clampCoord(a.X), clampCoord(a.Y))
}

// coverage is a rasterx.Scanner that accumulates into a vector.Rasterizer
// sized to the clip rectangle and composites onto dst with draw.Over.
type coverage struct {
	z      *vector.Rasterizer
	dst    *image.RGBA
	clip   image.Rectangle
	src    *image.Uniform
	extent fixed.Rectangle26_6
}

var _ rasterx.Scanner = (*coverage)(nil)

func (s *coverage) local(p fixed.Point26_6) (float32, float32) {
	return float32(p.X)/64 - float32(s.clip.Min.X), float32(p.Y)/64 - float32(s.clip.Min.Y)
}

func (s *coverage) grow(p fixed.Point26_6) {
	s.extent.Min.X = min(s.extent.Min.X, p.X)
	s.extent.Min.Y = min(s.extent.Min.Y, p.Y)
	s.extent.Max.X = max(s.extent.Max.X, p.X)
	s.extent.Max.Y = max(s.extent.Max.Y, p.Y)
}

func (s *coverage) Start(a fixed.Point26_6) {
	s.grow(a)
	s.z.MoveTo(s.local(a))
}

func (s *coverage) Line(b fixed.Point26_6) {
	s.grow(b)
	s.z.LineTo(s.local(b))
}

func (s *coverage) Draw() {
	if s.clip.Empty() {
		return
	}
	s.z.DrawOp = draw.Over
	s.z.Draw(s.dst, s.clip, s.src, image.Point{})
}

func (s *coverage) GetPathExtent() fixed.Rectangle26_6 { return s.extent }

// SetBounds is a no-op: the destination image fixes the bounds.
func (s *coverage) SetBounds(int, int) {}

func (s *coverage) SetColor(c interface{}) {
	if col, ok := c.(color.Color); ok {
		s.src = image.NewUniform(col)
	}
}

// SetWinding is a no-op: accumulated coverage is always non-zero.
func (s *coverage) SetWinding(bool) {}

func (s *coverage) Clear() {
	s.z.Reset(s.clip.Dx(), s.clip.Dy())
	inf := fixed.Int26_6(math.MaxInt32)
	s.extent = fixed.Rectangle26_6{Min: fixed.Point26_6{X: inf, Y: inf}, Max: fixed.Point26_6{X: -inf, Y: -inf}}
}

func (s *coverage) SetClip(rect image.Rectangle) {
	s.clip = rect.Intersect(s.dst.Bounds())
}

// Canvas is one frame being composed. It owns a rasterizer and a font face
// cache, so a Canvas must only be used by one goroutine at a time.
type Canvas struct {
	Img     *image.RGBA
	cov     *coverage
	stroker *rasterx.Stroker
	filler  *rasterx.Filler
	faces   map[float64]font.Face
}

// NewCanvas takes a width x height image from the shared pool.
func NewCanvas(width, height int) *Canvas {
	img := system.GetImage(image.Rect(0, 0, width, height))
	cov := &coverage{z: vector.NewRasterizer(0, 0), dst: img, src: image.NewUniform(color.Black)}
	return &Canvas{
		Img:     img,
		cov:     cov,
		stroker: rasterx.NewStroker(width, height, cov),
		filler:  rasterx.NewFiller(width, height, cov),
		faces:   make(map[float64]font.Face),
	}
}

// Release returns the image to the pool and closes cached faces.
func (c *Canvas) Release() {
	system.PutImage(c.Img)
	c.Img = nil
	for _, f := range c.faces {
		f.Close()
	}
	c.faces = nil
}

// Clear fills the whole canvas with bg.
func (c *Canvas) Clear(bg color.Color) {
	draw.Draw(c.Img, c.Img.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
}

// begin clips the scanner to the bounds of pts grown by pad. It returns
// false when nothing would land on the canvas.
func (c *Canvas) begin(pts []vec, pad float64) bool {
	if len(pts) == 0 {
		return false
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	r := image.Rect(
		int(math.Floor(clampCoord(minX-pad)))-1, int(math.Floor(clampCoord(minY-pad)))-1,
		int(math.Ceil(clampCoord(maxX+pad)))+1, int(math.Ceil(clampCoord(maxY+pad)))+1,
	)
	c.cov.SetClip(r)
	return !c.cov.clip.Empty()
}

// miterLimit is in multiples of the half width.
const miterLimit = fixed.Int26_6(4 << 6)

// stroke outlines the path built by add. bounds are the path's control
// points and width the full stroke width.
func (c *Canvas) stroke(bounds []vec, width float64, join rasterx.JoinMode, col color.Color, add func(rasterx.Adder)) {
	width = math.Min(width, coordLimit)
	if !c.begin(bounds, width) {
		return
	}
	c.stroker.Clear()
	c.stroker.SetStroke(fixed.Int26_6(width*64), miterLimit, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, join)
	c.stroker.SetColor(col)
	add(c.stroker)
	c.stroker.Draw()
}

// fill paints the inside of the closed path built by add.
func (c *Canvas) fill(bounds []vec, col color.Color, add func(rasterx.Adder)) {
	if !c.begin(bounds, 0) {
		return
	}
	c.filler.Clear()
	c.filler.SetColor(col)
	add(c.filler)
	c.filler.Draw()
}

// path adds pts as one sub-path, dropping repeated points.
func path(pts []vec, closed bool) func(rasterx.Adder) {
	return func(a rasterx.Adder) {
		last := pts[0].fixed()
		a.Start(last)
		for _, p := range pts[1:] {
			if q := p.fixed(); q != last {
				a.Line(q)
				last = q
			}
		}
		a.Stop(closed)
	}
}

// polyline strokes consecutive points with round joins and caps. A polyline
// whose points all coincide is drawn as a dot.
func (c *Canvas) polyline(pts []vec, width float64, col color.Color) {
	if len(pts) < 2 {
		return
	}
	first := pts[0].fixed()
	for _, p := range pts[1:] {
		if p.fixed() != first {
			c.stroke(pts, width, rasterx.Round, col, path(pts, false))
			return
		}
	}
	r := math.Min(width, coordLimit) / 2
	c.fill([]vec{pts[0].sub(vec{r, r}), pts[0].add(vec{r, r})}, col, func(a rasterx.Adder) {
		rasterx.AddCircle(clampCoord(pts[0].X), clampCoord(pts[0].Y), r, a)
	})
}

// polygon strokes the closed outline through pts with mitred corners.
func (c *Canvas) polygon(pts []vec, width float64, col color.Color) {
	if len(pts) < 3 {
		return
	}
	c.stroke(pts, width, rasterx.Miter, col, path(pts, true))
}

// fillPolygon fills a single closed outline.
func (c *Canvas) fillPolygon(pts []vec, col color.Color) {
	if len(pts) < 3 {
		return
	}
	c.fill(pts, col, path(pts, true))
}

func boxCorners(x, y, w, h float64) []vec {
	return []vec{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
}

func rectPath(x, y, w, h float64) func(rasterx.Adder) {
	return func(a rasterx.Adder) {
		rasterx.AddRect(clampCoord(x), clampCoord(y), clampCoord(x+w), clampCoord(y+h), 0, a)
	}
}

func ellipsePath(center vec, rx, ry float64) func(rasterx.Adder) {
	return func(a rasterx.Adder) {
		rasterx.AddEllipse(clampCoord(center.X), clampCoord(center.Y), clampCoord(rx), clampCoord(ry), 0, a)
	}
}
