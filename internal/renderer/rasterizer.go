package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/sketch2video/internal/scene"
	"github.com/ivlev/sketch2video/internal/timeline"
)

// ErrMalformed marks an element that cannot be drawn at all.
var ErrMalformed = errors.New("malformed element")

// Rasterizer paints an element's partial state for a progress in [0, 1].
type Rasterizer interface {
	Draw(c *Canvas, el scene.Element, progress float64) error
}

// ElementError is a rasterization failure of one element in one frame.
type ElementError struct {
	Index    int
	ID       string
	Category scene.Category
	Err      error
}

func (e *ElementError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("element %d (%s %s): %v", e.Index, e.Category, e.ID, e.Err)
	}
	return fmt.Sprintf("element %d (%s): %v", e.Index, e.Category, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

func clamp01(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func wrongType(el scene.Element, want string) error {
	return errors.Wrapf(ErrMalformed, "%s rasterizer got %T", want, el)
}

// StrokeRasterizer draws freedraw elements point by point.
type StrokeRasterizer struct{}

func (StrokeRasterizer) Draw(c *Canvas, el scene.Element, progress float64) error {
	s, ok := el.(*scene.Stroke)
	if !ok {
		return wrongType(el, "stroke")
	}
	if len(s.Points) == 0 {
		return errors.Wrap(ErrMalformed, "freedraw without points")
	}
	n := int(math.Floor(clamp01(progress) * float64(len(s.Points))))
	if n < 2 {
		return nil
	}
	col, err := ParseColor(s.StrokeColor)
	if err != nil {
		return err
	}
	pts := make([]vec, n)
	for i, p := range s.Points[:n] {
		pts[i] = vec{p.X, p.Y}
	}
	c.polyline(pts, s.StrokeWidth, col)
	return nil
}

// ShapeRasterizer grows shapes from their centre.
type ShapeRasterizer struct{}

func (ShapeRasterizer) Draw(c *Canvas, el scene.Element, progress float64) error {
	s, ok := el.(*scene.Shape)
	if !ok {
		return wrongType(el, "shape")
	}
	scale := math.Min(clamp01(progress), 1)
	if scale == 0 {
		return nil
	}
	stroke, err := ParseColor(s.StrokeColor)
	if err != nil {
		return err
	}
	var fill color.Color
	if visible(s.BackgroundColor) && s.Kind != scene.CategoryLine && s.Kind != scene.CategoryArrow {
		fill, _ = ParseColor(s.BackgroundColor)
	}

	// signed box scaled about its centre
	sw, sh := s.Width*scale, s.Height*scale
	x1 := s.X + (s.Width-sw)/2
	y1 := s.Y + (s.Height-sh)/2
	from, to := vec{x1, y1}, vec{x1 + sw, y1 + sh}

	bx, by := math.Min(from.X, to.X), math.Min(from.Y, to.Y)
	bw, bh := math.Abs(sw), math.Abs(sh)
	center := vec{bx + bw/2, by + bh/2}
	corners := boxCorners(bx, by, bw, bh)

	switch s.Kind {
	case scene.CategoryRectangle:
		if fill != nil {
			c.fill(corners, fill, rectPath(bx, by, bw, bh))
		}
		c.stroke(corners, s.StrokeWidth, rasterx.Miter, stroke, rectPath(bx, by, bw, bh))
	case scene.CategoryEllipse:
		if bw == 0 || bh == 0 {
			c.polyline([]vec{{bx, by}, {bx + bw, by + bh}}, s.StrokeWidth, stroke)
			break
		}
		if fill != nil {
			c.fill(corners, fill, ellipsePath(center, bw/2, bh/2))
		}
		c.stroke(corners, s.StrokeWidth, rasterx.Round, stroke, ellipsePath(center, bw/2, bh/2))
	case scene.CategoryDiamond:
		pts := []vec{{center.X, by}, {bx + bw, center.Y}, {center.X, by + bh}, {bx, center.Y}}
		if fill != nil {
			c.fillPolygon(pts, fill)
		}
		c.polygon(pts, s.StrokeWidth, stroke)
	case scene.CategoryArrow:
		c.polyline([]vec{from, to}, s.StrokeWidth, stroke)
		if head := arrowHead(from, to, s.StrokeWidth); head != nil {
			c.fillPolygon(head, stroke)
		}
	case scene.CategoryLine:
		c.polyline([]vec{from, to}, s.StrokeWidth, stroke)
	default:
		return errors.Wrapf(ErrMalformed, "unsupported shape %q", s.Kind)
	}
	return nil
}

// arrowHead is a filled triangle at to, pointing away from from.
func arrowHead(from, to vec, strokeWidth float64) []vec {
	d := to.sub(from)
	l := d.len()
	if l == 0 {
		return nil
	}
	size := math.Min(math.Max(12, 3*strokeWidth), l*0.4)
	u := d.scale(1 / l)
	n := vec{-u.Y, u.X}
	base := to.sub(u.scale(size))
	w := size * math.Tan(math.Pi/6)
	return []vec{to, base.add(n.scale(w)), base.sub(n.scale(w))}
}

var (
	textFontOnce sync.Once
	textFont     *sfnt.Font
	textFontErr  error
)

func loadTextFont() (*sfnt.Font, error) {
	textFontOnce.Do(func() {
		textFont, textFontErr = opentype.Parse(goregular.TTF)
	})
	return textFont, textFontErr
}

// face returns a cached face of the given pixel size.
func (c *Canvas) face(size float64) (font.Face, error) {
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	ft, err := loadTextFont()
	if err != nil {
		return nil, errors.Wrap(err, "parse font")
	}
	f, err := opentype.NewFace(ft, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "face size %v", size)
	}
	c.faces[size] = f
	return f, nil
}

// TextRasterizer reveals the whole label once progress reaches 1.
type TextRasterizer struct{}

func (TextRasterizer) Draw(c *Canvas, el scene.Element, progress float64) error {
	t, ok := el.(*scene.Text)
	if !ok {
		return wrongType(el, "text")
	}
	if progress < 1 || t.Text == "" {
		return nil
	}
	col, err := ParseColor(t.Color)
	if err != nil {
		return err
	}
	face, err := c.face(t.FontSize)
	if err != nil {
		return err
	}

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	baseline := int(math.Round(t.Y)) + m.Ascent.Ceil()
	d := &font.Drawer{
		Dst:  c.Img,
		Src:  image.NewUniform(col),
		Face: face,
	}
	for i, line := range strings.Split(t.Text, "\n") {
		d.Dot = fixed.P(int(math.Round(t.X)), baseline+i*lineHeight)
		d.DrawString(line)
	}
	return nil
}

// Rasterizers maps timeline kinds to their rasterizer.
type Rasterizers map[timeline.Kind]Rasterizer

func DefaultRasterizers() Rasterizers {
	return Rasterizers{
		timeline.KindStroke: StrokeRasterizer{},
		timeline.KindShape:  ShapeRasterizer{},
		timeline.KindText:   TextRasterizer{},
	}
}
