package renderer

import (
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/scene"
	"github.com/ivlev/sketch2video/internal/timeline"
)

var white = color.RGBA{255, 255, 255, 255}

func testSettings() config.Settings {
	s := config.Default()
	s.Resolution = config.Resolution{Width: 64, Height: 48}
	s.Workers = 2
	return s
}

func isWhite(c *Canvas, x, y int) bool {
	return c.Img.RGBAAt(x, y) == white
}

func countInk(c *Canvas) int {
	n := 0
	b := c.Img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isWhite(c, x, y) {
				n++
			}
		}
	}
	return n
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ff0000", color.NRGBA{255, 0, 0, 255}},
		{"#0F0", color.NRGBA{0, 255, 0, 255}},
		{"rgb(0,0,255)", color.NRGBA{0, 0, 255, 255}},
		{"black", color.NRGBA{0, 0, 0, 255}},
		{"transparent", color.NRGBA{}},
		{"", color.NRGBA{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseColor("definitely-not-a-colour")
	assert.Error(t, err)
	assert.False(t, visible("transparent"))
	assert.True(t, visible("#123456"))
}

func squareStroke() *scene.Stroke {
	return &scene.Stroke{
		Style:  scene.Style{StrokeColor: "#ff0000", StrokeWidth: 4},
		Points: []scene.Point{{X: 5, Y: 5}, {X: 55, Y: 5}, {X: 55, Y: 40}, {X: 5, Y: 40}},
	}
}

func TestStrokeProgress(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()
	red := color.RGBA{255, 0, 0, 255}

	c.Clear(r.background)
	require.NoError(t, StrokeRasterizer{}.Draw(c, squareStroke(), 0.25))
	assert.Zero(t, countInk(c), "one point is not a segment")

	c.Clear(r.background)
	require.NoError(t, StrokeRasterizer{}.Draw(c, squareStroke(), 0.5))
	assert.Equal(t, red, c.Img.RGBAAt(30, 5))
	assert.True(t, isWhite(c, 55, 22))

	c.Clear(r.background)
	require.NoError(t, StrokeRasterizer{}.Draw(c, squareStroke(), 1))
	assert.Equal(t, red, c.Img.RGBAAt(30, 5))
	assert.Equal(t, red, c.Img.RGBAAt(55, 22))
	assert.True(t, isWhite(c, 30, 22))
}

func TestStrokeWithoutPoints(t *testing.T) {
	c := NewCanvas(8, 8)
	defer c.Release()
	err := StrokeRasterizer{}.Draw(c, &scene.Stroke{}, 1)
	assert.ErrorIs(t, err, ErrMalformed)
}

func rect(bg string) *scene.Shape {
	return &scene.Shape{
		Style: scene.Style{StrokeColor: "#000000", StrokeWidth: 2, BackgroundColor: bg},
		Kind:  scene.CategoryRectangle,
		X:     10, Y: 10, Width: 40, Height: 20,
	}
}

func TestShapeFullProgress(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()

	c.Clear(r.background)
	require.NoError(t, ShapeRasterizer{}.Draw(c, rect("#0000ff"), 1))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.Img.RGBAAt(30, 20), "fill")
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Img.RGBAAt(10, 20), "outline")
	assert.True(t, isWhite(c, 2, 2))

	c.Clear(r.background)
	require.NoError(t, ShapeRasterizer{}.Draw(c, rect("transparent"), 1))
	assert.True(t, isWhite(c, 30, 20), "transparent background is not filled")
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Img.RGBAAt(10, 20))
}

func TestShapeGrowsFromCentre(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()

	c.Clear(r.background)
	require.NoError(t, ShapeRasterizer{}.Draw(c, rect(""), 0.5))
	// half-size box is centred: x in [20, 40], y in [15, 25]
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c.Img.RGBAAt(20, 20))
	assert.True(t, isWhite(c, 10, 20))

	c.Clear(r.background)
	require.NoError(t, ShapeRasterizer{}.Draw(c, rect(""), 0))
	assert.Zero(t, countInk(c))
}

func TestShapeKinds(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()

	for _, kind := range []scene.Category{scene.CategoryEllipse, scene.CategoryDiamond, scene.CategoryArrow, scene.CategoryLine} {
		t.Run(string(kind), func(t *testing.T) {
			s := rect("#00ff00")
			s.Kind = kind
			c.Clear(r.background)
			require.NoError(t, ShapeRasterizer{}.Draw(c, s, 1))
			assert.NotZero(t, countInk(c))
		})
	}

	line := rect("#00ff00")
	line.Kind = scene.CategoryLine
	c.Clear(r.background)
	require.NoError(t, ShapeRasterizer{}.Draw(c, line, 1))
	assert.NotEqual(t, color.RGBA{0, 255, 0, 255}, c.Img.RGBAAt(30, 12), "lines are never filled")
}

func TestShapeOffCanvas(t *testing.T) {
	c := NewCanvas(16, 16)
	defer c.Release()
	c.Clear(color.White)
	s := rect("#ff0000")
	s.X, s.Y = -500, -500
	require.NoError(t, ShapeRasterizer{}.Draw(c, s, 1))
	assert.Zero(t, countInk(c))
}

func TestTextRevealsAtEnd(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()
	label := &scene.Text{X: 4, Y: 4, Text: "Hi\nyo", FontSize: 16, Color: "#000000"}

	c.Clear(r.background)
	require.NoError(t, TextRasterizer{}.Draw(c, label, 0.99))
	assert.Zero(t, countInk(c))

	c.Clear(r.background)
	require.NoError(t, TextRasterizer{}.Draw(c, label, 1))
	assert.NotZero(t, countInk(c))
}

func TestPlan(t *testing.T) {
	s := testSettings()

	samples := Plan(nil, s)
	require.Len(t, samples, 31)
	assert.Equal(t, Sample{Ordinal: 0, Time: 0}, samples[0])
	assert.InDelta(t, 1000.0, samples[30].Time, 1e-6)
	assert.GreaterOrEqual(t, len(samples), int(1000/s.FrameInterval()))

	s.FrameRate = 10
	items := []timeline.Item{{Start: 0, End: 250}}
	samples = Plan(items, s)
	require.Len(t, samples, 3)
	for i, smp := range samples {
		assert.Equal(t, i, smp.Ordinal)
		assert.InDelta(t, float64(i)*100, smp.Time, 1e-9)
	}
}

func TestFrameCount(t *testing.T) {
	s := testSettings()
	assert.Equal(t, len(Plan(nil, s)), FrameCount(nil, s))

	// 3900ms at 30fps lands on 117 intervals after rounding
	items := []timeline.Item{{Start: 0, End: 3900}}
	assert.Equal(t, 118, FrameCount(items, s))
	assert.Len(t, Plan(items, s), 118)

	s.FrameRate = 10
	assert.Equal(t, 3, FrameCount([]timeline.Item{{Start: 0, End: 250}}, s))
	assert.Equal(t, 3, FrameCount([]timeline.Item{{Start: 0, End: 200 - 1e-9}}, s))

	huge := []timeline.Item{{Start: 0, End: 1e300}}
	assert.Equal(t, math.MaxInt32, FrameCount(huge, s))
}

func TestComposeSkipsMalformedElement(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()

	bad := rect("#0000ff")
	bad.Err = errors.New("x: not a number")
	items := []timeline.Item{{Element: bad, Start: 0, End: 100, Kind: timeline.KindShape}}

	r.Compose(c, items, 100)
	assert.Zero(t, countInk(c))
	assert.Equal(t, int64(1), r.Failures())

	err := r.drawItem(c, items[0], 1)
	assert.ErrorIs(t, err, ErrMalformed)
	var elErr *ElementError
	require.ErrorAs(t, err, &elErr)
	assert.Contains(t, elErr.Error(), "not a number")
}

type panicRasterizer struct{}

func (panicRasterizer) Draw(*Canvas, scene.Element, float64) error {
	panic("boom")
}

func TestComposeIsolatesFailures(t *testing.T) {
	r := New(testSettings(), nil)
	r.Rasterizers[timeline.KindText] = panicRasterizer{}
	c := r.NewCanvas()
	defer c.Release()

	items := []timeline.Item{
		{Element: &scene.Stroke{}, Start: 0, End: 0, Kind: timeline.KindStroke},
		{Element: &scene.Text{Text: "x"}, Start: 0, End: 100, Kind: timeline.KindText},
		{Element: rect("#0000ff"), Start: 0, End: 100, Kind: timeline.KindShape},
	}
	r.Compose(c, items, 0)
	r.Compose(c, items, 100)

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.Img.RGBAAt(30, 20))
	assert.Equal(t, int64(3), r.Failures())
}

func TestComposeWindow(t *testing.T) {
	r := New(testSettings(), nil)
	c := r.NewCanvas()
	defer c.Release()
	items := []timeline.Item{{Element: rect("#0000ff"), Start: 0, End: 100, Kind: timeline.KindShape}}

	r.Compose(c, items, 150)
	assert.Zero(t, countInk(c), "finished items leave the frame")

	r.KeepRevealed = true
	r.Compose(c, items, 150)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, c.Img.RGBAAt(30, 20))
}

func TestRenderFramesDeterministic(t *testing.T) {
	s := testSettings()
	s.FrameRate = 20
	items := timeline.Build([]scene.Element{squareStroke(), rect("#00ff00")}, s)
	samples := Plan(items, s)

	run := func() []Frame {
		dir := t.TempDir()
		frames, err := New(s, nil).RenderFrames(context.Background(), items, samples, dir)
		require.NoError(t, err)
		return frames
	}
	a, b := run(), run()

	require.Len(t, a, len(samples))
	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Sample, b[i].Sample)
		assert.Equal(t, i, a[i].Ordinal)
		assert.Equal(t, FrameName(i), filepath.Base(a[i].Path))

		da, err := os.ReadFile(a[i].Path)
		require.NoError(t, err)
		db, err := os.ReadFile(b[i].Path)
		require.NoError(t, err)
		assert.Equal(t, da, db)
	}
}

func TestRenderFramesCanceled(t *testing.T) {
	s := testSettings()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(s, nil).RenderFrames(ctx, nil, Plan(nil, s), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "frame_000000.png", FrameName(0))
	assert.Equal(t, "frame_001234.png", FrameName(1234))
}
