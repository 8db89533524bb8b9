package renderer

import (
	"bufio"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/system"
	"github.com/ivlev/sketch2video/internal/timeline"
)

// FramePattern names frame files so that lexicographic order is temporal
// order. It doubles as the ffmpeg image2 input pattern.
const FramePattern = "frame_%06d.png"

// Sample is one instant at which a frame is composed.
type Sample struct {
	Ordinal int
	Time    float64 // ms
}

// Frame is a composed sample written to disk.
type Frame struct {
	Sample
	Path string
}

// FrameName is the file name of the frame with the given ordinal.
func FrameName(ordinal int) string {
	return fmt.Sprintf(FramePattern, ordinal)
}

// FrameCount is the number of samples Plan produces: every k with
// k * interval <= total duration, within timeline.Epsilon. It saturates at
// math.MaxInt32 so callers can reject oversized exports before planning.
func FrameCount(items []timeline.Item, s config.Settings) int {
	total := timeline.TotalDuration(items)
	interval := s.FrameInterval()
	if !(interval > 0) || math.IsInf(interval, 0) {
		return 0
	}
	limit := total + timeline.Epsilon
	q := math.Floor(limit/interval) + 1
	if math.IsNaN(q) || q < 1 {
		return 1
	}
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	n := int(q)
	for n > 1 && float64(n-1)*interval > limit {
		n--
	}
	for float64(n)*interval <= limit {
		n++
	}
	return n
}

// Plan samples the timeline at the configured frame rate: t = k * interval
// for every k with t <= total duration.
func Plan(items []timeline.Item, s config.Settings) []Sample {
	interval := s.FrameInterval()
	n := FrameCount(items, s)
	samples := make([]Sample, n)
	for k := range samples {
		samples[k] = Sample{Ordinal: k, Time: float64(k) * interval}
	}
	return samples
}

// Renderer composes frames from a timeline.
type Renderer struct {
	Settings    config.Settings
	Logger      hclog.Logger
	Rasterizers Rasterizers
	Workers     int

	// KeepRevealed draws finished elements at full progress instead of
	// dropping them once their interval ends.
	KeepRevealed bool

	background color.NRGBA
	failures   atomic.Int64
	pngBuffers system.PNGBufferPool
}

// New builds a Renderer for s. A background colour that does not parse falls
// back to white.
func New(s config.Settings, logger hclog.Logger) *Renderer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	bg, err := ParseColor(s.BackgroundColor)
	if err != nil {
		logger.Warn("unusable background colour, using white", "background_color", s.BackgroundColor, "error", err)
		bg = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	}
	workers := s.Workers
	if workers <= 0 {
		workers = system.RenderWorkers(s.Resolution.Width, s.Resolution.Height)
	}
	return &Renderer{
		Settings:    s,
		Logger:      logger,
		Rasterizers: DefaultRasterizers(),
		Workers:     workers,
		background:  bg,
	}
}

// Failures is the number of element rasterizations that failed so far.
func (r *Renderer) Failures() int64 {
	return r.failures.Load()
}

// NewCanvas allocates a canvas of the configured resolution.
func (r *Renderer) NewCanvas() *Canvas {
	return NewCanvas(r.Settings.Resolution.Width, r.Settings.Resolution.Height)
}

// Compose draws every item visible at t onto c. Element failures are logged
// and counted, never returned.
func (r *Renderer) Compose(c *Canvas, items []timeline.Item, t float64) {
	c.Clear(r.background)
	for _, it := range items {
		progress := 0.0
		switch {
		case it.Active(t):
			progress = it.Progress(t)
		case r.KeepRevealed && t > it.End:
			progress = 1
		default:
			continue
		}
		if err := r.drawItem(c, it, progress); err != nil {
			r.failures.Add(1)
			r.Logger.Debug("element skipped in frame", "time_ms", t, "error", err)
		}
	}
}

func (r *Renderer) drawItem(c *Canvas, it timeline.Item, progress float64) (err error) {
	info := it.Element.Info()
	wrap := func(cause error) error {
		return &ElementError{Index: info.Index, ID: info.ID, Category: it.Element.Category(), Err: cause}
	}
	defer func() {
		if p := recover(); p != nil {
			err = wrap(errors.Errorf("panic: %v", p))
		}
	}()

	if info.Err != nil {
		return wrap(errors.Wrapf(ErrMalformed, "%v", info.Err))
	}
	rz, ok := r.Rasterizers[it.Kind]
	if !ok {
		return wrap(errors.Errorf("no rasterizer for %q", it.Kind))
	}
	if drawErr := rz.Draw(c, it.Element, progress); drawErr != nil {
		return wrap(drawErr)
	}
	return nil
}

// RenderFrames composes every sample in parallel and writes each one to
// dir/FrameName(ordinal). The returned frames are ordered by ordinal.
func (r *Renderer) RenderFrames(ctx context.Context, items []timeline.Item, samples []Sample, dir string) ([]Frame, error) {
	frames := make([]Frame, len(samples))
	jobs := make(chan int)

	workers := r.Workers
	if workers > len(samples) {
		workers = len(samples)
	}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range samples {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			c := r.NewCanvas()
			defer c.Release()
			enc := &png.Encoder{CompressionLevel: png.BestSpeed, BufferPool: &r.pngBuffers}

			for i := range jobs {
				s := samples[i]
				r.Compose(c, items, s.Time)
				path := filepath.Join(dir, FrameName(s.Ordinal))
				if err := writePNG(enc, c, path); err != nil {
					return errors.Wrapf(err, "frame %d", s.Ordinal)
				}
				frames[i] = Frame{Sample: s, Path: path}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

func writePNG(enc *png.Encoder, c *Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(f, 1<<16)
	if err := enc.Encode(w, c.Img); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
