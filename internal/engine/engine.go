package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/renderer"
	"github.com/ivlev/sketch2video/internal/scene"
	"github.com/ivlev/sketch2video/internal/timeline"
	"github.com/ivlev/sketch2video/internal/video"
)

// Durations is the wall time spent in each export stage.
type Durations struct {
	Timeline time.Duration
	Render   time.Duration
	Encode   time.Duration
	Total    time.Duration
}

// Result describes a finished export.
type Result struct {
	Path     string
	Settings config.Settings
	Timeline []timeline.Item
	Frames   int
	Skipped  int   // elements of unknown type
	Failures int64 // element draws that failed across all frames
	Durations
}

// Exporter turns scenes into webm files. The zero value is not usable; set
// Encoder at least.
type Exporter struct {
	Encoder video.VideoEncoder
	Logger  hclog.Logger

	OutputDir string // where generated output names land, "output" when empty
	TempRoot  string // parent of per-export workspaces, os.TempDir() when empty

	KeepRevealed bool
}

func NewExporter(enc video.VideoEncoder, logger hclog.Logger) *Exporter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Exporter{Encoder: enc, Logger: logger}
}

func (x *Exporter) logger() hclog.Logger {
	if x.Logger == nil {
		return hclog.NewNullLogger()
	}
	return x.Logger
}

// DefaultOutputPath is a fresh animation_<uuid>.webm under OutputDir.
func (x *Exporter) DefaultOutputPath() string {
	dir := x.OutputDir
	if dir == "" {
		dir = "output"
	}
	return filepath.Join(dir, fmt.Sprintf("animation_%s.webm", uuid.NewString()))
}

// Export renders sc with the given overrides and writes the video to
// outputPath, or to DefaultOutputPath when it is empty. The per-export
// workspace is removed on every return path and on failure no output is left.
func (x *Exporter) Export(ctx context.Context, sc *scene.Scene, o *config.Overrides, outputPath string) (*Result, error) {
	start := time.Now()
	log := x.logger()

	s, err := config.Resolve(o)
	if err != nil {
		return nil, newError(KindInvalidSettings, err, "resolve settings")
	}
	if x.Encoder == nil {
		return nil, newError(KindEncoderUnavailable, video.ErrEncoderUnavailable, "no encoder configured")
	}
	if sc == nil {
		sc = &scene.Scene{}
	}
	if outputPath == "" {
		outputPath = x.DefaultOutputPath()
	}

	res := &Result{Settings: s}
	for _, el := range sc.Elements {
		info := el.Info()
		if u, ok := el.(*scene.Unknown); ok {
			res.Skipped++
			log.Warn("skipping element", "index", u.Index, "type", u.Type, "error", u.Err)
		} else if info.Err != nil {
			log.Warn("element has malformed fields and will not be drawn",
				"index", info.Index, "type", el.Category(), "error", info.Err)
		}
	}

	res.Timeline = timeline.Build(sc.Elements, s)
	if n := renderer.FrameCount(res.Timeline, s); n > config.MaxFrames {
		return nil, newError(KindInvalidSettings,
			errors.Wrapf(config.ErrInvalid, "%d frames exceed the limit of %d", n, config.MaxFrames),
			"plan frames")
	}
	samples := renderer.Plan(res.Timeline, s)
	res.Durations.Timeline = time.Since(start)
	log.Info("timeline built",
		"elements", len(sc.Elements),
		"items", len(res.Timeline),
		"total_ms", timeline.TotalDuration(res.Timeline),
		"frames", len(samples))

	workspace, err := os.MkdirTemp(x.TempRoot, fmt.Sprintf("sketch2video_%s_", uuid.NewString()))
	if err != nil {
		return nil, newError(KindIO, err, "create workspace")
	}
	defer func() {
		if rmErr := os.RemoveAll(workspace); rmErr != nil {
			log.Warn("workspace cleanup failed", "workspace", workspace, "error", rmErr)
		}
	}()

	frameDir := filepath.Join(workspace, "frames")
	if err := os.Mkdir(frameDir, 0o755); err != nil {
		return nil, newError(KindIO, err, "create frame directory")
	}

	renderStart := time.Now()
	r := renderer.New(s, log.Named("renderer"))
	r.KeepRevealed = x.KeepRevealed
	frames, err := r.RenderFrames(ctx, res.Timeline, samples, frameDir)
	res.Durations.Render = time.Since(renderStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, newError(KindCanceled, ctxErr, "render frames")
		}
		return nil, newError(KindRenderFailed, err, "render frames")
	}
	res.Frames = len(frames)
	res.Failures = r.Failures()
	if res.Failures > 0 {
		log.Warn("some elements could not be drawn", "failed_draws", res.Failures, "frames", res.Frames)
	}

	encodeStart := time.Now()
	encoded, err := x.Encoder.Encode(ctx, video.Job{
		FrameDir:   frameDir,
		Pattern:    renderer.FramePattern,
		FrameRate:  s.FrameRate,
		OutputPath: filepath.Join(workspace, "animation.webm"),
		Timeout:    time.Duration(s.EncodeTimeout),
	})
	res.Durations.Encode = time.Since(encodeStart)
	if err != nil {
		return nil, newError(encodeKind(err), err, "encode %d frames", res.Frames)
	}

	if err := moveFile(encoded, outputPath); err != nil {
		os.Remove(outputPath)
		return nil, newError(KindIO, err, "write %s", outputPath)
	}
	res.Path = outputPath
	res.Durations.Total = time.Since(start)

	log.Info("export finished",
		"output", outputPath,
		"frames", res.Frames,
		"render", res.Durations.Render,
		"encode", res.Durations.Encode,
		"total", res.Durations.Total)
	return res, nil
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open encoded video")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "copy encoded video")
	}
	return out.Close()
}

// EffectiveFPS is frames produced per second of total wall time.
func (r *Result) EffectiveFPS() float64 {
	if r.Durations.Total <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Durations.Total.Seconds()
}

// Report formats the stage timings for the console.
func (r *Result) Report(build string) string {
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Frames: %d @ %v FPS (%.0f ms)\n"+
			"Total Time: %.2fs\n"+
			"Timeline: %.3fs\n"+
			"Rendering (CPU): %.2fs\n"+
			"Encoding (VP9): %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		build, r.Frames, r.Settings.FrameRate, timeline.TotalDuration(r.Timeline),
		r.Durations.Total.Seconds(), r.Durations.Timeline.Seconds(),
		r.Durations.Render.Seconds(), r.Durations.Encode.Seconds(), r.EffectiveFPS(),
	)
}

// AppendBenchmark adds a one-line summary of r to the log file at path.
func (r *Result) AppendBenchmark(path, build, input string) error {
	entry := fmt.Sprintf("[%s] Build: %s | Input: %s | Frames: %d | Total: %.2fs | Render: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build,
		filepath.Base(input),
		r.Frames,
		r.Durations.Total.Seconds(),
		r.Durations.Render.Seconds(),
		r.Durations.Encode.Seconds(),
		r.EffectiveFPS(),
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
