package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// DefaultPattern is the image2 input pattern frames are expected under.
const DefaultPattern = "frame_%06d.png"

// diagnosticLimit caps how much encoder stderr is kept on failure.
const diagnosticLimit = 4096

// ErrEncoderUnavailable is returned when the encoder binary cannot be found.
var ErrEncoderUnavailable = errors.New("video encoder unavailable")

// EncodingError is a failed encoder run. Err is context.DeadlineExceeded or
// context.Canceled when the run was cut short.
type EncodingError struct {
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *EncodingError) Error() string {
	msg := "encoding failed"
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	} else if e.ExitCode != 0 {
		msg = fmt.Sprintf("%s: exit status %d", msg, e.ExitCode)
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Job is one frame sequence to encode.
type Job struct {
	FrameDir   string
	Pattern    string // DefaultPattern when empty
	FrameRate  float64
	OutputPath string
	Timeout    time.Duration // no limit beyond ctx when zero
}

type VideoEncoder interface {
	Encode(ctx context.Context, job Job) (string, error)
}

// FFmpegEncoder encodes PNG frame sequences into VP9 webm with ffmpeg.
type FFmpegEncoder struct {
	Binary string // "ffmpeg" when empty
	Logger hclog.Logger

	// WaitDelay bounds how long a killed encoder may hold its pipes open.
	WaitDelay time.Duration
}

func (e *FFmpegEncoder) binary() string {
	if e.Binary == "" {
		return "ffmpeg"
	}
	return e.Binary
}

func (e *FFmpegEncoder) logger() hclog.Logger {
	if e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

func (e *FFmpegEncoder) buildArgs(job Job) []string {
	pattern := job.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return []string{
		"-y",
		"-framerate", strconv.FormatFloat(job.FrameRate, 'f', -1, 64),
		"-i", filepath.Join(job.FrameDir, pattern),
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuv420p",
		"-crf", "30",
		"-b:v", "1M",
		"-an",
		"-f", "webm",
		job.OutputPath,
	}
}

// Encode runs ffmpeg over job.FrameDir and returns job.OutputPath once the
// file exists and is non-empty.
func (e *FFmpegEncoder) Encode(ctx context.Context, job Job) (string, error) {
	log := e.logger()

	path, err := exec.LookPath(e.binary())
	if err != nil {
		return "", errors.Wrapf(ErrEncoderUnavailable, "%s: %v", e.binary(), err)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	args := e.buildArgs(job)
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	log.Debug("starting encoder", "binary", path, "args", args)
	start := time.Now()

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warn("encoder interrupted", "error", ctxErr, "duration", time.Since(start))
			return "", &EncodingError{ExitCode: -1, Diagnostic: tail(stderr.Bytes()), Err: ctxErr}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.Wrap(ErrEncoderUnavailable, err.Error())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Warn("encoder exited with error", "exit_code", exitErr.ExitCode(), "duration", time.Since(start))
			return "", &EncodingError{ExitCode: exitErr.ExitCode(), Diagnostic: tail(stderr.Bytes())}
		}
		return "", &EncodingError{ExitCode: -1, Diagnostic: tail(stderr.Bytes()), Err: err}
	}

	info, err := os.Stat(job.OutputPath)
	if err != nil || info.Size() == 0 {
		return "", &EncodingError{Diagnostic: "encoder produced no output: " + tail(stderr.Bytes())}
	}

	log.Info("encoder finished", "output", job.OutputPath, "bytes", info.Size(), "duration", time.Since(start))
	return job.OutputPath, nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > diagnosticLimit {
		b = b[len(b)-diagnosticLimit:]
	}
	return string(b)
}
