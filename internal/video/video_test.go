package video

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEncoder writes a shell script standing in for ffmpeg.
func fakeEncoder(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testJob(t *testing.T) Job {
	dir := t.TempDir()
	return Job{
		FrameDir:   dir,
		FrameRate:  30,
		OutputPath: filepath.Join(dir, "out.webm"),
	}
}

func TestBuildArgs(t *testing.T) {
	e := &FFmpegEncoder{}
	args := e.buildArgs(Job{FrameDir: "/tmp/w", FrameRate: 29.97, OutputPath: "/tmp/w/out.webm"})
	assert.Equal(t, []string{
		"-y",
		"-framerate", "29.97",
		"-i", "/tmp/w/frame_%06d.png",
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuv420p",
		"-crf", "30",
		"-b:v", "1M",
		"-an",
		"-f", "webm",
		"/tmp/w/out.webm",
	}, args)

	args = e.buildArgs(Job{FrameDir: "d", Pattern: "f_%03d.png", FrameRate: 30, OutputPath: "o"})
	assert.Contains(t, args, filepath.Join("d", "f_%03d.png"))
	assert.Contains(t, args, "30")
}

func TestEncodeMissingBinary(t *testing.T) {
	e := &FFmpegEncoder{Binary: filepath.Join(t.TempDir(), "no-such-ffmpeg")}
	_, err := e.Encode(context.Background(), testJob(t))
	assert.True(t, errors.Is(err, ErrEncoderUnavailable), "got %v", err)
}

func TestEncodeSuccess(t *testing.T) {
	bin := fakeEncoder(t, `for a; do out="$a"; done; printf 'webm' > "$out"`)
	job := testJob(t)

	out, err := (&FFmpegEncoder{Binary: bin}).Encode(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.OutputPath, out)
	assert.FileExists(t, out)
}

func TestEncodeNonZeroExit(t *testing.T) {
	bin := fakeEncoder(t, `echo "Unknown encoder 'libvpx-vp9'" >&2; exit 3`)

	_, err := (&FFmpegEncoder{Binary: bin}).Encode(context.Background(), testJob(t))
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr), "got %v", err)
	assert.Equal(t, 3, encErr.ExitCode)
	assert.Contains(t, encErr.Diagnostic, "Unknown encoder")
	assert.Nil(t, encErr.Err)
}

func TestEncodeEmptyOutput(t *testing.T) {
	bin := fakeEncoder(t, `exit 0`)

	_, err := (&FFmpegEncoder{Binary: bin}).Encode(context.Background(), testJob(t))
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr), "got %v", err)
	assert.Contains(t, encErr.Diagnostic, "no output")
}

func TestEncodeTimeout(t *testing.T) {
	bin := fakeEncoder(t, `exec sleep 10`)
	job := testJob(t)
	job.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := (&FFmpegEncoder{Binary: bin, WaitDelay: time.Second}).Encode(context.Background(), job)
	assert.Less(t, time.Since(start), 5*time.Second)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEncodeCanceled(t *testing.T) {
	bin := fakeEncoder(t, `exec sleep 10`)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := (&FFmpegEncoder{Binary: bin, WaitDelay: time.Second}).Encode(ctx, testJob(t))
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestTail(t *testing.T) {
	long := make([]byte, diagnosticLimit+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, tail(long), diagnosticLimit)
	assert.Equal(t, "boom", tail([]byte("  boom\n")))
}
