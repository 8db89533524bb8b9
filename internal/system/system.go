package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// FindLatestScene returns the most recently modified *.json file in dir.
func FindLatestScene(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(strings.ToLower(f.Name()), ".json") {
			info, err := f.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(latestTime) {
				latestTime = info.ModTime()
				latestFile = filepath.Join(dir, f.Name())
			}
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no scene files (*.json) found in %s", dir)
	}

	return latestFile, nil
}

// EncoderInfo describes an ffmpeg binary found on the host.
type EncoderInfo struct {
	Path string `json:"path"`
	VP9  bool   `json:"vp9"`
}

// CheckEncoder resolves binary on PATH and asks it whether libvpx-vp9 is
// compiled in.
func CheckEncoder(ctx context.Context, binary string) (EncoderInfo, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return EncoderInfo{}, err
	}
	info := EncoderInfo{Path: path}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return info, errors.Wrapf(err, "%s -encoders", binary)
	}
	info.VP9 = bytes.Contains(out, []byte("libvpx-vp9"))
	return info, nil
}

// RenderWorkers sizes the frame worker pool for canvases of width x height:
// one worker per logical CPU, capped so in-flight buffers stay within half of
// the available memory.
func RenderWorkers(width, height int) int {
	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}

	// canvas (4 bytes/px) plus coverage buffer (4 bytes/px) per worker
	perWorker := uint64(width) * uint64(height) * 8
	if vm, err := mem.VirtualMemory(); err == nil && perWorker > 0 {
		if limit := int(vm.Available / 2 / perWorker); limit < workers {
			workers = limit
		}
	}

	if workers < 1 {
		workers = 1
	}
	return workers
}
