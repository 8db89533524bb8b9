package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/ivlev/sketch2video/internal/engine"
	"github.com/ivlev/sketch2video/internal/server"
	"github.com/ivlev/sketch2video/internal/video"
)

func main() {
	addrPtr := flag.String("addr", ":8080", "Listen address")
	outputDirPtr := flag.String("output-dir", os.TempDir(), "Directory for videos while they are served")
	ffmpegPtr := flag.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	keepRevealedPtr := flag.Bool("keep-revealed", false, "Keep finished elements on screen")
	logLevelPtr := flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")

	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "sketch2video-server",
		Level: hclog.LevelFromString(*logLevelPtr),
	})
	if !logger.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	x := engine.NewExporter(&video.FFmpegEncoder{Binary: *ffmpegPtr, Logger: logger.Named("ffmpeg")}, logger.Named("export"))
	x.OutputDir = *outputDirPtr
	x.KeepRevealed = *keepRevealedPtr

	s := server.New(x, logger.Named("http"))
	s.FFmpeg = *ffmpegPtr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx, *addrPtr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[-] Server error: %v", err)
	}
}
