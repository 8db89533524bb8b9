// Package server exposes the exporter over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/engine"
	"github.com/ivlev/sketch2video/internal/scene"
	"github.com/ivlev/sketch2video/internal/system"
)

const requestIDHeader = "X-Request-ID"

// kindInvalidRequest is reported for bodies that never reach the exporter.
const kindInvalidRequest = "invalid_request"

// ExportRequest is the body of POST /api/export/video.
type ExportRequest struct {
	SceneData      json.RawMessage   `json:"scene_data"`
	ExportSettings *config.Overrides `json:"export_settings"`
	Name           string            `json:"name"`
}

// SVGRequest is the body of POST /api/export/svg.
type SVGRequest struct {
	SVGData string `json:"svg_data"`
	Name    string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type Server struct {
	Exporter *engine.Exporter
	Logger   hclog.Logger
	FFmpeg   string // binary checked by /healthz

	router *gin.Engine
}

func New(x *engine.Exporter, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{Exporter: x, Logger: logger, FFmpeg: "ffmpeg"}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID())
	r.GET("/healthz", s.health)

	api := r.Group("/api/export")
	api.GET("/defaults", s.defaults)
	api.POST("/video", s.exportVideo)
	api.POST("/svg", s.exportSVG)

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		s.Logger.Debug("request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	info, err := system.CheckEncoder(c.Request.Context(), s.FFmpeg)
	switch {
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
	case !info.VP9:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "encoder": info, "error": "libvpx-vp9 not supported"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "encoder": info})
	}
}

func (s *Server) defaults(c *gin.Context) {
	c.JSON(http.StatusOK, config.Default())
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// attachmentName is <prefix>_<name><ext> with name reduced to safe
// characters. An empty name becomes "export".
func attachmentName(prefix, name, ext string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" || name == "_" {
		name = "export"
	}
	return prefix + "_" + name + ext
}

func (s *Server) exportVideo(c *gin.Context) {
	log := s.Logger.With("request_id", c.GetString("request_id"))

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kindInvalidRequest})
		return
	}
	if len(req.SceneData) == 0 || string(req.SceneData) == "null" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "scene_data is required", Kind: kindInvalidRequest})
		return
	}
	if req.ExportSettings == nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "export_settings is required", Kind: kindInvalidRequest})
		return
	}

	sc, err := scene.Decode(bytes.NewReader(req.SceneData))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kindInvalidRequest})
		return
	}

	res, err := s.Exporter.Export(c.Request.Context(), sc, req.ExportSettings, "")
	if err != nil {
		kind := engine.KindOf(err)
		log.Error("export failed", "kind", kind, "error", err)
		c.JSON(statusFor(kind), errorResponse{Error: err.Error(), Kind: string(kind)})
		return
	}
	defer func() {
		if err := os.Remove(res.Path); err != nil {
			log.Warn("could not remove served video", "path", res.Path, "error", err)
		}
	}()

	log.Info("export served", "frames", res.Frames, "total", res.Durations.Total)
	c.Header("Content-Type", "video/webm")
	c.FileAttachment(res.Path, attachmentName("animation", req.Name, ".webm"))
}

// exportSVG hands the posted markup back as a download.
func (s *Server) exportSVG(c *gin.Context) {
	var req SVGRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: kindInvalidRequest})
		return
	}
	if req.SVGData == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "svg_data is required", Kind: kindInvalidRequest})
		return
	}

	name := attachmentName("drawing", req.Name, ".svg")
	s.Logger.Debug("svg served", "request_id", c.GetString("request_id"), "name", name, "bytes", len(req.SVGData))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "image/svg+xml", []byte(req.SVGData))
}

func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindInvalidSettings:
		return http.StatusBadRequest
	case engine.KindEncoderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
