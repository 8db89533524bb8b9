package config

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// Settings is the fully resolved export configuration. Delays are in
// milliseconds, speeds are multipliers.
type Settings struct {
	FrameRate        float64    `json:"frame_rate" yaml:"frame_rate"`
	Resolution       Resolution `json:"resolution" yaml:"resolution"`
	BackgroundColor  string     `json:"background_color" yaml:"background_color"`
	StrokeDelay      float64    `json:"stroke_delay" yaml:"stroke_delay"`
	ShapeDelay       float64    `json:"shape_delay" yaml:"shape_delay"`
	StrokeSpeed      float64    `json:"stroke_speed" yaml:"stroke_speed"`
	ShapeSpeed       float64    `json:"shape_speed" yaml:"shape_speed"`
	AnimationPadding float64    `json:"animation_padding" yaml:"animation_padding"` // accepted for compatibility, not used by rendering
	Workers          int        `json:"workers" yaml:"workers"`                     // 0 = size from host
	EncodeTimeout    Duration   `json:"encode_timeout" yaml:"encode_timeout"`
}

const (
	DefaultFrameRate        = 30
	DefaultBackgroundColor  = "#ffffff"
	DefaultStrokeDelay      = 100
	DefaultShapeDelay       = 200
	DefaultStrokeSpeed      = 1.0
	DefaultShapeSpeed       = 1.0
	DefaultAnimationPadding = 50
	DefaultEncodeTimeout    = 5 * time.Minute
)

// Default returns the settings used for every key the caller leaves unset.
func Default() Settings {
	return Settings{
		FrameRate:        DefaultFrameRate,
		Resolution:       DefaultResolution,
		BackgroundColor:  DefaultBackgroundColor,
		StrokeDelay:      DefaultStrokeDelay,
		ShapeDelay:       DefaultShapeDelay,
		StrokeSpeed:      DefaultStrokeSpeed,
		ShapeSpeed:       DefaultShapeSpeed,
		AnimationPadding: DefaultAnimationPadding,
		EncodeTimeout:    Duration(DefaultEncodeTimeout),
	}
}

// Upper bounds on a single export. An export past any of them is rejected
// before a canvas is allocated.
const (
	MaxDimension = 8192
	MaxPixels    = 7680 * 4320
	MaxFrameRate = 240
	MaxFrames    = 36000
	MaxWorkers   = 256
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid export settings")

// Validate checks the invariants the renderer divides by.
func (s Settings) Validate() error {
	w, h := s.Resolution.Width, s.Resolution.Height
	switch {
	case !(s.FrameRate > 0) || s.FrameRate > MaxFrameRate:
		return errors.Wrapf(ErrInvalid, "frame_rate must be in (0, %d], got %v", MaxFrameRate, s.FrameRate)
	case !positiveFinite(s.StrokeSpeed):
		return errors.Wrapf(ErrInvalid, "stroke_speed must be > 0, got %v", s.StrokeSpeed)
	case !positiveFinite(s.ShapeSpeed):
		return errors.Wrapf(ErrInvalid, "shape_speed must be > 0, got %v", s.ShapeSpeed)
	case !(s.StrokeDelay >= 0) || !(s.ShapeDelay >= 0) || math.IsInf(s.StrokeDelay, 0) || math.IsInf(s.ShapeDelay, 0):
		return errors.Wrapf(ErrInvalid, "delays must be finite and >= 0, got stroke=%v shape=%v", s.StrokeDelay, s.ShapeDelay)
	case w <= 0 || h <= 0:
		return errors.Wrapf(ErrInvalid, "resolution must be positive, got %s", s.Resolution)
	case w > MaxDimension || h > MaxDimension || w*h > MaxPixels:
		return errors.Wrapf(ErrInvalid, "resolution %s exceeds %dx%d or %d pixels", s.Resolution, MaxDimension, MaxDimension, MaxPixels)
	case s.Workers < 0 || s.Workers > MaxWorkers:
		return errors.Wrapf(ErrInvalid, "workers must be in [0, %d], got %d", MaxWorkers, s.Workers)
	case s.EncodeTimeout <= 0:
		return errors.Wrapf(ErrInvalid, "encode_timeout must be > 0, got %s", time.Duration(s.EncodeTimeout))
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// FrameInterval is the time between two sampled frames in milliseconds.
func (s Settings) FrameInterval() float64 {
	return 1000 / s.FrameRate
}
