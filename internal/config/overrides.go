package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Overrides carries caller-supplied settings. Nil fields keep the default.
type Overrides struct {
	FrameRate        *float64    `json:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
	Resolution       *Resolution `json:"resolution,omitempty" yaml:"resolution,omitempty"`
	BackgroundColor  *string     `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	StrokeDelay      *float64    `json:"stroke_delay,omitempty" yaml:"stroke_delay,omitempty"`
	ShapeDelay       *float64    `json:"shape_delay,omitempty" yaml:"shape_delay,omitempty"`
	StrokeSpeed      *float64    `json:"stroke_speed,omitempty" yaml:"stroke_speed,omitempty"`
	ShapeSpeed       *float64    `json:"shape_speed,omitempty" yaml:"shape_speed,omitempty"`
	AnimationPadding *float64    `json:"animation_padding,omitempty" yaml:"animation_padding,omitempty"`
	Workers          *int        `json:"workers,omitempty" yaml:"workers,omitempty"`
	EncodeTimeout    *Duration   `json:"encode_timeout,omitempty" yaml:"encode_timeout,omitempty"`
}

// Merge applies o onto base key by key.
func Merge(base Settings, o *Overrides) Settings {
	if o == nil {
		return base
	}
	if o.FrameRate != nil {
		base.FrameRate = *o.FrameRate
	}
	if o.Resolution != nil {
		base.Resolution = *o.Resolution
	}
	if o.BackgroundColor != nil && *o.BackgroundColor != "" {
		base.BackgroundColor = *o.BackgroundColor
	}
	if o.StrokeDelay != nil {
		base.StrokeDelay = *o.StrokeDelay
	}
	if o.ShapeDelay != nil {
		base.ShapeDelay = *o.ShapeDelay
	}
	if o.StrokeSpeed != nil {
		base.StrokeSpeed = *o.StrokeSpeed
	}
	if o.ShapeSpeed != nil {
		base.ShapeSpeed = *o.ShapeSpeed
	}
	if o.AnimationPadding != nil {
		base.AnimationPadding = *o.AnimationPadding
	}
	if o.Workers != nil {
		base.Workers = *o.Workers
	}
	if o.EncodeTimeout != nil {
		base.EncodeTimeout = *o.EncodeTimeout
	}
	return base
}

// Layer returns a copy of o where every field set in top replaces the one in o.
func (o *Overrides) Layer(top *Overrides) *Overrides {
	out := Overrides{}
	if o != nil {
		out = *o
	}
	if top == nil {
		return &out
	}
	if top.FrameRate != nil {
		out.FrameRate = top.FrameRate
	}
	if top.Resolution != nil {
		out.Resolution = top.Resolution
	}
	if top.BackgroundColor != nil {
		out.BackgroundColor = top.BackgroundColor
	}
	if top.StrokeDelay != nil {
		out.StrokeDelay = top.StrokeDelay
	}
	if top.ShapeDelay != nil {
		out.ShapeDelay = top.ShapeDelay
	}
	if top.StrokeSpeed != nil {
		out.StrokeSpeed = top.StrokeSpeed
	}
	if top.ShapeSpeed != nil {
		out.ShapeSpeed = top.ShapeSpeed
	}
	if top.AnimationPadding != nil {
		out.AnimationPadding = top.AnimationPadding
	}
	if top.Workers != nil {
		out.Workers = top.Workers
	}
	if top.EncodeTimeout != nil {
		out.EncodeTimeout = top.EncodeTimeout
	}
	return &out
}

// Resolve merges o onto Default and validates the result. It is the single
// place settings are resolved for an export run.
func Resolve(o *Overrides) (Settings, error) {
	s := Merge(Default(), o)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// LoadPreset reads overrides from a YAML preset file.
func LoadPreset(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read preset")
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errors.Wrapf(err, "parse preset %s", path)
	}
	return &o, nil
}

// WritePreset stores s as a YAML preset file.
func WritePreset(s Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
