package config

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in   string
		want Resolution
		ok   bool
	}{
		{"1280x720", Resolution{1280, 720}, true},
		{" 640X480 ", Resolution{640, 480}, true},
		{"not-a-resolution", DefaultResolution, false},
		{"1280x", DefaultResolution, false},
		{"0x720", DefaultResolution, false},
		{"", DefaultResolution, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseResolution(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestOverridesJSON(t *testing.T) {
	var o Overrides
	err := json.Unmarshal([]byte(`{"frame_rate": 24, "resolution": "1280x720", "stroke_speed": 2}`), &o)
	require.NoError(t, err)

	s, err := Resolve(&o)
	require.NoError(t, err)
	assert.Equal(t, 24.0, s.FrameRate)
	assert.Equal(t, Resolution{1280, 720}, s.Resolution)
	assert.Equal(t, 2.0, s.StrokeSpeed)

	// unset keys keep defaults
	assert.Equal(t, DefaultBackgroundColor, s.BackgroundColor)
	assert.Equal(t, 200.0, s.ShapeDelay)
	assert.Equal(t, 50.0, s.AnimationPadding)
}

func TestResolutionJSONForms(t *testing.T) {
	var o Overrides
	require.NoError(t, json.Unmarshal([]byte(`{"resolution": [800, 600]}`), &o))
	assert.Equal(t, Resolution{800, 600}, *o.Resolution)

	o = Overrides{}
	require.NoError(t, json.Unmarshal([]byte(`{"resolution": "garbage"}`), &o))
	assert.Equal(t, DefaultResolution, *o.Resolution)

	o = Overrides{}
	require.NoError(t, json.Unmarshal([]byte(`{"resolution": [1]}`), &o))
	assert.Equal(t, DefaultResolution, *o.Resolution)

	// no int conversion for these
	for _, raw := range []string{`[1e300, 10]`, `[10, 1e19]`, `[-5, 10]`, `[0.5, 10]`, `"99999999999x10"`} {
		o = Overrides{}
		require.NoError(t, json.Unmarshal([]byte(`{"resolution": `+raw+`}`), &o), raw)
		assert.Equal(t, DefaultResolution, *o.Resolution, raw)
	}
}

func TestValidateLimits(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Settings)
	}{
		{"huge resolution", func(s *Settings) { s.Resolution = Resolution{200000, 200000} }},
		{"wide resolution", func(s *Settings) { s.Resolution = Resolution{MaxDimension + 1, 10} }},
		{"too many pixels", func(s *Settings) { s.Resolution = Resolution{MaxDimension, MaxDimension} }},
		{"frame rate", func(s *Settings) { s.FrameRate = 1e6 }},
		{"nan frame rate", func(s *Settings) { s.FrameRate = math.NaN() }},
		{"infinite speed", func(s *Settings) { s.StrokeSpeed = math.Inf(1) }},
		{"nan delay", func(s *Settings) { s.ShapeDelay = math.NaN() }},
		{"workers", func(s *Settings) { s.Workers = MaxWorkers + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.edit(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	s := Default()
	s.Resolution = Resolution{7680, 4320}
	s.FrameRate = MaxFrameRate
	assert.NoError(t, s.Validate(), "8K at the top frame rate is allowed")
}

func TestResolveRejectsNonPositive(t *testing.T) {
	zero := 0.0
	_, err := Resolve(&Overrides{FrameRate: &zero})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	neg := -1.0
	_, err = Resolve(&Overrides{ShapeSpeed: &neg})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestMergeNil(t *testing.T) {
	assert.Equal(t, Default(), Merge(Default(), nil))
}

func TestLayer(t *testing.T) {
	fps24, fps60 := 24.0, 60.0
	bg := "#000000"
	base := &Overrides{FrameRate: &fps24, BackgroundColor: &bg}
	got := base.Layer(&Overrides{FrameRate: &fps60})

	assert.Equal(t, 60.0, *got.FrameRate)
	assert.Equal(t, "#000000", *got.BackgroundColor)
	assert.Equal(t, 24.0, *base.FrameRate)
}

func TestPresetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	want := Default()
	want.FrameRate = 12
	want.Resolution = Resolution{640, 360}
	want.EncodeTimeout = Duration(90 * time.Second)
	require.NoError(t, WritePreset(want, path))

	o, err := LoadPreset(path)
	require.NoError(t, err)
	got, err := Resolve(o)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDurationForms(t *testing.T) {
	var o Overrides
	require.NoError(t, json.Unmarshal([]byte(`{"encode_timeout": "2m"}`), &o))
	assert.Equal(t, Duration(2*time.Minute), *o.EncodeTimeout)

	o = Overrides{}
	require.NoError(t, json.Unmarshal([]byte(`{"encode_timeout": 30}`), &o))
	assert.Equal(t, Duration(30*time.Second), *o.EncodeTimeout)
}
