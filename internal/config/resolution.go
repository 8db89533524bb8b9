package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Resolution is the output frame size in pixels.
type Resolution struct {
	Width  int
	Height int
}

var DefaultResolution = Resolution{Width: 1920, Height: 1080}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses a "WIDTHxHEIGHT" token. Malformed input yields
// DefaultResolution and ok=false instead of an error.
func ParseResolution(s string) (res Resolution, ok bool) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return DefaultResolution, false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || !inIntRange(float64(w)) || !inIntRange(float64(h)) {
		return DefaultResolution, false
	}
	return Resolution{Width: w, Height: h}, true
}

// resolutionFromPair converts a [width, height] pair. Values outside
// [1, MaxInt32] have no int conversion and degrade to DefaultResolution.
func resolutionFromPair(v []float64) Resolution {
	if len(v) != 2 || !inIntRange(v[0]) || !inIntRange(v[1]) {
		return DefaultResolution
	}
	return Resolution{Width: int(v[0]), Height: int(v[1])}
}

func inIntRange(f float64) bool {
	return f >= 1 && f <= math.MaxInt32
}

// MarshalJSON writes the [width, height] form.
func (r Resolution) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Width, r.Height})
}

// UnmarshalJSON accepts either [width, height] or "WIDTHxHEIGHT".
// Unparseable values degrade to DefaultResolution.
func (r *Resolution) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r, _ = ParseResolution(s)
		return nil
	}
	var pair []float64
	if err := json.Unmarshal(data, &pair); err == nil {
		*r = resolutionFromPair(pair)
		return nil
	}
	*r = DefaultResolution
	return nil
}

func (r Resolution) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

func (r *Resolution) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r, _ = ParseResolution(node.Value)
	case yaml.SequenceNode:
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			*r = DefaultResolution
			return nil
		}
		*r = resolutionFromPair(pair)
	default:
		*r = DefaultResolution
	}
	return nil
}

// Duration is a time.Duration that reads "90s"-style strings or plain
// numbers of seconds.
type Duration time.Duration

func parseDuration(s string) (Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return Duration(d), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return Duration(secs * float64(time.Second)), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := parseDuration(s)
		if err != nil {
			return err
		}
		*d = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return errors.Wrap(err, "encode_timeout")
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
