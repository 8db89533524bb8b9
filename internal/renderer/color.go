package renderer

import (
	"image/color"
	"math"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/colornames"
	"gopkg.in/go-playground/colors.v1"
)

// ParseColor understands hex ("#f00", "#ff0000"), rgb()/rgba() and CSS colour
// names. "transparent" and the empty string are fully transparent.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "transparent", "none":
		return color.NRGBA{}, nil
	}
	if c, ok := colornames.Map[s]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	parsed, err := colors.Parse(s)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "colour %q", s)
	}
	rgba := parsed.ToRGBA()
	return color.NRGBA{
		R: rgba.R,
		G: rgba.G,
		B: rgba.B,
		A: uint8(math.Round(math.Max(0, math.Min(1, rgba.A)) * 255)),
	}, nil
}

// visible reports whether s names a colour that should be painted.
func visible(s string) bool {
	c, err := ParseColor(s)
	return err == nil && c.A > 0
}
