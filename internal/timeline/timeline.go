package timeline

import (
	"sort"

	"github.com/ivlev/sketch2video/internal/config"
	"github.com/ivlev/sketch2video/internal/scene"
)

// Kind selects the rasterizer an item is drawn with.
type Kind string

const (
	KindStroke Kind = "stroke"
	KindShape  Kind = "shape"
	KindText   Kind = "text"
)

const (
	// FallbackDuration is the animation length used when no item was scheduled.
	FallbackDuration = 1000.0
	shapeDuration    = 500.0
	textDuration     = 100.0

	// Epsilon is the tolerance, in milliseconds, for comparing sample times
	// against interval bounds and the total duration.
	Epsilon = 1e-6
)

// Item is the reveal interval of one element, in milliseconds.
type Item struct {
	Element scene.Element
	Start   float64
	End     float64
	Kind    Kind
}

func (it Item) Duration() float64 {
	return it.End - it.Start
}

// Active reports whether t falls inside the closed interval [Start, End],
// widened by Epsilon on both sides.
func (it Item) Active(t float64) bool {
	return it.Start-Epsilon <= t && t <= it.End+Epsilon
}

// Progress is the completed fraction of the reveal at t, clamped to [0, 1].
// Zero-length items are always complete.
func (it Item) Progress(t float64) float64 {
	if it.End <= it.Start {
		return 1
	}
	p := (t - it.Start) / (it.End - it.Start)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// schedule returns the item for el starting at cursor and the cursor
// advance. ok is false for elements that get no interval.
func schedule(el scene.Element, cursor float64, s config.Settings) (it Item, advance float64, ok bool) {
	switch e := el.(type) {
	case *scene.Stroke:
		d := float64(len(e.Points)) * (1000 / s.StrokeSpeed)
		return Item{Element: el, Start: cursor, End: cursor + d, Kind: KindStroke}, d + s.StrokeDelay, true
	case *scene.Shape:
		d := shapeDuration / s.ShapeSpeed
		return Item{Element: el, Start: cursor, End: cursor + d, Kind: KindShape}, d + s.ShapeDelay, true
	case *scene.Text:
		return Item{Element: el, Start: cursor, End: cursor + textDuration, Kind: KindText}, textDuration + s.ShapeDelay, true
	}
	return Item{}, 0, false
}

// Sorted returns elements stably ordered by ascending z-index.
func Sorted(elements []scene.Element) []scene.Element {
	out := make([]scene.Element, len(elements))
	copy(out, elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Info().ZIndex < out[j].Info().ZIndex
	})
	return out
}

// Build folds the z-ordered elements into consecutive reveal intervals.
// Elements of unknown category are skipped without moving the cursor.
func Build(elements []scene.Element, s config.Settings) []Item {
	var (
		items  []Item
		cursor float64
	)
	for _, el := range Sorted(elements) {
		it, advance, ok := schedule(el, cursor, s)
		if !ok {
			continue
		}
		items = append(items, it)
		cursor += advance
	}
	return items
}

// TotalDuration is the latest End of items, or FallbackDuration when there
// are none.
func TotalDuration(items []Item) float64 {
	if len(items) == 0 {
		return FallbackDuration
	}
	total := items[0].End
	for _, it := range items[1:] {
		if it.End > total {
			total = it.End
		}
	}
	return total
}
