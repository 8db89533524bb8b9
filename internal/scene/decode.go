package scene

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Scene is a decoded scene document.
type Scene struct {
	Elements []Element
}

// UnmarshalJSON accepts either {x, y} objects or [x, y] pairs.
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return errors.Wrap(err, "point pair")
		}
		if len(pair) < 2 {
			return errors.Errorf("point pair needs 2 coordinates, got %d", len(pair))
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "point object")
	}
	p.X, p.Y = obj.X, obj.Y
	return nil
}

// fields is one element object split into its members. Members of the wrong
// JSON type are skipped and collected in errs so the rest still decode.
type fields struct {
	raw  map[string]json.RawMessage
	errs []string
}

func (f *fields) has(key string) bool {
	v, ok := f.raw[key]
	return ok && string(v) != "null"
}

func (f *fields) fail(key string, err error) {
	f.errs = append(f.errs, key+": "+err.Error())
}

func (f *fields) number(key string) (float64, bool) {
	if !f.has(key) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(f.raw[key], &v); err != nil {
		f.fail(key, err)
		return 0, false
	}
	return v, true
}

func (f *fields) str(key string) string {
	if !f.has(key) {
		return ""
	}
	var v string
	if err := json.Unmarshal(f.raw[key], &v); err != nil {
		f.fail(key, err)
		return ""
	}
	return v
}

// points keeps one entry per input point so the reveal length does not
// depend on which points were malformed.
func (f *fields) points() []Point {
	if !f.has("points") {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(f.raw["points"], &raw); err != nil {
		f.fail("points", err)
		return nil
	}
	pts := make([]Point, len(raw))
	for i, r := range raw {
		if err := pts[i].UnmarshalJSON(r); err != nil {
			f.fail("points["+strconv.Itoa(i)+"]", err)
		}
	}
	return pts
}

func (f *fields) meta(index int) Meta {
	m := Meta{ID: rawID(f.raw["id"]), Index: index}
	if z, ok := f.number("z_index"); ok {
		m.ZIndex = z
	} else if z, ok := f.number("zIndex"); ok {
		m.ZIndex = z
	}
	return m
}

func (f *fields) style() Style {
	st := Style{
		StrokeColor:     f.str("strokeColor"),
		StrokeWidth:     DefaultStrokeWidth,
		BackgroundColor: f.str("backgroundColor"),
	}
	if st.StrokeColor == "" {
		st.StrokeColor = DefaultStrokeColor
	}
	if w, ok := f.number("strokeWidth"); ok {
		st.StrokeWidth = w
		if st.StrokeWidth <= 0 {
			st.StrokeWidth = 1
		}
	}
	return st
}

// err is nil when every member decoded.
func (f *fields) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return errors.Errorf("malformed fields: %s", strings.Join(f.errs, "; "))
}

func rawID(id json.RawMessage) string {
	if len(id) == 0 || string(id) == "null" {
		return ""
	}
	if s, err := strconv.Unquote(string(id)); err == nil {
		return s
	}
	return string(id)
}

// DecodeElement converts one element object of the scene document. It never
// fails. A known category with malformed members keeps its category and the
// members that did decode, with Meta.Err describing the rest. Input that is
// not an object, or has no string type, comes back as *Unknown with Err set.
func DecodeElement(index int, data []byte) Element {
	f := &fields{}
	if err := json.Unmarshal(data, &f.raw); err != nil {
		return &Unknown{Meta: Meta{Index: index, Err: errors.Wrap(err, "element")}}
	}
	typ := f.str("type")
	if typ == "" {
		m := f.meta(index)
		m.Err = f.err()
		if m.Err == nil && !f.has("type") {
			m.Err = errors.New("element has no type")
		}
		return &Unknown{Meta: m}
	}

	cat := Category(typ)
	switch {
	case cat == CategoryFreedraw:
		s := &Stroke{Meta: f.meta(index), Style: f.style(), Points: f.points()}
		s.Err = f.err()
		return s
	case cat.IsShape():
		s := &Shape{Meta: f.meta(index), Style: f.style(), Kind: cat}
		s.X, _ = f.number("x")
		s.Y, _ = f.number("y")
		s.Width, _ = f.number("width")
		s.Height, _ = f.number("height")
		s.Err = f.err()
		return s
	case cat == CategoryText:
		t := &Text{Meta: f.meta(index), FontSize: DefaultFontSize}
		t.X, _ = f.number("x")
		t.Y, _ = f.number("y")
		t.Text = f.str("text")
		if size, ok := f.number("fontSize"); ok && size > 0 {
			t.FontSize = size
		}
		if t.Color = f.str("strokeColor"); t.Color == "" {
			t.Color = DefaultStrokeColor
		}
		t.Err = f.err()
		return t
	}
	return &Unknown{Meta: f.meta(index), Type: typ}
}

func (s *Scene) UnmarshalJSON(data []byte) error {
	var doc struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "scene document")
	}
	s.Elements = make([]Element, 0, len(doc.Elements))
	for i, raw := range doc.Elements {
		s.Elements = append(s.Elements, DecodeElement(i, raw))
	}
	return nil
}

// Decode reads a scene document from r.
func Decode(r io.Reader) (*Scene, error) {
	var s Scene
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads a scene document from a JSON file.
func Load(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open scene")
	}
	defer f.Close()
	s, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode scene %s", path)
	}
	return s, nil
}

// Unknowns returns the elements that no rasterizer handles.
func (s *Scene) Unknowns() []*Unknown {
	var out []*Unknown
	for _, el := range s.Elements {
		if u, ok := el.(*Unknown); ok {
			out = append(out, u)
		}
	}
	return out
}
