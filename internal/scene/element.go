package scene

// Category is the element "type" tag of the scene document.
type Category string

const (
	CategoryFreedraw  Category = "freedraw"
	CategoryRectangle Category = "rectangle"
	CategoryEllipse   Category = "ellipse"
	CategoryDiamond   Category = "diamond"
	CategoryArrow     Category = "arrow"
	CategoryLine      Category = "line"
	CategoryText      Category = "text"
)

// IsShape reports whether c is drawn by the shape path.
func (c Category) IsShape() bool {
	switch c {
	case CategoryRectangle, CategoryEllipse, CategoryDiamond, CategoryArrow, CategoryLine:
		return true
	}
	return false
}

const (
	DefaultStrokeColor = "#000000"
	DefaultStrokeWidth = 2.0
	DefaultFontSize    = 16.0
)

// Element is one drawable unit of a scene. The set of implementations is
// closed: Stroke, Shape, Text and Unknown.
type Element interface {
	Category() Category
	Info() Meta
	element()
}

// Meta holds the fields shared by every element.
type Meta struct {
	ID     string
	ZIndex float64
	Index  int   // position in the input document
	Err    error // members that could not be decoded, nil when clean
}

func (m Meta) Info() Meta { return m }

type Point struct {
	X, Y float64
}

// Style is the stroke and fill of an element. BackgroundColor is empty when
// the element has none.
type Style struct {
	StrokeColor     string
	StrokeWidth     float64
	BackgroundColor string
}

// Stroke is a freehand "freedraw" element.
type Stroke struct {
	Meta
	Style
	Points []Point
}

func (*Stroke) Category() Category { return CategoryFreedraw }
func (*Stroke) element()           {}

// Shape is a rectangle, ellipse, diamond, arrow or line. Width and Height
// keep the sign they were drawn with; lines and arrows run from (X, Y) to
// (X+Width, Y+Height).
type Shape struct {
	Meta
	Style
	Kind          Category
	X, Y          float64
	Width, Height float64
}

func (s *Shape) Category() Category { return s.Kind }
func (*Shape) element()             {}

// Box is the normalized bounding box as min corner plus non-negative size.
func (s *Shape) Box() (x, y, w, h float64) {
	x, y, w, h = s.X, s.Y, s.Width, s.Height
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return x, y, w, h
}

// Text is a text label. Its colour comes from strokeColor.
type Text struct {
	Meta
	X, Y     float64
	Text     string
	FontSize float64
	Color    string
}

func (*Text) Category() Category { return CategoryText }
func (*Text) element()           {}

// Unknown is an element of a category nothing can draw, or one whose JSON
// could not be decoded. Err is set in the latter case.
type Unknown struct {
	Meta
	Type string
}

func (u *Unknown) Category() Category { return Category(u.Type) }
func (*Unknown) element()             {}
