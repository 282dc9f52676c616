// Package svg models an SVG document as a tree of typed shapes and converts it
// to and from XML and JSON.
package svg

// DefaultNamespace is the SVG namespace used when a document does not declare one.
const DefaultNamespace = "http://www.w3.org/2000/svg"

// Attribute is a name/value pair for anything without a dedicated field.
type Attribute struct {
	Name  string `msgpack:"name"`
	Value string `msgpack:"value"`
}

// Rectangle maps to an SVG <rect> element.
type Rectangle struct {
	X          float64     `msgpack:"x"`
	Y          float64     `msgpack:"y"`
	Width      float64     `msgpack:"width"`
	Height     float64     `msgpack:"height"`
	Units      string      `msgpack:"units"`
	Attributes []Attribute `msgpack:"attributes"`
}

// Circle maps to an SVG <circle> element.
type Circle struct {
	CX         float64     `msgpack:"cx"`
	CY         float64     `msgpack:"cy"`
	R          float64     `msgpack:"r"`
	Units      string      `msgpack:"units"`
	Attributes []Attribute `msgpack:"attributes"`
}

// Path maps to an SVG <path> element. Data is kept verbatim.
type Path struct {
	Data       string      `msgpack:"d"`
	Attributes []Attribute `msgpack:"attributes"`
}

// Group maps to an SVG <g> element. Nested groups are owned by value.
type Group struct {
	Rectangles []Rectangle `msgpack:"rectangles"`
	Circles    []Circle    `msgpack:"circles"`
	Paths      []Path      `msgpack:"paths"`
	Groups     []Group     `msgpack:"groups"`
	Attributes []Attribute `msgpack:"attributes"`
}

// Document is the root of the tree.
type Document struct {
	Namespace   string      `msgpack:"namespace"`
	Title       string      `msgpack:"title"`
	Description string      `msgpack:"description"`
	Rectangles  []Rectangle `msgpack:"rectangles"`
	Circles     []Circle    `msgpack:"circles"`
	Paths       []Path      `msgpack:"paths"`
	Groups      []Group     `msgpack:"groups"`
	Attributes  []Attribute `msgpack:"attributes"`
}

// NewDocument returns an empty document in the default namespace.
func NewDocument() *Document {
	return &Document{
		Namespace:  DefaultNamespace,
		Rectangles: []Rectangle{},
		Circles:    []Circle{},
		Paths:      []Path{},
		Groups:     []Group{},
		Attributes: []Attribute{},
	}
}

// NewRectangle returns a rectangle with an empty attribute store.
func NewRectangle(x, y, width, height float64, units string) *Rectangle {
	return &Rectangle{X: x, Y: y, Width: width, Height: height, Units: units, Attributes: []Attribute{}}
}

// NewCircle returns a circle with an empty attribute store.
func NewCircle(cx, cy, r float64, units string) *Circle {
	return &Circle{CX: cx, CY: cy, R: r, Units: units, Attributes: []Attribute{}}
}

// NewPath returns a path with an empty attribute store.
func NewPath(data string) *Path {
	return &Path{Data: data, Attributes: []Attribute{}}
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{
		Rectangles: []Rectangle{},
		Circles:    []Circle{},
		Paths:      []Path{},
		Groups:     []Group{},
		Attributes: []Attribute{},
	}
}

// ChildCount is the number of direct children, nested group contents excluded.
func (g *Group) ChildCount() int {
	return len(g.Rectangles) + len(g.Circles) + len(g.Paths) + len(g.Groups)
}

// Lookup returns the value of the first attribute with the given name.
func Lookup(attrs []Attribute, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// upsert replaces the value of a same-named attribute or appends a new one.
func upsert(attrs []Attribute, a Attribute) []Attribute {
	for i := range attrs {
		if attrs[i].Name == a.Name {
			out := cloneAttributes(attrs)
			out[i].Value = a.Value
			return out
		}
	}
	return append(cloneAttributes(attrs), a)
}

func cloneAttributes(attrs []Attribute) []Attribute {
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}

// Clone returns a deep copy.
func (r *Rectangle) Clone() Rectangle {
	c := *r
	c.Attributes = cloneAttributes(r.Attributes)
	return c
}

// Clone returns a deep copy.
func (c *Circle) Clone() Circle {
	out := *c
	out.Attributes = cloneAttributes(c.Attributes)
	return out
}

// Clone returns a deep copy.
func (p *Path) Clone() Path {
	out := *p
	out.Attributes = cloneAttributes(p.Attributes)
	return out
}

// Clone returns a deep copy of the group and everything below it.
func (g *Group) Clone() Group {
	out := Group{
		Rectangles: make([]Rectangle, len(g.Rectangles)),
		Circles:    make([]Circle, len(g.Circles)),
		Paths:      make([]Path, len(g.Paths)),
		Groups:     make([]Group, len(g.Groups)),
		Attributes: cloneAttributes(g.Attributes),
	}
	for i := range g.Rectangles {
		out.Rectangles[i] = g.Rectangles[i].Clone()
	}
	for i := range g.Circles {
		out.Circles[i] = g.Circles[i].Clone()
	}
	for i := range g.Paths {
		out.Paths[i] = g.Paths[i].Clone()
	}
	for i := range g.Groups {
		out.Groups[i] = g.Groups[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the whole document.
func (d *Document) Clone() *Document {
	root := Group{
		Rectangles: d.Rectangles,
		Circles:    d.Circles,
		Paths:      d.Paths,
		Groups:     d.Groups,
		Attributes: d.Attributes,
	}
	copied := root.Clone()
	return &Document{
		Namespace:   d.Namespace,
		Title:       d.Title,
		Description: d.Description,
		Rectangles:  copied.Rectangles,
		Circles:     copied.Circles,
		Paths:       copied.Paths,
		Groups:      copied.Groups,
		Attributes:  copied.Attributes,
	}
}
