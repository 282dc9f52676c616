package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// frame is one open element during the walk.
type frame struct {
	name   string
	group  *Group // root and <g>
	rect   *Rectangle
	circle *Circle
	path   *Path
	text   *strings.Builder // root-level <title> and <desc>
	dest   *string
}

// attrs returns the attribute store owned by the frame, if any.
func (f *frame) attrs() *[]Attribute {
	switch {
	case f.group != nil:
		return &f.group.Attributes
	case f.rect != nil:
		return &f.rect.Attributes
	case f.circle != nil:
		return &f.circle.Attributes
	case f.path != nil:
		return &f.path.Attributes
	}
	return nil
}

// cursor holds the state of an import walk.
type cursor struct {
	doc   *Document
	stack []*frame
	// prefix is the root's prefix when it is bound to the SVG namespace
	// ("svg" in <svg:svg xmlns:svg=...>); elements carrying it dispatch on
	// their local name.
	prefix string
}

type startFunc func(c *cursor, se xml.StartElement) *frame

var startFuncs = map[string]startFunc{
	"rect":   (*cursor).startRect,
	"circle": (*cursor).startCircle,
	"path":   (*cursor).startPath,
	"g":      (*cursor).startGroup,
	"title":  (*cursor).startTitle,
	"desc":   (*cursor).startDesc,
}

// ImportXML reads an SVG document. Malformed XML or a missing or foreign
// root element fail with ErrParse. A prefixed root must bind its prefix to
// the SVG namespace. Unknown elements never fail the import:
// their shape descendants attach to the nearest enclosing group or document
// and their attributes are kept on the enclosing element unless it already
// has an attribute of that name.
func ImportXML(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	c := &cursor{}
	for {
		t, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		switch se := t.(type) {
		case xml.StartElement:
			if err := c.start(se); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if err := c.end(se); err != nil {
				return nil, err
			}
		case xml.CharData:
			if n := len(c.stack); n > 0 && c.stack[n-1].text != nil {
				c.stack[n-1].text.Write(se)
			}
		}
	}
	if c.doc == nil {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}
	if len(c.stack) > 0 {
		return nil, fmt.Errorf("%w: unexpected end of input inside <%s>", ErrParse, c.stack[len(c.stack)-1].name)
	}
	return c.doc, nil
}

// ImportXMLBytes is ImportXML over an in-memory document.
func ImportXMLBytes(data []byte) (*Document, error) {
	return ImportXML(bytes.NewReader(data))
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (c *cursor) start(se xml.StartElement) error {
	name := qualifiedName(se.Name)
	if c.doc == nil {
		if se.Name.Local != "svg" {
			return fmt.Errorf("%w: root element is <%s>, want <svg>", ErrParse, name)
		}
		if se.Name.Space != "" {
			if namespaceOf(se, se.Name.Space) != DefaultNamespace {
				return fmt.Errorf("%w: root prefix %q is not bound to %s", ErrParse, se.Name.Space, DefaultNamespace)
			}
			c.prefix = se.Name.Space
		}
		c.startRoot(name, se)
		return nil
	}
	if len(c.stack) == 0 {
		return fmt.Errorf("%w: content after the root element", ErrParse)
	}

	key := name
	if c.prefix != "" && se.Name.Space == c.prefix {
		key = se.Name.Local
	}
	var f *frame
	if fn, ok := startFuncs[key]; ok {
		f = fn(c, se)
	}
	if f == nil {
		c.captureUnknown(se)
		f = &frame{}
	}
	f.name = name
	c.stack = append(c.stack, f)
	return nil
}

// namespaceOf returns the namespace se declares for prefix, if any.
func namespaceOf(se xml.StartElement, prefix string) string {
	for _, a := range se.Attr {
		if a.Name.Space == "xmlns" && a.Name.Local == prefix {
			return a.Value
		}
	}
	return ""
}

func (c *cursor) end(ee xml.EndElement) error {
	name := qualifiedName(ee.Name)
	n := len(c.stack)
	if n == 0 {
		return fmt.Errorf("%w: unexpected </%s>", ErrParse, name)
	}
	top := c.stack[n-1]
	if top.name != name {
		return fmt.Errorf("%w: element <%s> closed by </%s>", ErrParse, top.name, name)
	}
	c.stack = c.stack[:n-1]

	if n == 1 {
		root := top.group
		c.doc.Rectangles = root.Rectangles
		c.doc.Circles = root.Circles
		c.doc.Paths = root.Paths
		c.doc.Groups = root.Groups
		c.doc.Attributes = root.Attributes
		return nil
	}

	parent := c.container()
	switch {
	case top.rect != nil:
		parent.Rectangles = append(parent.Rectangles, *top.rect)
	case top.circle != nil:
		parent.Circles = append(parent.Circles, *top.circle)
	case top.path != nil:
		parent.Paths = append(parent.Paths, *top.path)
	case top.group != nil:
		parent.Groups = append(parent.Groups, *top.group)
	case top.text != nil:
		*top.dest = top.text.String()
	}
	return nil
}

// container returns the innermost open group, the root included.
func (c *cursor) container() *Group {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if g := c.stack[i].group; g != nil {
			return g
		}
	}
	return nil
}

// captureUnknown keeps the attributes of an element with no model on the
// innermost element that has an attribute store.
func (c *cursor) captureUnknown(se xml.StartElement) {
	var store *[]Attribute
	for i := len(c.stack) - 1; i >= 0 && store == nil; i-- {
		store = c.stack[i].attrs()
	}
	if store == nil {
		return
	}
	for _, a := range se.Attr {
		name := qualifiedName(a.Name)
		if _, exists := Lookup(*store, name); exists {
			continue
		}
		*store = append(*store, Attribute{Name: name, Value: a.Value})
	}
}

func (c *cursor) startRoot(name string, se xml.StartElement) {
	c.doc = NewDocument()
	root := NewGroup()
	c.doc.Namespace = ""
	for _, a := range se.Attr {
		if a.Name.Space == "" && a.Name.Local == "xmlns" {
			c.doc.Namespace = a.Value
			continue
		}
		root.Attributes = append(root.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
	}
	if c.doc.Namespace == "" {
		c.doc.Namespace = DefaultNamespace
	}
	c.stack = append(c.stack, &frame{name: name, group: root})
}

// lengthFields collects numeric attributes into their fields. The unit is
// taken from an explicit units attribute, else from the first suffixed value.
type lengthFields struct {
	fields   map[string]*float64
	units    *string
	explicit bool
}

func (l *lengthFields) take(a xml.Attr) bool {
	if a.Name.Space != "" {
		return false
	}
	if a.Name.Local == "units" {
		*l.units = strings.TrimSpace(a.Value)
		l.explicit = true
		return true
	}
	target, ok := l.fields[a.Name.Local]
	if !ok {
		return false
	}
	v, unit, parsed := parseLength(a.Value)
	if parsed {
		*target = v
		if unit != "" && !l.explicit && *l.units == "" {
			*l.units = unit
		}
	}
	return true
}

func (c *cursor) startRect(se xml.StartElement) *frame {
	r := NewRectangle(0, 0, 0, 0, "")
	lf := lengthFields{
		fields: map[string]*float64{"x": &r.X, "y": &r.Y, "width": &r.Width, "height": &r.Height},
		units:  &r.Units,
	}
	for _, a := range se.Attr {
		if !lf.take(a) {
			r.Attributes = append(r.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
		}
	}
	return &frame{rect: r}
}

func (c *cursor) startCircle(se xml.StartElement) *frame {
	circle := NewCircle(0, 0, 0, "")
	lf := lengthFields{
		fields: map[string]*float64{"cx": &circle.CX, "cy": &circle.CY, "r": &circle.R},
		units:  &circle.Units,
	}
	for _, a := range se.Attr {
		if !lf.take(a) {
			circle.Attributes = append(circle.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
		}
	}
	return &frame{circle: circle}
}

func (c *cursor) startPath(se xml.StartElement) *frame {
	p := NewPath("")
	for _, a := range se.Attr {
		if a.Name.Space == "" && a.Name.Local == "d" {
			p.Data = a.Value
			continue
		}
		p.Attributes = append(p.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
	}
	return &frame{path: p}
}

func (c *cursor) startGroup(se xml.StartElement) *frame {
	g := NewGroup()
	for _, a := range se.Attr {
		g.Attributes = append(g.Attributes, Attribute{Name: qualifiedName(a.Name), Value: a.Value})
	}
	return &frame{group: g}
}

// startTitle only applies directly under the root; nested titles are
// treated like any other unknown element.
func (c *cursor) startTitle(se xml.StartElement) *frame {
	if len(c.stack) != 1 {
		return nil
	}
	return &frame{text: &strings.Builder{}, dest: &c.doc.Title}
}

func (c *cursor) startDesc(se xml.StartElement) *frame {
	if len(c.stack) != 1 {
		return nil
	}
	return &frame{text: &strings.Builder{}, dest: &c.doc.Description}
}
