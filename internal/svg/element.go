package svg

import (
	"fmt"
	"strings"
)

// Kind names an addressable part of a document.
type Kind int

const (
	KindDocument Kind = iota
	KindRectangle
	KindCircle
	KindPath
	KindGroup
)

var kindNames = map[Kind]string{
	KindDocument:  "svg",
	KindRectangle: "rect",
	KindCircle:    "circle",
	KindPath:      "path",
	KindGroup:     "g",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the element tag names plus a few common spellings.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "svg", "document", "doc":
		return KindDocument, nil
	case "rect", "rectangle", "rects", "rectangles":
		return KindRectangle, nil
	case "circle", "circ", "circles":
		return KindCircle, nil
	case "path", "paths":
		return KindPath, nil
	case "g", "group", "groups":
		return KindGroup, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Component is an element that can be appended to a document. It is
// implemented only by *Rectangle, *Circle, *Path and *Group.
type Component interface {
	Kind() Kind
	Validate() error
	component()
}

func (*Rectangle) Kind() Kind { return KindRectangle }
func (*Circle) Kind() Kind    { return KindCircle }
func (*Path) Kind() Kind      { return KindPath }
func (*Group) Kind() Kind     { return KindGroup }

func (*Rectangle) component() {}
func (*Circle) component()    {}
func (*Path) component()      {}
func (*Group) component()     {}

// Len returns the size of the top-level collection for kind. The document
// kind has no collection and reports 1.
func (d *Document) Len(kind Kind) (int, error) {
	switch kind {
	case KindDocument:
		return 1, nil
	case KindRectangle:
		return len(d.Rectangles), nil
	case KindCircle:
		return len(d.Circles), nil
	case KindPath:
		return len(d.Paths), nil
	case KindGroup:
		return len(d.Groups), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

// AttributesOf returns the attribute store of the element at index.
func (d *Document) AttributesOf(kind Kind, index int) ([]Attribute, error) {
	if kind == KindDocument {
		return d.Attributes, nil
	}
	n, err := d.Len(kind)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: %v index %d, have %d", ErrBounds, kind, index, n)
	}
	switch kind {
	case KindRectangle:
		return d.Rectangles[index].Attributes, nil
	case KindCircle:
		return d.Circles[index].Attributes, nil
	case KindPath:
		return d.Paths[index].Attributes, nil
	case KindGroup:
		return d.Groups[index].Attributes, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}
