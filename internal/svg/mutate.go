package svg

import (
	"fmt"
	"math"
)

// SetAttribute sets newAttr on the element of the given kind at index. A
// same-named attribute is updated in place, otherwise newAttr is appended.
// Names matching a dedicated field (x, width, r, d, units, ...) update that
// field instead. The index is ignored for KindDocument.
//
// Nothing is changed when an error is returned: ErrStructure for an invalid
// attribute or a value that would make the element invalid, ErrBounds for a
// bad index and ErrUnknownKind for an unsupported kind.
func SetAttribute(doc *Document, kind Kind, index int, newAttr Attribute) error {
	if doc == nil {
		return violation("", "missing document")
	}
	if err := newAttr.Validate(); err != nil {
		return err
	}
	if kind == KindDocument {
		if newAttr.Name == "xmlns" {
			doc.Namespace = newAttr.Value
			return nil
		}
		doc.Attributes = upsert(doc.Attributes, newAttr)
		return nil
	}

	n, err := doc.Len(kind)
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return fmt.Errorf("%w: %v index %d, have %d", ErrBounds, kind, index, n)
	}

	switch kind {
	case KindRectangle:
		candidate := doc.Rectangles[index].Clone()
		if err := candidate.apply(newAttr); err != nil {
			return err
		}
		if err := candidate.Validate(); err != nil {
			return err
		}
		doc.Rectangles[index] = candidate
	case KindCircle:
		candidate := doc.Circles[index].Clone()
		if err := candidate.apply(newAttr); err != nil {
			return err
		}
		if err := candidate.Validate(); err != nil {
			return err
		}
		doc.Circles[index] = candidate
	case KindPath:
		candidate := doc.Paths[index].Clone()
		if newAttr.Name == "d" {
			candidate.Data = newAttr.Value
		} else {
			candidate.Attributes = upsert(candidate.Attributes, newAttr)
		}
		if err := candidate.Validate(); err != nil {
			return err
		}
		doc.Paths[index] = candidate
	case KindGroup:
		doc.Groups[index].Attributes = upsert(doc.Groups[index].Attributes, newAttr)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return nil
}

func (r *Rectangle) apply(a Attribute) error {
	var target *float64
	switch a.Name {
	case "x":
		target = &r.X
	case "y":
		target = &r.Y
	case "width":
		target = &r.Width
	case "height":
		target = &r.Height
	case "units":
		r.Units = a.Value
		return nil
	default:
		r.Attributes = upsert(r.Attributes, a)
		return nil
	}
	return setLength(target, &r.Units, a)
}

func (c *Circle) apply(a Attribute) error {
	var target *float64
	switch a.Name {
	case "cx":
		target = &c.CX
	case "cy":
		target = &c.CY
	case "r":
		target = &c.R
	case "units":
		c.Units = a.Value
		return nil
	default:
		c.Attributes = upsert(c.Attributes, a)
		return nil
	}
	return setLength(target, &c.Units, a)
}

func setLength(target *float64, units *string, a Attribute) error {
	v, unit, ok := parseLength(a.Value)
	if !ok {
		return violation("", "attribute %q is not a number: %q", a.Name, a.Value)
	}
	*target = v
	if unit != "" {
		*units = unit
	}
	return nil
}

// AddComponent appends a copy of c to the matching top-level collection of
// doc. Invalid components are rejected with ErrStructure and doc is left
// unchanged.
func AddComponent(doc *Document, c Component) error {
	if doc == nil {
		return violation("", "missing document")
	}
	if c == nil {
		return violation("", "missing component")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	switch v := c.(type) {
	case *Rectangle:
		doc.Rectangles = append(doc.Rectangles, v.Clone())
	case *Circle:
		doc.Circles = append(doc.Circles, v.Clone())
	case *Path:
		doc.Paths = append(doc.Paths, v.Clone())
	case *Group:
		doc.Groups = append(doc.Groups, v.Clone())
	default:
		return fmt.Errorf("%w: %T", ErrUnknownKind, c)
	}
	return nil
}

// SetTitle replaces the document title.
func SetTitle(doc *Document, title string) error {
	if doc == nil {
		return violation("", "missing document")
	}
	if !ValidText(title) {
		return violation("", "title has invalid characters")
	}
	doc.Title = title
	return nil
}

// SetDescription replaces the document description.
func SetDescription(doc *Document, description string) error {
	if doc == nil {
		return violation("", "missing document")
	}
	if !ValidText(description) {
		return violation("", "description has invalid characters")
	}
	doc.Description = description
	return nil
}

// ScaleShapes multiplies the size of every top-level rectangle (width and
// height) or circle (radius) by factor. The scaled shapes are validated
// before any of them replaces the original, so a factor that overflows a
// size leaves doc unchanged.
func ScaleShapes(doc *Document, kind Kind, factor float64) error {
	if doc == nil {
		return violation("", "missing document")
	}
	if !(factor > 0) || math.IsInf(factor, 0) {
		return violation("", "scale factor must be positive and finite, got %g", factor)
	}
	switch kind {
	case KindRectangle:
		scaled := make([]Rectangle, len(doc.Rectangles))
		for i := range doc.Rectangles {
			scaled[i] = doc.Rectangles[i].Clone()
			scaled[i].Width *= factor
			scaled[i].Height *= factor
			if err := scaled[i].validate(fmt.Sprintf("rectangles[%d]", i)); err != nil {
				return err
			}
		}
		copy(doc.Rectangles, scaled)
	case KindCircle:
		scaled := make([]Circle, len(doc.Circles))
		for i := range doc.Circles {
			scaled[i] = doc.Circles[i].Clone()
			scaled[i].R *= factor
			if err := scaled[i].validate(fmt.Sprintf("circles[%d]", i)); err != nil {
				return err
			}
		}
		copy(doc.Circles, scaled)
	default:
		return fmt.Errorf("%w: cannot scale %v", ErrUnknownKind, kind)
	}
	return nil
}
