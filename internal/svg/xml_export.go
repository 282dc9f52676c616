package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

var (
	rectFields   = map[string]bool{"x": true, "y": true, "width": true, "height": true, "units": true}
	circleFields = map[string]bool{"cx": true, "cy": true, "r": true, "units": true}
	pathFields   = map[string]bool{"d": true}
	rootFields   = map[string]bool{"xmlns": true}
)

func addAttr(attrs *[]xml.Attr, name, value string) {
	*attrs = append(*attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// addExtra appends the attribute store, skipping names owned by a field.
func addExtra(attrs *[]xml.Attr, extra []Attribute, reserved map[string]bool) {
	for _, a := range extra {
		if reserved[a.Name] {
			continue
		}
		addAttr(attrs, a.Name, a.Value)
	}
}

// ExportXML writes doc as an indented UTF-8 SVG document. The document is
// expected to be structurally valid; it is not checked here.
func ExportXML(w io.Writer, doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: missing document", ErrStructure)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "svg"}}
	addAttr(&root.Attr, "xmlns", doc.Namespace)
	addExtra(&root.Attr, doc.Attributes, rootFields)
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	if doc.Title != "" {
		if err := encodeText(enc, "title", doc.Title); err != nil {
			return err
		}
	}
	if doc.Description != "" {
		if err := encodeText(enc, "desc", doc.Description); err != nil {
			return err
		}
	}
	if err := encodeMembers(enc, doc.Rectangles, doc.Circles, doc.Paths, doc.Groups); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// MarshalXML returns the exported document as bytes.
func MarshalXML(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := ExportXML(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeText(enc *xml.Encoder, name, text string) error {
	se := xml.StartElement{Name: xml.Name{Local: name}}
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return enc.EncodeToken(se.End())
}

func encodeEmpty(enc *xml.Encoder, se xml.StartElement) error {
	if err := enc.EncodeToken(se); err != nil {
		return err
	}
	return enc.EncodeToken(se.End())
}

func encodeMembers(enc *xml.Encoder, rects []Rectangle, circles []Circle, paths []Path, groups []Group) error {
	for i := range rects {
		r := &rects[i]
		se := xml.StartElement{Name: xml.Name{Local: "rect"}}
		addAttr(&se.Attr, "x", formatLength(r.X, r.Units))
		addAttr(&se.Attr, "y", formatLength(r.Y, r.Units))
		addAttr(&se.Attr, "width", formatLength(r.Width, r.Units))
		addAttr(&se.Attr, "height", formatLength(r.Height, r.Units))
		addExtra(&se.Attr, r.Attributes, rectFields)
		if err := encodeEmpty(enc, se); err != nil {
			return err
		}
	}
	for i := range circles {
		c := &circles[i]
		se := xml.StartElement{Name: xml.Name{Local: "circle"}}
		addAttr(&se.Attr, "cx", formatLength(c.CX, c.Units))
		addAttr(&se.Attr, "cy", formatLength(c.CY, c.Units))
		addAttr(&se.Attr, "r", formatLength(c.R, c.Units))
		addExtra(&se.Attr, c.Attributes, circleFields)
		if err := encodeEmpty(enc, se); err != nil {
			return err
		}
	}
	for i := range paths {
		p := &paths[i]
		se := xml.StartElement{Name: xml.Name{Local: "path"}}
		addAttr(&se.Attr, "d", p.Data)
		addExtra(&se.Attr, p.Attributes, pathFields)
		if err := encodeEmpty(enc, se); err != nil {
			return err
		}
	}
	for i := range groups {
		g := &groups[i]
		se := xml.StartElement{Name: xml.Name{Local: "g"}}
		addExtra(&se.Attr, g.Attributes, nil)
		if err := enc.EncodeToken(se); err != nil {
			return err
		}
		if err := encodeMembers(enc, g.Rectangles, g.Circles, g.Paths, g.Groups); err != nil {
			return err
		}
		if err := enc.EncodeToken(se.End()); err != nil {
			return err
		}
	}
	return nil
}
