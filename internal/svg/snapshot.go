package svg

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeSnapshot serializes the full document, attribute stores and nested
// groups included, as MessagePack.
func EncodeSnapshot(doc *Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot restores a document written by EncodeSnapshot. The result
// is validated before it is returned.
func DecodeSnapshot(data []byte) (*Document, error) {
	var doc Document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrParse, err)
	}
	normalize(&doc)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// normalize replaces nil collections with empty ones throughout the tree.
func normalize(doc *Document) {
	root := Group{Rectangles: doc.Rectangles, Circles: doc.Circles, Paths: doc.Paths, Groups: doc.Groups, Attributes: doc.Attributes}
	normalizeGroup(&root)
	doc.Rectangles, doc.Circles, doc.Paths, doc.Groups, doc.Attributes = root.Rectangles, root.Circles, root.Paths, root.Groups, root.Attributes
}

func normalizeGroup(g *Group) {
	if g.Rectangles == nil {
		g.Rectangles = []Rectangle{}
	}
	if g.Circles == nil {
		g.Circles = []Circle{}
	}
	if g.Paths == nil {
		g.Paths = []Path{}
	}
	if g.Groups == nil {
		g.Groups = []Group{}
	}
	if g.Attributes == nil {
		g.Attributes = []Attribute{}
	}
	for i := range g.Rectangles {
		if g.Rectangles[i].Attributes == nil {
			g.Rectangles[i].Attributes = []Attribute{}
		}
	}
	for i := range g.Circles {
		if g.Circles[i].Attributes == nil {
			g.Circles[i].Attributes = []Attribute{}
		}
	}
	for i := range g.Paths {
		if g.Paths[i].Attributes == nil {
			g.Paths[i].Attributes = []Attribute{}
		}
	}
	for i := range g.Groups {
		normalizeGroup(&g.Groups[i])
	}
}
