package svg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// fieldKind says how a JSON value is read into a field.
type fieldKind int

const (
	numberField fieldKind = iota
	textField
)

// fieldRule is one row of a defaulting policy: a required field that is
// missing or has the wrong type fails the parse, an optional one falls back
// to its zero value (0 or "").
type fieldRule struct {
	key      string
	aliases  []string
	kind     fieldKind
	required bool
}

var (
	documentPolicy = []fieldRule{
		{key: "title", kind: textField},
		{key: "descr", aliases: []string{"description"}, kind: textField},
	}
	rectanglePolicy = []fieldRule{
		{key: "x", kind: numberField, required: true},
		{key: "y", kind: numberField, required: true},
		{key: "w", aliases: []string{"width"}, kind: numberField, required: true},
		{key: "h", aliases: []string{"height"}, kind: numberField, required: true},
		{key: "units", kind: textField},
	}
	circlePolicy = []fieldRule{
		{key: "cx", kind: numberField, required: true},
		{key: "cy", kind: numberField, required: true},
		{key: "r", kind: numberField, required: true},
		{key: "units", kind: textField},
	}
	pathPolicy = []fieldRule{
		{key: "d", kind: textField, required: true},
	}
)

// jsonObject is a flat JSON object indexed by key. Values are kept raw until
// a policy asks for them.
type jsonObject map[string]json.RawMessage

func readObject(text string) (jsonObject, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var obj jsonObject
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected an object", ErrParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrParse)
	}
	return obj, nil
}

func (o jsonObject) lookup(rule fieldRule) (json.RawMessage, bool) {
	if raw, ok := o[rule.key]; ok {
		return raw, true
	}
	for _, alias := range rule.aliases {
		if raw, ok := o[alias]; ok {
			return raw, true
		}
	}
	return nil, false
}

// fieldValues holds what a policy read: numbers and texts by primary key.
type fieldValues struct {
	numbers map[string]float64
	texts   map[string]string
}

func (o jsonObject) apply(policy []fieldRule) (fieldValues, error) {
	vals := fieldValues{numbers: map[string]float64{}, texts: map[string]string{}}
	for _, rule := range policy {
		raw, found := o.lookup(rule)
		switch rule.kind {
		case numberField:
			v, ok := decodeNumber(raw)
			if !found || !ok {
				if rule.required {
					return vals, fmt.Errorf("%w: missing or invalid number %q", ErrParse, rule.key)
				}
				continue
			}
			vals.numbers[rule.key] = v
		case textField:
			v, ok := decodeText(raw)
			if !found || !ok {
				if rule.required {
					return vals, fmt.Errorf("%w: missing or invalid text %q", ErrParse, rule.key)
				}
				continue
			}
			vals.texts[rule.key] = v
		}
	}
	return vals, nil
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return 0, false
	}
	n, ok := value.(json.Number)
	if !ok {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// decodeText accepts a JSON string made of valid text only.
func decodeText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	if !ValidText(s) {
		return "", false
	}
	return s, true
}

func parsed(err error) error {
	return fmt.Errorf("%w: %w", ErrParse, err)
}

// DocumentFromJSON builds an empty document from {"title":...,"descr":...}.
// The namespace is always the default one.
func DocumentFromJSON(text string) (*Document, error) {
	obj, err := readObject(text)
	if err != nil {
		return nil, err
	}
	vals, err := obj.apply(documentPolicy)
	if err != nil {
		return nil, err
	}
	doc := NewDocument()
	doc.Title = vals.texts["title"]
	doc.Description = vals.texts["descr"]
	if err := doc.Validate(); err != nil {
		return nil, parsed(err)
	}
	return doc, nil
}

// RectangleFromJSON builds a rectangle from {"x","y","w","h","units"}.
func RectangleFromJSON(text string) (*Rectangle, error) {
	obj, err := readObject(text)
	if err != nil {
		return nil, err
	}
	vals, err := obj.apply(rectanglePolicy)
	if err != nil {
		return nil, err
	}
	r := NewRectangle(vals.numbers["x"], vals.numbers["y"], vals.numbers["w"], vals.numbers["h"], vals.texts["units"])
	if err := r.Validate(); err != nil {
		return nil, parsed(err)
	}
	return r, nil
}

// CircleFromJSON builds a circle from {"cx","cy","r","units"}.
func CircleFromJSON(text string) (*Circle, error) {
	obj, err := readObject(text)
	if err != nil {
		return nil, err
	}
	vals, err := obj.apply(circlePolicy)
	if err != nil {
		return nil, err
	}
	c := NewCircle(vals.numbers["cx"], vals.numbers["cy"], vals.numbers["r"], vals.texts["units"])
	if err := c.Validate(); err != nil {
		return nil, parsed(err)
	}
	return c, nil
}

// PathFromJSON builds a path from {"d":...}.
func PathFromJSON(text string) (*Path, error) {
	obj, err := readObject(text)
	if err != nil {
		return nil, err
	}
	vals, err := obj.apply(pathPolicy)
	if err != nil {
		return nil, err
	}
	p := NewPath(vals.texts["d"])
	if err := p.Validate(); err != nil {
		return nil, parsed(err)
	}
	return p, nil
}

// ComponentFromJSON dispatches to the fromJSON bridge for kind.
func ComponentFromJSON(kind Kind, text string) (Component, error) {
	switch kind {
	case KindRectangle:
		return RectangleFromJSON(text)
	case KindCircle:
		return CircleFromJSON(text)
	case KindPath:
		return PathFromJSON(text)
	}
	return nil, fmt.Errorf("%w: no JSON form for %v", ErrUnknownKind, kind)
}
