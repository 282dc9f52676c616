package svg

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The summaries below are lossy: attribute stores are reduced to a count and
// groups to a child count. A nil entity renders as "{}" and a nil or empty
// list as "[]".

// maxPathSummary is how many characters of path data a summary keeps.
const maxPathSummary = 64

type summary struct {
	b strings.Builder
	n int
}

func (s *summary) sep() {
	if s.n == 0 {
		s.b.WriteByte('{')
	} else {
		s.b.WriteByte(',')
	}
	s.n++
}

func (s *summary) key(k string) {
	s.sep()
	s.b.WriteByte('"')
	s.b.WriteString(k)
	s.b.WriteString(`":`)
}

func (s *summary) number(k string, v float64) {
	s.key(k)
	s.b.WriteString(strconv.FormatFloat(v, 'f', 2, 64))
}

func (s *summary) integer(k string, v int) {
	s.key(k)
	s.b.WriteString(strconv.Itoa(v))
}

func (s *summary) text(k, v string) {
	s.key(k)
	quoted, _ := json.Marshal(v)
	s.b.Write(quoted)
}

func (s *summary) String() string {
	if s.n == 0 {
		return "{}"
	}
	s.b.WriteByte('}')
	return s.b.String()
}

// AttributeToJSON renders {"name":...,"value":...}.
func AttributeToJSON(a *Attribute) string {
	if a == nil {
		return "{}"
	}
	var s summary
	s.text("name", a.Name)
	s.text("value", a.Value)
	return s.String()
}

// RectangleToJSON renders {"x","y","w","h","numAttr","units"} with numbers
// rounded to two decimals.
func RectangleToJSON(r *Rectangle) string {
	if r == nil {
		return "{}"
	}
	var s summary
	s.number("x", r.X)
	s.number("y", r.Y)
	s.number("w", r.Width)
	s.number("h", r.Height)
	s.integer("numAttr", len(r.Attributes))
	s.text("units", r.Units)
	return s.String()
}

// CircleToJSON renders {"cx","cy","r","numAttr","units"}.
func CircleToJSON(c *Circle) string {
	if c == nil {
		return "{}"
	}
	var s summary
	s.number("cx", c.CX)
	s.number("cy", c.CY)
	s.number("r", c.R)
	s.integer("numAttr", len(c.Attributes))
	s.text("units", c.Units)
	return s.String()
}

// PathToJSON renders {"d","numAttr"} with the data cut to 64 characters.
func PathToJSON(p *Path) string {
	if p == nil {
		return "{}"
	}
	data := p.Data
	if runes := []rune(data); len(runes) > maxPathSummary {
		data = string(runes[:maxPathSummary])
	}
	var s summary
	s.text("d", data)
	s.integer("numAttr", len(p.Attributes))
	return s.String()
}

// GroupToJSON renders {"children","numAttr"}; children counts direct
// members only.
func GroupToJSON(g *Group) string {
	if g == nil {
		return "{}"
	}
	var s summary
	s.integer("children", g.ChildCount())
	s.integer("numAttr", len(g.Attributes))
	return s.String()
}

// DocumentToJSON renders the sizes of the four top-level collections.
func DocumentToJSON(d *Document) string {
	if d == nil {
		return "{}"
	}
	c := TopLevelCounts(d)
	var s summary
	s.integer("numRect", c.Rectangles)
	s.integer("numCirc", c.Circles)
	s.integer("numPaths", c.Paths)
	s.integer("numGroups", c.Groups)
	return s.String()
}

func listToJSON(n int, item func(i int) string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(item(i))
	}
	b.WriteByte(']')
	return b.String()
}

// AttributeListToJSON renders a list of attribute objects.
func AttributeListToJSON(list []Attribute) string {
	return listToJSON(len(list), func(i int) string { return AttributeToJSON(&list[i]) })
}

// RectangleListToJSON renders a list of rectangle summaries.
func RectangleListToJSON(list []Rectangle) string {
	return listToJSON(len(list), func(i int) string { return RectangleToJSON(&list[i]) })
}

// CircleListToJSON renders a list of circle summaries.
func CircleListToJSON(list []Circle) string {
	return listToJSON(len(list), func(i int) string { return CircleToJSON(&list[i]) })
}

// PathListToJSON renders a list of path summaries.
func PathListToJSON(list []Path) string {
	return listToJSON(len(list), func(i int) string { return PathToJSON(&list[i]) })
}

// GroupListToJSON renders a list of group summaries.
func GroupListToJSON(list []Group) string {
	return listToJSON(len(list), func(i int) string { return GroupToJSON(&list[i]) })
}

// The collected forms render the pointer lists returned by the Collect
// functions.

func RectanglePtrListToJSON(list []*Rectangle) string {
	return listToJSON(len(list), func(i int) string { return RectangleToJSON(list[i]) })
}

func CirclePtrListToJSON(list []*Circle) string {
	return listToJSON(len(list), func(i int) string { return CircleToJSON(list[i]) })
}

func PathPtrListToJSON(list []*Path) string {
	return listToJSON(len(list), func(i int) string { return PathToJSON(list[i]) })
}

func GroupPtrListToJSON(list []*Group) string {
	return listToJSON(len(list), func(i int) string { return GroupToJSON(list[i]) })
}
