package svg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	doc := NewDocument()
	doc.Title = "  Shapes & more  "
	doc.Description = "line one\nline two"
	doc.Attributes = append(doc.Attributes, Attribute{Name: "viewBox", Value: "0 0 100 100"})

	r := NewRectangle(1.5, 2, 10, 5, "cm")
	r.Attributes = append(r.Attributes, Attribute{Name: "fill", Value: "red"})
	doc.Rectangles = append(doc.Rectangles, *r, *NewRectangle(-3, 0.125, 0, 7, ""))

	c := NewCircle(50, 50, 12.75, "px")
	c.Attributes = append(c.Attributes, Attribute{Name: "stroke", Value: "#000"})
	doc.Circles = append(doc.Circles, *c)

	p := NewPath("M 10 10 L 20 20 <z>")
	p.Attributes = append(p.Attributes, Attribute{Name: "fill-opacity", Value: "0.5"})
	doc.Paths = append(doc.Paths, *p)

	inner := NewGroup()
	inner.Attributes = append(inner.Attributes, Attribute{Name: "id", Value: "inner"})
	inner.Paths = append(inner.Paths, *NewPath("M0 0h1v1z"))
	outer := NewGroup()
	outer.Attributes = append(outer.Attributes, Attribute{Name: "transform", Value: "translate(1,1)"})
	outer.Rectangles = append(outer.Rectangles, *NewRectangle(0, 0, 1, 1, "mm"))
	outer.Circles = append(outer.Circles, *NewCircle(1, 1, 1, ""))
	outer.Groups = append(outer.Groups, *inner, *NewGroup())
	doc.Groups = append(doc.Groups, *outer)
	return doc
}

func TestExportImportRoundTrip(t *testing.T) {
	want := sampleDocument()
	require.NoError(t, want.Validate())

	data, err := MarshalXML(want)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("<?xml")))

	got, err := ImportXMLBytes(data)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripNamesAndText(t *testing.T) {
	want := NewDocument()
	want.Title = "smile \U0001F600 \uFFFD"
	want.Attributes = append(want.Attributes, Attribute{Name: "xmlns:xlink", Value: "http://www.w3.org/1999/xlink"})
	r := NewRectangle(0, 0, 4, 4, "")
	r.Attributes = append(r.Attributes,
		Attribute{Name: "data-x", Value: "v"},
		Attribute{Name: "xlink:href", Value: "#a"},
		Attribute{Name: "café", Value: "crème"},
	)
	want.Rectangles = append(want.Rectangles, *r)
	require.NoError(t, want.Validate())

	data, err := MarshalXML(want)
	require.NoError(t, err)
	got, err := ImportXMLBytes(data)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnwritableContentIsNotValid(t *testing.T) {
	doc := sampleDocument()
	assert.ErrorIs(t, SetAttribute(doc, KindRectangle, 0, Attribute{Name: "data x", Value: "v"}), ErrStructure)
	assert.ErrorIs(t, SetTitle(doc, "a\uFFFEb"), ErrStructure)

	doc.Rectangles[0].Attributes = append(doc.Rectangles[0].Attributes, Attribute{Name: "data x", Value: "v"})
	assert.ErrorIs(t, doc.Validate(), ErrStructure)

	doc = sampleDocument()
	doc.Title = "a\uFFFEb"
	assert.ErrorIs(t, doc.Validate(), ErrStructure)
}

func TestExportEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportXML(&buf, NewDocument()))

	out := buf.String()
	assert.Contains(t, out, `<svg xmlns="http://www.w3.org/2000/svg">`)
	assert.NotContains(t, out, "<title>")
	assert.NotContains(t, out, "<desc>")

	got, err := ImportXML(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(NewDocument(), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExportNilDocument(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, ExportXML(&buf, nil), ErrStructure)
}

func TestImportFields(t *testing.T) {
	const input = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="200">
  <title>Example</title>
  <desc>Two shapes</desc>
  <rect x="1" y="2.5cm" width="30" height="40" rx="3"/>
  <circle cx="5" cy="6" r="7in" fill="blue"/>
  <path d="M0 0 L1 1" xlink:href="#p"/>
</svg>`

	doc, err := ImportXML(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, DefaultNamespace, doc.Namespace)
	assert.Equal(t, "Example", doc.Title)
	assert.Equal(t, "Two shapes", doc.Description)
	assert.Equal(t, []Attribute{
		{Name: "xmlns:xlink", Value: "http://www.w3.org/1999/xlink"},
		{Name: "width", Value: "200"},
	}, doc.Attributes)

	require.Len(t, doc.Rectangles, 1)
	r := doc.Rectangles[0]
	assert.Equal(t, []float64{1, 2.5, 30, 40}, []float64{r.X, r.Y, r.Width, r.Height})
	assert.Equal(t, "cm", r.Units)
	assert.Equal(t, []Attribute{{Name: "rx", Value: "3"}}, r.Attributes)

	require.Len(t, doc.Circles, 1)
	assert.Equal(t, 7.0, doc.Circles[0].R)
	assert.Equal(t, "in", doc.Circles[0].Units)

	require.Len(t, doc.Paths, 1)
	assert.Equal(t, "M0 0 L1 1", doc.Paths[0].Data)
	assert.Equal(t, []Attribute{{Name: "xlink:href", Value: "#p"}}, doc.Paths[0].Attributes)
}

func TestImportExplicitUnits(t *testing.T) {
	doc, err := ImportXMLBytes([]byte(`<svg><rect units="mm" x="1cm" y="0" width="2" height="3"/></svg>`))
	require.NoError(t, err)
	require.Len(t, doc.Rectangles, 1)
	assert.Equal(t, "mm", doc.Rectangles[0].Units)
	assert.Equal(t, 1.0, doc.Rectangles[0].X)
}

func TestImportMissingNamespaceGetsDefault(t *testing.T) {
	doc, err := ImportXMLBytes([]byte(`<svg/>`))
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, doc.Namespace)
	assert.True(t, IsValid(doc))
}

func TestImportUnknownElements(t *testing.T) {
	const input = `<svg xmlns="http://www.w3.org/2000/svg" width="100">
  <defs id="d1"><rect x="1" y="2" width="3" height="4"/></defs>
  <g id="g1"><a href="x" id="ignored"><circle cx="1" cy="1" r="2"/></a></g>
  <text x="5">hello</text>
</svg>`

	doc, err := ImportXMLBytes([]byte(input))
	require.NoError(t, err)

	assert.Len(t, doc.Rectangles, 1)
	assert.Empty(t, doc.Circles)
	assert.Equal(t, []Attribute{
		{Name: "width", Value: "100"},
		{Name: "id", Value: "d1"},
		{Name: "x", Value: "5"},
	}, doc.Attributes)

	require.Len(t, doc.Groups, 1)
	g := doc.Groups[0]
	assert.Len(t, g.Circles, 1)
	assert.Equal(t, []Attribute{
		{Name: "id", Value: "g1"},
		{Name: "href", Value: "x"},
	}, g.Attributes)
}

func TestImportPrefixedRoot(t *testing.T) {
	const input = `<svg:svg xmlns:svg="http://www.w3.org/2000/svg" width="10">
  <svg:title>Prefixed</svg:title>
  <svg:rect x="1" y="2" width="3" height="4"/>
  <svg:g id="g1"><svg:circle cx="1" cy="1" r="2"/><svg:path d="M0 0"/></svg:g>
</svg:svg>`

	doc, err := ImportXMLBytes([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, doc.Namespace)
	assert.Equal(t, "Prefixed", doc.Title)
	assert.Equal(t, []Attribute{
		{Name: "xmlns:svg", Value: DefaultNamespace},
		{Name: "width", Value: "10"},
	}, doc.Attributes)

	require.Len(t, doc.Rectangles, 1)
	assert.Equal(t, 3.0, doc.Rectangles[0].Width)
	assert.Empty(t, doc.Rectangles[0].Attributes)
	require.Len(t, doc.Groups, 1)
	assert.Len(t, doc.Groups[0].Circles, 1)
	assert.Len(t, doc.Groups[0].Paths, 1)
	assert.Equal(t, Counts{Rectangles: 1, Circles: 1, Paths: 1, Groups: 1}, DeepCounts(doc))
}

func TestImportNestedTitleIsNotDocumentTitle(t *testing.T) {
	doc, err := ImportXMLBytes([]byte(`<svg><g><title>inner</title></g><title>outer</title></svg>`))
	require.NoError(t, err)
	assert.Equal(t, "outer", doc.Title)
	require.Len(t, doc.Groups, 1)
}

func TestImportCharset(t *testing.T) {
	input := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><svg><title>caf\xe9</title></svg>")
	doc, err := ImportXMLBytes(input)
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Title)
}

func TestImportMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not xml", "hello"},
		{"mismatched tags", "<svg><rect></svg>"},
		{"unclosed root", "<svg><g>"},
		{"foreign root", "<html><body/></html>"},
		{"unbound root prefix", "<s:svg><s:rect width=\"1\"/></s:svg>"},
		{"root prefix in another namespace", `<s:svg xmlns:s="urn:other"/>`},
		{"two roots", "<svg/><svg/>"},
		{"bad attribute syntax", `<svg width=100/>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ImportXMLBytes([]byte(tt.input))
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}
