package svg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectors(t *testing.T) {
	doc := sampleDocument()

	rects := CollectRectangles(doc)
	if assert.Len(t, rects, 3) {
		assert.Equal(t, "cm", rects[0].Units)
		assert.Equal(t, "mm", rects[2].Units)
	}
	assert.Len(t, CollectCircles(doc), 2)
	assert.Len(t, CollectPaths(doc), 2)
	assert.Len(t, CollectGroups(doc), 3)

	// Pointers alias the tree.
	rects[2].Width = 99
	assert.Equal(t, 99.0, doc.Groups[0].Rectangles[0].Width)
}

func TestCounts(t *testing.T) {
	doc := sampleDocument()
	assert.Equal(t, Counts{Rectangles: 2, Circles: 1, Paths: 1, Groups: 1}, TopLevelCounts(doc))
	assert.Equal(t, Counts{Rectangles: 3, Circles: 2, Paths: 2, Groups: 3}, DeepCounts(doc))
	assert.Equal(t, Counts{}, DeepCounts(nil))
	assert.Empty(t, CollectPaths(nil))
}

func TestCloneIsDeep(t *testing.T) {
	doc := sampleDocument()
	copied := doc.Clone()

	copied.Groups[0].Groups[0].Attributes[0].Value = "changed"
	copied.Rectangles[0].Attributes = append(copied.Rectangles[0].Attributes, Attribute{Name: "x2", Value: "1"})

	assert.Equal(t, "inner", doc.Groups[0].Groups[0].Attributes[0].Value)
	assert.Len(t, doc.Rectangles[0].Attributes, 1)
}
