package svg

// CollectRectangles returns pointers to every rectangle in the tree, the
// document's own first and then each group's in order, depth first.
func CollectRectangles(d *Document) []*Rectangle {
	var out []*Rectangle
	walk(d, func(rects []Rectangle, _ []Circle, _ []Path, _ []Group) {
		for i := range rects {
			out = append(out, &rects[i])
		}
	})
	return out
}

// CollectCircles returns every circle in the tree.
func CollectCircles(d *Document) []*Circle {
	var out []*Circle
	walk(d, func(_ []Rectangle, circles []Circle, _ []Path, _ []Group) {
		for i := range circles {
			out = append(out, &circles[i])
		}
	})
	return out
}

// CollectPaths returns every path in the tree.
func CollectPaths(d *Document) []*Path {
	var out []*Path
	walk(d, func(_ []Rectangle, _ []Circle, paths []Path, _ []Group) {
		for i := range paths {
			out = append(out, &paths[i])
		}
	})
	return out
}

// CollectGroups returns every group in the tree, nested ones included.
func CollectGroups(d *Document) []*Group {
	var out []*Group
	walk(d, func(_ []Rectangle, _ []Circle, _ []Path, groups []Group) {
		for i := range groups {
			out = append(out, &groups[i])
		}
	})
	return out
}

type visitFunc func(rects []Rectangle, circles []Circle, paths []Path, groups []Group)

func walk(d *Document, visit visitFunc) {
	if d == nil {
		return
	}
	visit(d.Rectangles, d.Circles, d.Paths, d.Groups)
	for i := range d.Groups {
		walkGroup(&d.Groups[i], visit)
	}
}

func walkGroup(g *Group, visit visitFunc) {
	visit(g.Rectangles, g.Circles, g.Paths, g.Groups)
	for i := range g.Groups {
		walkGroup(&g.Groups[i], visit)
	}
}

// Counts holds the number of elements of each kind.
type Counts struct {
	Rectangles int `json:"numRects"`
	Circles    int `json:"numCircs"`
	Paths      int `json:"numPaths"`
	Groups     int `json:"numGroups"`
}

// TopLevelCounts counts only the document's own collections.
func TopLevelCounts(d *Document) Counts {
	if d == nil {
		return Counts{}
	}
	return Counts{
		Rectangles: len(d.Rectangles),
		Circles:    len(d.Circles),
		Paths:      len(d.Paths),
		Groups:     len(d.Groups),
	}
}

// DeepCounts counts every element in the tree.
func DeepCounts(d *Document) Counts {
	var c Counts
	walk(d, func(rects []Rectangle, circles []Circle, paths []Path, groups []Group) {
		c.Rectangles += len(rects)
		c.Circles += len(circles)
		c.Paths += len(paths)
		c.Groups += len(groups)
	})
	return c
}
