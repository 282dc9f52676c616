package svg

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidText reports whether s is valid UTF-8 made of XML characters, without
// control characters. XML whitespace (tab, newline, carriage return) is
// allowed since path data and free text routinely span lines.
func ValidText(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch r {
		case '\t', '\n', '\r':
			continue
		}
		if unicode.IsControl(r) || !isXMLChar(r) {
			return false
		}
	}
	return true
}

// isXMLChar is the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// ValidName reports whether s can be written as an XML attribute name: a
// local name, optionally behind a single prefix ("xlink:href").
func ValidName(s string) bool {
	prefix, local, found := strings.Cut(s, ":")
	if !found {
		return isNCName(s)
	}
	return isNCName(prefix) && isNCName(local)
}

// isNCName is an XML Name without colons.
func isNCName(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isNameStart(r) {
				return false
			}
			continue
		}
		if !isNameChar(r) {
			return false
		}
	}
	return true
}

func isNameStart(r rune) bool {
	switch {
	case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 0xC0 && r <= 0xD6, r >= 0xD8 && r <= 0xF6, r >= 0xF8 && r <= 0x2FF:
		return true
	case r >= 0x370 && r <= 0x37D, r >= 0x37F && r <= 0x1FFF, r >= 0x200C && r <= 0x200D:
		return true
	case r >= 0x2070 && r <= 0x218F, r >= 0x2C00 && r <= 0x2FEF, r >= 0x3001 && r <= 0xD7FF:
		return true
	case r >= 0xF900 && r <= 0xFDCF, r >= 0xFDF0 && r <= 0xFFFD, r >= 0x10000 && r <= 0xEFFFF:
		return true
	}
	return false
}

func isNameChar(r rune) bool {
	switch {
	case isNameStart(r):
		return true
	case r == '-', r == '.', r >= '0' && r <= '9', r == 0xB7:
		return true
	case r >= 0x300 && r <= 0x36F, r >= 0x203F && r <= 0x2040:
		return true
	}
	return false
}

// validUnits accepts an empty string or a run of letters and percent signs,
// so a unit suffix can never be mistaken for part of the number it follows.
func validUnits(s string) bool {
	for _, r := range s {
		if r != '%' && !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func violation(path, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if path != "" {
		msg = path + ": " + msg
	}
	return fmt.Errorf("%w: %s", ErrStructure, msg)
}

// Validate checks that the name is a valid XML attribute name and the value
// is non-empty valid text.
func (a *Attribute) Validate() error {
	return a.validate("")
}

func (a *Attribute) validate(path string) error {
	if a == nil {
		return violation(path, "missing attribute")
	}
	if a.Name == "" {
		return violation(path, "empty attribute name")
	}
	if a.Value == "" {
		return violation(path, "attribute %q has an empty value", a.Name)
	}
	if !ValidName(a.Name) {
		return violation(path, "attribute name %q is not a valid XML name", a.Name)
	}
	if !ValidText(a.Value) {
		return violation(path, "attribute %q value has invalid characters", a.Name)
	}
	return nil
}

func validateAttributes(path string, attrs []Attribute) error {
	seen := make(map[string]bool, len(attrs))
	for i := range attrs {
		at := fmt.Sprintf("%sattributes[%d]", prefix(path), i)
		if err := attrs[i].validate(at); err != nil {
			return err
		}
		if seen[attrs[i].Name] {
			return violation(at, "duplicate attribute %q", attrs[i].Name)
		}
		seen[attrs[i].Name] = true
	}
	return nil
}

func prefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "."
}

// Validate checks the rectangle's size and attributes.
func (r *Rectangle) Validate() error {
	return r.validate("")
}

func (r *Rectangle) validate(path string) error {
	if r == nil {
		return violation(path, "missing rectangle")
	}
	if !finite(r.X, r.Y, r.Width, r.Height) {
		return violation(path, "non-finite coordinate")
	}
	if r.Width < 0 {
		return violation(path, "negative width %g", r.Width)
	}
	if r.Height < 0 {
		return violation(path, "negative height %g", r.Height)
	}
	if !validUnits(r.Units) {
		return violation(path, "invalid units %q", r.Units)
	}
	return validateAttributes(path, r.Attributes)
}

// Validate checks the circle's radius and attributes.
func (c *Circle) Validate() error {
	return c.validate("")
}

func (c *Circle) validate(path string) error {
	if c == nil {
		return violation(path, "missing circle")
	}
	if !finite(c.CX, c.CY, c.R) {
		return violation(path, "non-finite coordinate")
	}
	if c.R < 0 {
		return violation(path, "negative radius %g", c.R)
	}
	if !validUnits(c.Units) {
		return violation(path, "invalid units %q", c.Units)
	}
	return validateAttributes(path, c.Attributes)
}

// Validate checks the path data and attributes.
func (p *Path) Validate() error {
	return p.validate("")
}

func (p *Path) validate(path string) error {
	if p == nil {
		return violation(path, "missing path")
	}
	if p.Data == "" {
		return violation(path, "empty path data")
	}
	if !ValidText(p.Data) {
		return violation(path, "path data has invalid characters")
	}
	return validateAttributes(path, p.Attributes)
}

// Validate checks the group and, recursively, everything it owns.
func (g *Group) Validate() error {
	return g.validate("")
}

func (g *Group) validate(path string) error {
	if g == nil {
		return violation(path, "missing group")
	}
	return validateMembers(path, g.Rectangles, g.Circles, g.Paths, g.Groups, g.Attributes)
}

func validateMembers(path string, rects []Rectangle, circles []Circle, paths []Path, groups []Group, attrs []Attribute) error {
	p := prefix(path)
	for i := range rects {
		if err := rects[i].validate(fmt.Sprintf("%srectangles[%d]", p, i)); err != nil {
			return err
		}
	}
	for i := range circles {
		if err := circles[i].validate(fmt.Sprintf("%scircles[%d]", p, i)); err != nil {
			return err
		}
	}
	for i := range paths {
		if err := paths[i].validate(fmt.Sprintf("%spaths[%d]", p, i)); err != nil {
			return err
		}
	}
	for i := range groups {
		if err := groups[i].validate(fmt.Sprintf("%sgroups[%d]", p, i)); err != nil {
			return err
		}
	}
	return validateAttributes(path, attrs)
}

// Validate checks the whole document. A nil document, or one that was never
// initialized (no namespace or a nil collection), is invalid.
func (d *Document) Validate() error {
	if d == nil {
		return violation("", "missing document")
	}
	if d.Rectangles == nil || d.Circles == nil || d.Paths == nil || d.Groups == nil || d.Attributes == nil {
		return violation("", "uninitialized collection")
	}
	if d.Namespace == "" {
		return violation("", "empty namespace")
	}
	if !ValidText(d.Namespace) {
		return violation("", "namespace has invalid characters")
	}
	if !ValidText(d.Title) {
		return violation("", "title has invalid characters")
	}
	if !ValidText(d.Description) {
		return violation("", "description has invalid characters")
	}
	return validateMembers("", d.Rectangles, d.Circles, d.Paths, d.Groups, d.Attributes)
}

// IsValid reports whether the document passes structural validation.
func IsValid(d *Document) bool {
	return d.Validate() == nil
}
