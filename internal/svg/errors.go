package svg

import "errors"

// Error kinds. Operations wrap one of these so callers can use errors.Is.
var (
	ErrIO          = errors.New("svg: i/o failure")
	ErrParse       = errors.New("svg: parse error")
	ErrSchema      = errors.New("svg: schema violation")
	ErrStructure   = errors.New("svg: structural violation")
	ErrBounds      = errors.New("svg: index out of range")
	ErrUnknownKind = errors.New("svg: unknown element kind")
)
