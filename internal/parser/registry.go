package parser

import (
	"fmt"
	"strings"
)

// Registry holds the known file formats and picks one for a file.
type Registry struct {
	formats []Format
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry returns a registry with the compressed format checked first.
func NewRegistry() *Registry {
	return &Registry{
		formats: []Format{
			NewCompressedFormat(-1),
			NewPlainFormat(),
		},
	}
}

// GetGlobalRegistry returns the singleton registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a new format to the registry.
func (r *Registry) Register(f Format) {
	r.formats = append(r.formats, f)
}

// FindFormat detects the format of a file from its name and leading bytes.
func (r *Registry) FindFormat(fileName string, head []byte) (Format, error) {
	for _, f := range r.formats {
		if f.Detect(fileName, head) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no suitable format found for file: %s", fileName)
}

// GetFormatByName returns a format by its name.
func (r *Registry) GetFormatByName(name string) (Format, error) {
	name = strings.ToLower(name)
	for _, f := range r.formats {
		if strings.ToLower(f.Name()) == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("format not found: %s", name)
}
