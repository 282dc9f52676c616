package models

import (
	"fmt"
	"strings"
)

// EditRules restricts what the HTTP editing surface may change in a document.
// An empty AllowedUnits list allows any unit; MaxAttributes and
// MaxScaleFactor of zero mean no limit.
type EditRules struct {
	AllowedUnits        []string `json:"allowedUnits" yaml:"allowed_units"`
	ProtectedAttributes []string `json:"protectedAttributes" yaml:"protected_attributes"`
	MaxAttributes       int      `json:"maxAttributes" yaml:"max_attributes"`
	MaxScaleFactor      float64  `json:"maxScaleFactor" yaml:"max_scale_factor"`
}

// DefaultEditRules returns the rules used when no rules file exists.
func DefaultEditRules() *EditRules {
	return &EditRules{
		AllowedUnits:        []string{"px", "pt", "pc", "mm", "cm", "in", "em", "ex", "%"},
		ProtectedAttributes: []string{"xmlns"},
		MaxAttributes:       64,
		MaxScaleFactor:      100,
	}
}

// Validate checks the rules themselves.
func (r *EditRules) Validate() error {
	if r.MaxAttributes < 0 {
		return fmt.Errorf("max_attributes must not be negative")
	}
	if r.MaxScaleFactor < 0 {
		return fmt.Errorf("max_scale_factor must not be negative")
	}
	for _, u := range r.AllowedUnits {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("allowed_units contains an empty entry")
		}
	}
	return nil
}

// AllowsUnits reports whether shapes may use units. No unit is always allowed.
func (r *EditRules) AllowsUnits(units string) bool {
	if units == "" || len(r.AllowedUnits) == 0 {
		return true
	}
	for _, u := range r.AllowedUnits {
		if u == units {
			return true
		}
	}
	return false
}

// IsProtected reports whether the attribute name may not be set over HTTP.
func (r *EditRules) IsProtected(name string) bool {
	for _, p := range r.ProtectedAttributes {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// AllowsScale reports whether factor is within the configured limit.
func (r *EditRules) AllowsScale(factor float64) bool {
	return r.MaxScaleFactor == 0 || factor <= r.MaxScaleFactor
}
