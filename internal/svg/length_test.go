package svg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		input    string
		want     float64
		wantUnit string
		wantOK   bool
	}{
		{"12", 12, "", true},
		{"12.5cm", 12.5, "cm", true},
		{" -3px ", -3, "px", true},
		{".5in", 0.5, "in", true},
		{"5.", 5, "", true},
		{"1e3mm", 1000, "mm", true},
		{"2em", 2, "em", true},
		{"50%", 50, "%", true},
		{"+7", 7, "", true},
		{"px", 0, "", false},
		{"", 0, "", false},
		{"-", 0, "", false},
		{".", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, unit, ok := parseLength(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantUnit, unit)
		})
	}
}

func TestFormatLengthParsesBack(t *testing.T) {
	for _, v := range []float64{0, 1, -2.5, 0.1, 1.0 / 3, 123456789.125, 1e-7} {
		got, unit, ok := parseLength(formatLength(v, "cm"))
		assert.True(t, ok)
		assert.Equal(t, v, got)
		assert.Equal(t, "cm", unit)
	}
}
