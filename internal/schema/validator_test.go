package schema

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schemaFile = "testdata/svg.xsd"

const validSVG = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="100">
  <title>ok</title>
  <rect x="1" y="2cm" width="3" height="4" fill="red"></rect>
  <g id="a">
    <circle cx="5" cy="5" r="2.5px"></circle>
    <path d="M0 0 L1 1"></path>
  </g>
  <text x="1">unmodelled elements are accepted</text>
</svg>`

func TestMain(m *testing.M) {
	code := m.Run()
	Shutdown()
	os.Exit(code)
}

func TestValidate(t *testing.T) {
	v, err := Load(schemaFile)
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, schemaFile, v.Path())

	tests := []struct {
		name    string
		xml     string
		wantErr error
	}{
		{"valid document", validSVG, nil},
		{"negative size is left to the structural check", `<svg xmlns="http://www.w3.org/2000/svg"><rect x="0" y="0" width="-5" height="1"/></svg>`, nil},
		{"non-numeric width", `<svg xmlns="http://www.w3.org/2000/svg"><rect width="wide"/></svg>`, ErrViolation},
		{"path without data", `<svg xmlns="http://www.w3.org/2000/svg"><path/></svg>`, ErrViolation},
		{"nested bad circle", `<svg xmlns="http://www.w3.org/2000/svg"><g><g><circle r="x"/></g></g></svg>`, ErrViolation},
		{"wrong namespace", `<svg xmlns="urn:other"/>`, ErrViolation},
		{"foreign root", `<html xmlns="http://www.w3.org/2000/svg"/>`, ErrViolation},
		{"not well-formed", `<svg xmlns="http://www.w3.org/2000/svg"><rect></svg>`, ErrMalformed},
		{"empty input", ``, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate([]byte(tt.xml))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestViolationReportsLine(t *testing.T) {
	doc := "<svg xmlns=\"http://www.w3.org/2000/svg\">\n\n<rect width=\"wide\"/>\n</svg>"
	err := ValidateBytes([]byte(doc), schemaFile)
	require.ErrorIs(t, err, ErrViolation)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrLoad)

	_, err = Load(filepath.Join(t.TempDir(), "missing.xsd"))
	assert.ErrorIs(t, err, ErrLoad)

	broken := filepath.Join(t.TempDir(), "broken.xsd")
	require.NoError(t, os.WriteFile(broken, []byte("<xs:schema"), 0644))
	_, err = Load(broken)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestClosedValidator(t *testing.T) {
	v, err := Load(schemaFile)
	require.NoError(t, err)
	require.NoError(t, v.Close())
	require.NoError(t, v.Close())

	assert.ErrorIs(t, v.Validate([]byte(validSVG)), ErrClosed)
}

func TestConcurrentValidate(t *testing.T) {
	v, err := Load(schemaFile)
	require.NoError(t, err)
	defer v.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- v.Validate([]byte(validSVG))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
