// Package schema checks XML documents against an XSD file using libxml2.
//
// The engine is initialized once per process. Each loaded schema is held by a
// Validator handle which must be closed to release it; ValidateBytes loads,
// uses and releases a handle in one call.
package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	xsdvalidate "github.com/terminalstatic/go-xsd-validate"
)

var (
	// ErrLoad means the schema file could not be read or compiled.
	ErrLoad = errors.New("schema: cannot load schema")
	// ErrMalformed means the document is not well-formed XML.
	ErrMalformed = errors.New("schema: malformed document")
	// ErrViolation means the document is well-formed but does not conform.
	ErrViolation = errors.New("schema: document does not conform")
	// ErrClosed is returned by a Validator after Close.
	ErrClosed = errors.New("schema: validator closed")
)

var engine struct {
	once sync.Once
	err  error
}

func startEngine() error {
	engine.once.Do(func() {
		if err := xsdvalidate.Init(); err != nil {
			engine.err = fmt.Errorf("%w: init libxml2: %v", ErrLoad, err)
		}
	})
	return engine.err
}

// Shutdown releases the engine. Call it once on process exit, after every
// Validator has been closed.
func Shutdown() {
	if engine.err == nil {
		xsdvalidate.Cleanup()
	}
}

// Validator is a compiled schema. It is safe for concurrent use.
type Validator struct {
	path    string
	mu      sync.RWMutex
	handler *xsdvalidate.XsdHandler
}

// Load compiles the XSD at path.
func Load(path string) (*Validator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no schema path", ErrLoad)
	}
	if err := startEngine(); err != nil {
		return nil, err
	}
	handler, err := xsdvalidate.NewXsdHandlerUrl(path, xsdvalidate.ParsErrDefault)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	return &Validator{path: path, handler: handler}, nil
}

// Path returns the schema file the validator was loaded from.
func (v *Validator) Path() string {
	return v.path
}

// Validate checks an in-memory XML document.
func (v *Validator) Validate(xml []byte) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.handler == nil {
		return ErrClosed
	}
	if len(xml) == 0 {
		return fmt.Errorf("%w: empty document", ErrMalformed)
	}
	return classify(v.handler.ValidateMem(xml, xsdvalidate.ValidErrDefault))
}

// Close frees the compiled schema. Closing twice is a no-op.
func (v *Validator) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.handler != nil {
		v.handler.Free()
		v.handler = nil
	}
	return nil
}

// ValidateBytes checks xml against the schema at schemaPath without keeping
// the compiled schema around.
func ValidateBytes(xml []byte, schemaPath string) error {
	v, err := Load(schemaPath)
	if err != nil {
		return err
	}
	defer v.Close()
	return v.Validate(xml)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var verr xsdvalidate.ValidationError
	if errors.As(err, &verr) {
		if len(verr.Errors) > 0 {
			first := verr.Errors[0]
			return fmt.Errorf("%w: line %d: %s", ErrViolation, first.Line, strings.TrimSpace(first.Message))
		}
		return fmt.Errorf("%w: %v", ErrViolation, err)
	}
	var perr xsdvalidate.XmlParserError
	if errors.As(err, &perr) {
		return fmt.Errorf("%w: %s", ErrMalformed, strings.TrimSpace(err.Error()))
	}
	return fmt.Errorf("%w: %v", ErrViolation, err)
}
