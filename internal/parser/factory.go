package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/svg-workbench/backend/internal/schema"
	"github.com/svg-workbench/backend/internal/svg"
)

// SchemaChecker validates raw XML. *schema.Validator implements it.
type SchemaChecker interface {
	Validate(xml []byte) error
}

// ReadFile returns the raw XML of a stored document, decompressing it when
// needed.
func ReadFile(path string) ([]byte, error) {
	return GetGlobalRegistry().ReadFile(path)
}

// ReadFile returns the raw XML of path using the format detected for it.
func (r *Registry) ReadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	head, _ := br.Peek(512)
	format, err := r.FindFormat(filepath.Base(path), head)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svg.ErrParse, err)
	}
	data, err := format.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", svg.ErrIO, format.Name(), err)
	}
	return data, nil
}

// DecodeBytes returns the raw XML held in data, decompressing it when needed.
func DecodeBytes(fileName string, data []byte) ([]byte, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	format, err := GetGlobalRegistry().FindFormat(fileName, head)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", svg.ErrParse, err)
	}
	out, err := format.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", svg.ErrParse, format.Name(), err)
	}
	return out, nil
}

// schemaError maps schema failures onto the svg error kinds.
func schemaError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, schema.ErrMalformed):
		return fmt.Errorf("%w: %w", svg.ErrParse, err)
	case errors.Is(err, schema.ErrLoad), errors.Is(err, schema.ErrClosed):
		return fmt.Errorf("%w: %w", svg.ErrIO, err)
	}
	return fmt.Errorf("%w: %w", svg.ErrSchema, err)
}

// BuildDocument schema-checks raw XML, imports it and runs the structural
// validator on the result. Nothing is returned unless all three succeed.
func BuildDocument(xml []byte, checker SchemaChecker) (*svg.Document, error) {
	if err := schemaError(checker.Validate(xml)); err != nil {
		return nil, err
	}
	doc, err := svg.ImportXMLBytes(xml)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// CreateValidatedDocument reads the file at path, checks it against the XSD
// at schemaPath, imports it and validates the tree.
func CreateValidatedDocument(path, schemaPath string) (*svg.Document, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := schema.Load(schemaPath)
	if err != nil {
		return nil, schemaError(err)
	}
	defer v.Close()
	return BuildDocument(data, v)
}

// CheckDocument exports doc, checks the XML against the schema and then runs
// the structural validator. The first failure is returned.
func CheckDocument(doc *svg.Document, checker SchemaChecker) error {
	if doc == nil {
		return fmt.Errorf("%w: missing document", svg.ErrStructure)
	}
	data, err := svg.MarshalXML(doc)
	if err != nil {
		return err
	}
	if err := schemaError(checker.Validate(data)); err != nil {
		return err
	}
	return doc.Validate()
}

// ValidateDocument is CheckDocument against the XSD at schemaPath.
func ValidateDocument(doc *svg.Document, schemaPath string) error {
	v, err := schema.Load(schemaPath)
	if err != nil {
		return schemaError(err)
	}
	defer v.Close()
	return CheckDocument(doc, v)
}

// IsDocumentValid reports whether doc passes both the schema and the
// structural validator.
func IsDocumentValid(doc *svg.Document, schemaPath string) bool {
	return ValidateDocument(doc, schemaPath) == nil
}

// WriteDocument exports doc to path. A .svgz name is written gzip
// compressed. The file is replaced atomically.
func WriteDocument(doc *svg.Document, path string) error {
	return WriteDocumentAs(doc, path, path)
}

// WriteDocumentAs is WriteDocument with the format chosen from fileName
// rather than path. Stored files are named by id, not by their display name.
func WriteDocumentAs(doc *svg.Document, path, fileName string) error {
	data, err := svg.MarshalXML(doc)
	if err != nil {
		return err
	}
	var format Format = NewPlainFormat()
	if IsCompressedName(fileName) {
		format = NewCompressedFormat(-1)
	}
	return writeAtomic(path, func(w io.Writer) error {
		return format.Encode(w, data)
	})
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".svg-*")
	if err != nil {
		return fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", svg.ErrIO, err)
	}
	return nil
}
