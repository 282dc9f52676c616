package parser

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format reads and writes one on-disk encoding of an SVG document.
type Format interface {
	// Name returns the unique name of the format.
	Name() string
	// Detect reports whether a file with this name and leading bytes is in
	// this format.
	Detect(fileName string, head []byte) bool
	// Decode returns the raw XML held in r.
	Decode(r io.Reader) ([]byte, error)
	// Encode writes raw XML to w in this format.
	Encode(w io.Writer, xml []byte) error
}

var gzipMagic = []byte{0x1f, 0x8b}

// PlainFormat is uncompressed UTF-8 (or declared-charset) XML.
type PlainFormat struct{}

func NewPlainFormat() *PlainFormat { return &PlainFormat{} }

func (f *PlainFormat) Name() string { return "svg" }

func (f *PlainFormat) Detect(fileName string, head []byte) bool {
	if bytes.HasPrefix(head, gzipMagic) {
		return false
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf")
	return bytes.HasPrefix(trimmed, []byte("<")) || strings.EqualFold(filepath.Ext(fileName), ".svg")
}

func (f *PlainFormat) Decode(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

func (f *PlainFormat) Encode(w io.Writer, xml []byte) error {
	_, err := w.Write(xml)
	return err
}

// CompressedFormat is gzip-wrapped XML, usually named .svgz.
type CompressedFormat struct {
	// Level is the gzip level used by Encode.
	Level int
}

func NewCompressedFormat(level int) *CompressedFormat {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &CompressedFormat{Level: level}
}

func (f *CompressedFormat) Name() string { return "svgz" }

func (f *CompressedFormat) Detect(fileName string, head []byte) bool {
	return bytes.HasPrefix(head, gzipMagic)
}

func (f *CompressedFormat) Decode(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (f *CompressedFormat) Encode(w io.Writer, xml []byte) error {
	zw, err := gzip.NewWriterLevel(w, f.Level)
	if err != nil {
		return err
	}
	if _, err := zw.Write(xml); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// IsCompressedName reports whether fileName asks for gzip output.
func IsCompressedName(fileName string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".svgz")
}
