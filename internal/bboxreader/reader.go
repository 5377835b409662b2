// =============================================================================
// BBOX Fuel Dispense Analyzer - BBOX Reader Module
// =============================================================================
//
// This module reads BBOX controller log files. A BBOX file is XML in which
// every log record is a ROW element carrying three attributes:
//
//   <ROW HOST="AZS012-PC01" DATETIME="20240115T10:30:15" ACTION="ТРК : 3; ..."/>
//
// ROW elements may appear at any depth. Everything else in the document is
// ignored.
//
// FEATURES:
//   - Streaming decode; a file is never loaded whole before parsing
//   - Declared encodings other than UTF-8 (the controllers write
//     windows-1251) are decoded through golang.org/x/text
//   - Missing attributes yield empty fields rather than errors; the
//     extractor decides what a record means
//
// =============================================================================

package bboxreader

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/types"
)

// Attribute names of a ROW element.
const (
	rowElement    = "ROW"
	attrHost      = "HOST"
	attrAction    = "ACTION"
	attrTimestamp = "DATETIME"
)

// =============================================================================
// STREAMING READER
// =============================================================================

// Reader streams the ROW records of one document.
//
// USAGE:
//
//	r := bboxreader.NewReader(f)
//	for r.Next() {
//	    rec := r.Record()
//	}
//	if err := r.Err(); err != nil {
//	    return err
//	}
type Reader struct {
	decoder *xml.Decoder
	closer  io.Closer
	current types.Record
	rows    int
	err     error
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	d := xml.NewDecoder(bufio.NewReader(r))
	d.CharsetReader = charsetReader
	return &Reader{decoder: d}
}

// Open opens a BBOX file for streaming. The caller must Close it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next advances to the next ROW. Returns false at the end of the document or
// on error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	for {
		tok, err := r.decoder.Token()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			r.err = fmt.Errorf("error reading XML after row %d: %w", r.rows, err)
			return false
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != rowElement {
			continue
		}

		r.rows++
		r.current = types.Record{Line: r.rows}
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case attrHost:
				r.current.Host = attr.Value
			case attrAction:
				r.current.Action = attr.Value
			case attrTimestamp:
				r.current.DateTime = attr.Value
			}
		}
		return true
	}
}

// Record returns the current record.
func (r *Reader) Record() types.Record { return r.current }

// Err returns the first decoding error.
func (r *Reader) Err() error { return r.err }

// Close closes the underlying file, if Open created it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// charsetReader resolves an XML-declared encoding by its IANA name.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// =============================================================================
// WHOLE-DOCUMENT HELPERS
// =============================================================================

// Read returns every record of the document in r, in document order.
func Read(r io.Reader) ([]types.Record, error) {
	return collect(NewReader(r))
}

// ReadFile returns every record of the file at path.
func ReadFile(path string) ([]types.Record, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return collect(r)
}

func collect(r *Reader) ([]types.Record, error) {
	var out []types.Record
	for r.Next() {
		out = append(out, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// FILE SOURCE
// =============================================================================

// FileSource is a BBOX file on disk. It satisfies engine.Source.
type FileSource struct {
	Path string
}

// Name returns the file's base name.
func (s FileSource) Name() string { return filepath.Base(s.Path) }

// Records reads the whole file.
func (s FileSource) Records(ctx context.Context) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.Path)
}
