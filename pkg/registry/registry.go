// Package registry loads the reference registry of healthcare organizations
// and resolves free-text names against it.
package registry

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Errors returned while decoding or loading the registry.
var (
	ErrDataUnavailable = errors.New("registry data unavailable")
	ErrNoRows          = errors.New("registry has no rows")
	ErrUndecodable     = errors.New("registry text encoding not recognized")
)

// Registry is a read-only table of Records. It is safe to share between
// goroutines once built.
type Registry struct {
	source  string
	columns []string
	records []*Record
}

// New builds a Registry from already-parsed records.
func New(columns []string, records []*Record) *Registry {
	return &Registry{columns: columns, records: records}
}

// Empty returns a Registry with no rows.
func Empty() *Registry { return &Registry{} }

// Len returns the number of records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Records returns the records in file order. Callers must not modify them.
func (r *Registry) Records() []*Record {
	if r == nil {
		return nil
	}
	return r.records
}

// Columns returns the header labels in file order.
func (r *Registry) Columns() []string {
	if r == nil {
		return nil
	}
	return r.columns
}

// Source describes where the rows came from ("remote", "backup", or "").
func (r *Registry) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// NameColumn returns the first header label containing "name".
func (r *Registry) NameColumn() string {
	for _, c := range r.Columns() {
		if strings.Contains(strings.ToLower(c), "name") {
			return c
		}
	}
	return ""
}

// IDColumn returns the first header label that holds the certification number.
func (r *Registry) IDColumn() string {
	for _, c := range r.Columns() {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "ccn") || strings.Contains(lc, "facility id") ||
			strings.Contains(lc, "provider id") || strings.Contains(lc, "provider number") {
			return c
		}
	}
	return ""
}

// Parse reads a CSV registry. Rows with more cells than the header are
// skipped; short rows are padded with blanks.
func Parse(rd io.Reader) (*Registry, error) {
	cr := csv.NewReader(rd)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	reg := &Registry{columns: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(row) > len(header) || blank(row) {
			continue
		}
		reg.records = append(reg.records, NewRecord(header, row))
	}
	return reg, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// textDecoder turns raw bytes into text, reporting false if the bytes do
// not look like that encoding.
type textDecoder struct {
	name   string
	decode func([]byte) (string, bool)
}

// decoders are tried in order: UTF-8, Latin-1, UTF-16.
// Latin-1 accepts any byte sequence, so it rejects text containing NUL,
// which is what UTF-16 data looks like when read one byte at a time.
var decoders = []textDecoder{
	{"utf-8", func(b []byte) (string, bool) {
		b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(b) || bytes.IndexByte(b, 0) >= 0 {
			return "", false
		}
		return string(b), true
	}},
	{"latin-1", func(b []byte) (string, bool) {
		if bytes.IndexByte(b, 0) >= 0 {
			return "", false
		}
		return decodeWith(charmap.ISO8859_1, b)
	}},
	{"utf-16", func(b []byte) (string, bool) {
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), b)
	}},
}

func decodeWith(enc encoding.Encoding, b []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Decode parses raw registry bytes, trying each supported text encoding in
// order until one yields at least one row.
func Decode(data []byte) (*Registry, error) {
	lastErr := ErrUndecodable
	for _, d := range decoders {
		text, ok := d.decode(data)
		if !ok {
			continue
		}
		reg, err := Parse(strings.NewReader(text))
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", d.name, err)
			continue
		}
		if reg.Len() == 0 {
			lastErr = fmt.Errorf("%s: %w", d.name, ErrNoRows)
			continue
		}
		return reg, nil
	}
	return nil, lastErr
}
