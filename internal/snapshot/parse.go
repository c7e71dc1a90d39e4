// Package snapshot decodes accessibility snapshots printed by the browser binary
// and extracts search results from them.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMaxOutputBytes caps how much output is handed to the JSON decoder.
const DefaultMaxOutputBytes int64 = 10 * 1024 * 1024

// ErrInvalidJSON is returned when output cannot be decoded.
var ErrInvalidJSON = errors.New("invalid JSON output")

// SizeError is returned when output exceeds the configured limit.
type SizeError struct {
	Size int64
	Max  int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("output too large: %d bytes exceeds limit of %d bytes", e.Size, e.Max)
}

// Element is one node of an accessibility tree
type Element struct {
	Role     string     `json:"role,omitempty"`
	Name     string     `json:"name,omitempty"`
	URL      string     `json:"url,omitempty"`
	Children []*Element `json:"children,omitempty"`
}

// Document is the top-level object printed by "snapshot --json".
type Document struct {
	Snapshot *Element `json:"snapshot"`
}

// Decode checks the size of out and then decodes it into v.
// A non-positive max uses DefaultMaxOutputBytes.
func Decode(out []byte, max int64, v any) error {
	if max <= 0 {
		max = DefaultMaxOutputBytes
	}
	if size := int64(len(out)); size > max {
		return &SizeError{Size: size, Max: max}
	}
	if err := json.Unmarshal(out, v); err != nil {
		return ErrInvalidJSON
	}
	return nil
}

// Parse decodes a snapshot document and returns its root element.
// A well-formed document without a "snapshot" field yields a nil root and no error.
func Parse(out []byte, max int64) (*Element, error) {
	var doc Document
	if err := Decode(out, max, &doc); err != nil {
		return nil, err
	}
	return doc.Snapshot, nil
}
