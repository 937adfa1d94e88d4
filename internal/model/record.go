package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Fragments is the ordered, duplicate-free list of cleaned text snippets
// captured for one (URL, category) pair.
type Fragments []string

// MarshalText renders the fragments as a JSON array so a record fits in a
// single tabular cell. '&', '<' and '>' are written as is.
func (f Fragments) MarshalText() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(f)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MarshalJSON encodes the fragments as an array, not a quoted string.
func (f Fragments) MarshalJSON() ([]byte, error) {
	return f.MarshalText()
}

// ExtractionRecord is produced once per (URL, category) when at least one
// matching fragment was found. TextData is never empty.
type ExtractionRecord struct {
	URL       string    `json:"url" csv:"url"`
	Timestamp time.Time `json:"timestamp" csv:"timestamp"`
	TextData  Fragments `json:"text_data" csv:"text_data"`
}

// CompanyCategoryResult is an ExtractionRecord tagged with the company and
// the site it was harvested from.
type CompanyCategoryResult struct {
	Company string `json:"company" csv:"company"`
	Source  string `json:"source" csv:"source"`
	ExtractionRecord
}
