package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
)

// ReadError wraps any failure to read or parse a source file. Callers treat
// it as "the source is unusable", distinct from validation or store
// failures.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// document is the on disk shape written by the FMR export: the records sit
// under an "areas" key.
type document struct {
	Areas []models.RawRecord `json:"areas"`
}

// ReadFile loads raw records from the JSON export at path.
func ReadFile(path string) ([]models.RawRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	records, err := Parse(data)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return records, nil
}

// Parse decodes records from data, accepting both the {"areas": [...]}
// wrapper written by the FMR export and a bare array of records.
func Parse(data []byte) ([]models.RawRecord, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.New("source is empty")
	}

	if trimmed[0] == '[' {
		var records []models.RawRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to parse source: %w", err)
		}
		return records, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if doc.Areas == nil {
		return nil, errors.New(`source has no "areas" array`)
	}
	return doc.Areas, nil
}
