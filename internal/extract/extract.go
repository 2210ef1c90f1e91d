// Package extract turns raw document bytes into the plain text the
// engine classifies. Formats Go can read natively (plain text, CSV,
// JSON) are handled here; richer formats (PDF, DOCX, scans) arrive
// pre-extracted from the upstream extraction service, carrying their
// own metadata.
package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fredhutch/phiscan/internal/models"
)

// Error reports a document whose text could not be extracted. These are
// the only per-document failures the pipeline surfaces to callers.
type Error struct {
	Filename string
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %s: %s", e.Filename, e.Reason)
}

// Result is extracted text plus metadata describing how it was obtained.
type Result struct {
	Text     string
	Metadata models.ExtractionMetadata
}

// FromBytes extracts text from raw file content based on the filename
// extension. Unsupported extensions and undecodable content return
// *Error.
func FromBytes(filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text   string
		method string
		err    error
	)
	switch ext {
	case ".txt", ".text", ".log", ".md":
		text, err = fromPlainText(filename, data)
		method = "text"
	case ".csv":
		text, err = fromCSV(filename, data)
		method = "csv"
	case ".json":
		text, err = fromJSON(filename, data)
		method = "json"
	default:
		return nil, &Error{Filename: filename, Reason: fmt.Sprintf("unsupported format %q", ext)}
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: text,
		Metadata: models.ExtractionMetadata{
			Method:    method,
			WordCount: len(strings.Fields(text)),
			CharCount: utf8.RuneCountInString(text),
		},
	}, nil
}

func fromPlainText(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &Error{Filename: filename, Reason: "content is not valid UTF-8"}
	}
	return string(data), nil
}

// fromCSV flattens rows to lines so row-level identifiers keep their
// horizontal adjacency for context-gated patterns.
func fromCSV(filename string, data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", &Error{Filename: filename, Reason: fmt.Sprintf("parsing csv: %v", err)}
	}

	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(strings.Join(rec, " "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// fromJSON walks the document and concatenates keys and scalar values,
// so "ssn": "123-45-6789" yields text a context-gated pattern can read.
func fromJSON(filename string, data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", &Error{Filename: filename, Reason: fmt.Sprintf("parsing json: %v", err)}
	}

	var sb strings.Builder
	writeJSONValue(&sb, doc)
	return sb.String(), nil
}

func writeJSONValue(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			sb.WriteString(k)
			sb.WriteString(": ")
			writeJSONValue(sb, val[k])
		}
	case []any:
		for _, item := range val {
			writeJSONValue(sb, item)
		}
	case string:
		sb.WriteString(val)
		sb.WriteByte('\n')
	case float64:
		fmt.Fprintf(sb, "%v\n", val)
	case bool:
		fmt.Fprintf(sb, "%v\n", val)
	case nil:
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic extraction keeps classification idempotent.
	sort.Strings(keys)
	return keys
}
