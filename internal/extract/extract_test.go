package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestFromBytesPlainText(t *testing.T) {
	res, err := FromBytes("note.txt", []byte("Patient SSN 123-45-6789\n"))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if res.Metadata.Method != "text" {
		t.Errorf("method = %q", res.Metadata.Method)
	}
	if res.Metadata.WordCount != 3 {
		t.Errorf("word count = %d", res.Metadata.WordCount)
	}
	if !strings.Contains(res.Text, "123-45-6789") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestFromBytesCSV(t *testing.T) {
	data := []byte("name,ssn\nJane Doe,123-45-6789\n")
	res, err := FromBytes("roster.csv", data)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if res.Metadata.Method != "csv" {
		t.Errorf("method = %q", res.Metadata.Method)
	}
	// Header and value flatten onto lines, so context gating still sees
	// "ssn" near the number.
	if !strings.Contains(res.Text, "name ssn") || !strings.Contains(res.Text, "Jane Doe 123-45-6789") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestFromBytesJSON(t *testing.T) {
	data := []byte(`{"ssn": "123-45-6789", "visits": 3, "name": "Jane Doe"}`)
	res, err := FromBytes("record.json", data)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if res.Metadata.Method != "json" {
		t.Errorf("method = %q", res.Metadata.Method)
	}
	if !strings.Contains(res.Text, "ssn: 123-45-6789") {
		t.Errorf("text = %q", res.Text)
	}

	// Key order is fixed, so repeated extraction is byte-identical.
	again, err := FromBytes("record.json", data)
	if err != nil {
		t.Fatal(err)
	}
	if again.Text != res.Text {
		t.Error("json extraction not deterministic")
	}
}

func TestFromBytesUnsupported(t *testing.T) {
	_, err := FromBytes("scan.tiff", []byte{0x49, 0x49})
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("expected extract.Error, got %v", err)
	}
	if ee.Filename != "scan.tiff" {
		t.Errorf("filename = %q", ee.Filename)
	}
}

func TestFromBytesMalformed(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"invalid utf8", "note.txt", []byte{0xff, 0xfe, 0x00}},
		{"broken json", "record.json", []byte(`{"unclosed`)},
		{"broken csv quoting", "roster.csv", []byte("a,\"b\nc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBytes(tt.filename, tt.data)
			var ee *Error
			if !errors.As(err, &ee) {
				t.Fatalf("expected extract.Error, got %v", err)
			}
		})
	}
}
