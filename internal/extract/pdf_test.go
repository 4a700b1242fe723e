package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTextRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	if err := os.WriteFile(path, []byte("plain text pretending to be a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := Text(path)
	if err == nil {
		t.Fatalf("expected extraction error for non-PDF content")
	}
	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("error type = %T, want *extract.Error", err)
	}
	if extractErr.Path != path {
		t.Fatalf("error path = %q, want %q", extractErr.Path, path)
	}
}

func TestTextMissingFile(t *testing.T) {
	_, err := Text(filepath.Join(t.TempDir(), "missing.pdf"))
	var extractErr *Error
	if !errors.As(err, &extractErr) {
		t.Fatalf("error = %v, want *extract.Error", err)
	}
}

func TestNormalizePage(t *testing.T) {
	raw := "  First\x00line\t\n  spaced   out  "
	got := normalizePage(raw)
	want := "First line spaced out"
	if got != want {
		t.Fatalf("normalizePage() = %q, want %q", got, want)
	}
}
