package utils

import (
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	original := strings.Repeat("repetitive chunk text compresses well. ", 50)

	compressed, err := CompressText(original)
	if err != nil {
		t.Fatalf("CompressText failed: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Errorf("compressed size %d not smaller than original %d", len(compressed), len(original))
	}

	restored, err := DecompressText(compressed)
	if err != nil {
		t.Fatalf("DecompressText failed: %v", err)
	}
	if restored != original {
		t.Error("round trip mismatch")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := DecompressText("not base64!!"); err == nil {
		t.Error("expected an error for invalid base64")
	}
	// Valid base64, not gzip.
	if _, err := DecompressText("aGVsbG8gd29ybGQ="); err == nil {
		t.Error("expected an error for non-gzip payload")
	}
}
