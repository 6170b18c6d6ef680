package extract

import (
	"context"
	"errors"
	"testing"
)

func TestPDFTextRejectsNonPDF(t *testing.T) {
	_, err := PDFText(context.Background(), []byte("PK\x03\x04 not a pdf"))
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestPDFTextHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := PDFText(ctx, []byte("%PDF-1.7")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestIsPDF(t *testing.T) {
	if !IsPDF([]byte("%PDF-1.7\n")) {
		t.Fatal("expected pdf header to be detected")
	}
	if IsPDF([]byte("%PD")) {
		t.Fatal("short header should not match")
	}
}
