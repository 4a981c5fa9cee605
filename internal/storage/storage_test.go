package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveDocumentRoutesByMime(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	img, err := s.SaveDocument("ktp.png", "image/png", strings.NewReader("png-bytes"), 1024)
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if !strings.HasPrefix(img.Path, "images/") {
		t.Fatalf("image stored outside images/: %s", img.Path)
	}
	doc, err := s.SaveDocument("surat.pdf", "application/pdf", strings.NewReader("pdf-bytes"), 1024)
	if err != nil {
		t.Fatalf("save pdf: %v", err)
	}
	if !strings.HasPrefix(doc.Path, "documents/") {
		t.Fatalf("pdf stored outside documents/: %s", doc.Path)
	}
	if !strings.HasSuffix(doc.Path, ".pdf") {
		t.Fatalf("extension not preserved: %s", doc.Path)
	}
	if strings.Contains(doc.Path, "surat") {
		t.Fatalf("stored name leaks original filename: %s", doc.Path)
	}
	if _, err := os.Stat(filepath.Join(s.Root, filepath.FromSlash(doc.Path))); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
}

func TestSaveDocumentRejectsType(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.SaveDocument("run.exe", "application/x-msdownload", strings.NewReader("x"), 1024); err != ErrTypeNotAllowed {
		t.Fatalf("expected ErrTypeNotAllowed, got %v", err)
	}
}

func TestSaveDocumentEnforcesLimit(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.SaveDocument("big.pdf", "application/pdf", strings.NewReader("0123456789"), 5); err != ErrTooLarge {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	// exactly at the limit is fine
	if _, err := s.SaveDocument("ok.pdf", "application/pdf", strings.NewReader("01234"), 5); err != nil {
		t.Fatalf("at-limit save failed: %v", err)
	}
}

func TestSaveResultUsesResultsFolder(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	saved, err := s.SaveResult("sk-domisili.pdf", "application/pdf", strings.NewReader("hasil"), 1024)
	if err != nil {
		t.Fatalf("save result: %v", err)
	}
	if !strings.HasPrefix(saved.Path, "results/result-") {
		t.Fatalf("unexpected result path %s", saved.Path)
	}
}
