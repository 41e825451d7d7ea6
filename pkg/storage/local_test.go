package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	url, err := s.SaveImage([]byte("not-really-a-png"), "png")
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	if !strings.HasPrefix(url, "/images/") {
		t.Errorf("url = %q, want /images/ prefix", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want .png suffix", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/images/")))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "not-really-a-png" {
		t.Error("stored bytes do not match input")
	}
}

func TestSaveImageDefaultsExtension(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	url, err := s.SaveImage([]byte{1, 2, 3}, "")
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if !strings.HasSuffix(url, ".jpeg") {
		t.Errorf("url = %q, want default .jpeg extension", url)
	}
}

func TestSaveImageRejectsEmptyData(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	if _, err := s.SaveImage(nil, "png"); err == nil {
		t.Error("SaveImage accepted empty data")
	}
}
