package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// LocalStorage persists generated illustration images on the local
// filesystem and hands back the URL path they are served under.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

func (s *LocalStorage) generateFilename(extension string) string {
	timestamp := time.Now().Format("20060102_150405")
	uniqueId := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s.%s", timestamp, uniqueId, extension)
}

// SaveImage writes the image bytes and returns the public URL path.
// A partially written file is removed rather than left behind.
func (s *LocalStorage) SaveImage(imageData []byte, extension string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}
	if extension == "" {
		extension = "jpeg"
	}

	filename := s.generateFilename(extension)
	path := filepath.Join(s.baseDir, filename)

	if err := os.WriteFile(path, imageData, 0644); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write image file: %w", err)
	}

	return "/images/" + filename, nil
}

// BaseDir returns the directory images are written to, for static mounting.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}
