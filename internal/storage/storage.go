// Package storage persists uploaded files under the upload root, segregated
// by inferred type. Stored names are opaque random tokens; the user-supplied
// display name is kept in the database only.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FolderImages    = "images"
	FolderDocuments = "documents"
	FolderResults   = "results"
)

var (
	ErrTooLarge       = errors.New("file too large")
	ErrTypeNotAllowed = errors.New("file type not allowed")
)

var allowedTypes = map[string]bool{
	"image/jpeg":         true,
	"image/jpg":          true,
	"image/png":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Allowed reports whether the MIME type is accepted for attachments.
func Allowed(mimeType string) bool {
	return allowedTypes[mimeType]
}

// FolderFor routes images to images/ and everything else to documents/.
func FolderFor(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return FolderImages
	}
	return FolderDocuments
}

type Store struct {
	Root string
}

// New creates the upload root and its subdirectories.
func New(root string) (*Store, error) {
	for _, dir := range []string{FolderImages, FolderDocuments, FolderResults} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
		}
	}
	return &Store{Root: root}, nil
}

// Saved describes a stored file. Path is relative to the upload root and uses
// forward slashes, suitable for serving under /uploads/.
type Saved struct {
	Path string
	Size int64
}

// SaveDocument stores an attachment in the folder inferred from its MIME type.
func (s *Store) SaveDocument(originalName, mimeType string, r io.Reader, maxBytes int64) (Saved, error) {
	if !Allowed(mimeType) {
		return Saved{}, ErrTypeNotAllowed
	}
	name := uuid.New().String() + strings.ToLower(filepath.Ext(originalName))
	return s.write(FolderFor(mimeType), name, r, maxBytes)
}

// SaveResult stores a result document under results/.
func (s *Store) SaveResult(originalName, mimeType string, r io.Reader, maxBytes int64) (Saved, error) {
	if !Allowed(mimeType) {
		return Saved{}, ErrTypeNotAllowed
	}
	name := "result-" + uuid.New().String() + strings.ToLower(filepath.Ext(originalName))
	return s.write(FolderResults, name, r, maxBytes)
}

func (s *Store) write(folder, name string, r io.Reader, maxBytes int64) (Saved, error) {
	full := filepath.Join(s.Root, folder, name)
	f, err := os.Create(full)
	if err != nil {
		return Saved{}, err
	}
	// Read one extra byte so an exactly-at-limit file still passes.
	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(full)
		return Saved{}, err
	}
	return Saved{Path: path.Join(folder, name), Size: n}, nil
}

// Remove deletes a stored file by its relative path. Missing files are not an
// error; cleanup is best effort.
func (s *Store) Remove(relPath string) {
	if relPath == "" {
		return
	}
	os.Remove(filepath.Join(s.Root, filepath.FromSlash(relPath)))
}
