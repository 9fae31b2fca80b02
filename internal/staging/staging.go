// Package staging is a short-lived holding area for uploaded photos.
// When a submission fails validation on a non-photo field, the photo
// is parked here under an unguessable token so the user's retry does
// not have to re-transmit it.
package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleanmap/reports-service/internal/types"
)

// MaxAge is how long a staged upload survives before a sweep removes it.
const MaxAge = 30 * time.Minute

// Store is the staging capability the intake orchestrator depends on.
// Retrieve returns (nil, nil) for a missing or expired token; callers
// treat that as a normal "not found", never an error. Discard is
// idempotent.
type Store interface {
	Stage(upload *types.RawUpload) (string, error)
	Retrieve(token string) (*types.RawUpload, error)
	Discard(token string) error
	Sweep() error
}

// extension hint appended to tokens; Retrieve maps it back to a media type.
var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var contentTypeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

func newToken(contentType string) string {
	ext, ok := extByContentType[contentType]
	if !ok {
		ext = ".jpg"
	}
	return uuid.NewString() + ext
}

func contentTypeForToken(token string) string {
	if ct, ok := contentTypeByExt[strings.ToLower(filepath.Ext(token))]; ok {
		return ct
	}
	return "image/jpeg"
}

// DirStore stages uploads as files in a single directory, named by
// token. Safe for concurrent use across independent requests: tokens
// are collision-free UUIDs and missing files are never an error.
type DirStore struct {
	dir    string
	maxAge time.Duration
}

func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir, maxAge: MaxAge}
}

func (s *DirStore) Stage(upload *types.RawUpload) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	token := newToken(upload.ContentType)
	if err := os.WriteFile(filepath.Join(s.dir, token), upload.Data, 0o644); err != nil {
		return "", fmt.Errorf("write staged upload: %w", err)
	}

	return token, nil
}

func (s *DirStore) Retrieve(token string) (*types.RawUpload, error) {
	// strip any path components before touching the filesystem
	name := filepath.Base(token)
	if name == "." || name == string(filepath.Separator) {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read staged upload: %w", err)
	}

	return &types.RawUpload{
		Filename:    name,
		ContentType: contentTypeForToken(name),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

func (s *DirStore) Discard(token string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(token)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard staged upload: %w", err)
	}
	return nil
}

// Sweep deletes staged files older than the age threshold. Removal
// errors are ignored; a concurrent retry or sweep may have removed the
// file first.
func (s *DirStore) Sweep() error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read staging dir: %w", err)
	}

	cutoff := time.Now().Add(-s.maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}

	return nil
}
