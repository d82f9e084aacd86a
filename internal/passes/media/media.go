// Package media stores pass photos on the local filesystem.
package media

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "mountpass/pkg/domain-errors"
)

// Dir is the sub-directory of the media root that holds pass photos.
const Dir = "pass_images"

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Asset describes a stored file. Path is slash-separated and relative to the
// media root.
type Asset struct {
	Path        string
	ContentType string
	Size        int64
}

// Store writes assets below Root and publishes them under URLPrefix.
type Store struct {
	Root      string
	URLPrefix string
	MaxBytes  int64
}

// New constructs a Store.
func New(root, urlPrefix string, maxBytes int64) *Store {
	return &Store{Root: root, URLPrefix: strings.TrimRight(urlPrefix, "/"), MaxBytes: maxBytes}
}

// Inspect sniffs the content type and enforces the size limit.
func (s *Store) Inspect(data []byte) (string, error) {
	if len(data) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "the submitted file is empty")
	}
	if s.MaxBytes > 0 && int64(len(data)) > s.MaxBytes {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("image exceeds the %d byte limit", s.MaxBytes))
	}
	contentType := http.DetectContentType(data)
	if _, ok := extensions[contentType]; !ok {
		return "", dErrors.New(dErrors.CodeValidation,
			"upload a valid image: jpeg, png, gif or webp")
	}
	return contentType, nil
}

// Save validates data and writes it to pass_images/YYYY/MM/DD/<uuid>.<ext>.
func (s *Store) Save(data []byte, now time.Time) (*Asset, error) {
	contentType, err := s.Inspect(data)
	if err != nil {
		return nil, err
	}
	rel := path.Join(Dir, now.UTC().Format("2006/01/02"), uuid.NewString()+"."+extensions[contentType])
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("write media file: %w", err)
	}
	return &Asset{Path: rel, ContentType: contentType, Size: int64(len(data))}, nil
}

// Delete removes a stored asset. Missing files are not an error.
func (s *Store) Delete(rel string) error {
	if rel == "" {
		return nil
	}
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// URL is the public address of rel.
func (s *Store) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.URLPrefix + "/" + strings.TrimLeft(rel, "/")
}

// Handler serves the media root below URLPrefix.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(s.URLPrefix, http.FileServer(http.Dir(s.Root)))
}

func (s *Store) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)
	if !strings.HasPrefix(clean, "/"+Dir+"/") {
		return "", fmt.Errorf("media path %q outside %s", rel, Dir)
	}
	return filepath.Join(s.Root, filepath.FromSlash(clean)), nil
}
