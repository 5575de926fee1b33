// Package media stores uploaded recipe images on the local filesystem.
package media

import (
	"encoding/base64"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/apperr"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
)

const imagesDir = "recipes/images"

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type Store struct {
	root   string
	logger *zap.SugaredLogger
}

func New(cfg *config.Config, l *zap.SugaredLogger) (*Store, error) {
	return NewStore(cfg.MediaDir, l)
}

func NewStore(root string, l *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(imagesDir)), 0o755); err != nil {
		return nil, errors.Wrap(err, "create media dir")
	}
	return &Store{root: root, logger: l}, nil
}

func (s *Store) Root() string {
	return s.root
}

// SaveDataURI decodes a "data:image/<type>;base64,<payload>" string and writes it under a
// fresh name. It returns the path relative to the media root.
func (s *Store) SaveDataURI(uri string) (string, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return "", apperr.Validation("image must be a base64 data URI")
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	ext, ok := extensions[mime]
	if !ok {
		return "", apperr.Validation("unsupported image type %q", mime)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return "", apperr.Validation("image is not valid base64")
	}

	rel := path.Join(imagesDir, uuid.New().String()+"."+ext)
	if err := os.WriteFile(s.abs(rel), data, 0o644); err != nil {
		return "", errors.Wrap(err, "write image")
	}
	s.logger.Debugw("image saved", "path", rel, "size", len(data))
	return rel, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Store) Remove(rel string) error {
	clean := path.Clean("/" + rel)
	if !strings.HasPrefix(clean, "/"+imagesDir+"/") {
		return errors.Errorf("path %q is outside the media dir", rel)
	}
	err := os.Remove(s.abs(clean[1:]))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove image")
	}
	return nil
}

func (s *Store) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}
