package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errMissingRoot = errors.New("photos: filesystem root is required")

// FilesystemStore keeps photos under <root>/<biography id>/profile_photo/<filename>.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore ensures root exists and returns a store rooted there.
func NewFilesystemStore(root string) (*FilesystemStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errMissingRoot
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("photos: resolve root: %w", err)
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return nil, fmt.Errorf("photos: create root: %w", err)
	}
	return &FilesystemStore{root: absolute}, nil
}

// Root returns the absolute directory photos are written under.
func (s *FilesystemStore) Root() string {
	return s.root
}

func (s *FilesystemStore) Driver() Driver { return DriverFilesystem }

func (s *FilesystemStore) Save(ctx context.Context, biographyID, filename string, contents []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBiographyID(biographyID); err != nil {
		return err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}

	directory := s.directory(biographyID)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("photos: create directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(directory, filename), contents, 0o644); err != nil {
		return fmt.Errorf("photos: write file: %w", err)
	}
	return nil
}

func (s *FilesystemStore) RemoveAll(ctx context.Context, biographyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBiographyID(biographyID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.directory(biographyID)); err != nil {
		return fmt.Errorf("photos: remove directory: %w", err)
	}
	return nil
}

func (s *FilesystemStore) directory(biographyID string) string {
	return filepath.Join(s.root, biographyID, photoDirectory)
}
