package photos

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Driver identifies a concrete photo storage backend.
type Driver string

const (
	// DriverFilesystem stores photos under a local root directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 stores photos in an S3 or MinIO compatible bucket.
	DriverS3 Driver = "s3"
)

// photoDirectory is the per-biography folder holding the current profile photo.
const photoDirectory = "profile_photo"

var (
	// ErrInvalidBiographyID indicates an empty or path-like biography identifier.
	ErrInvalidBiographyID = errors.New("photos: invalid biography id")
	// ErrInvalidFilename indicates a filename that is empty after sanitization.
	ErrInvalidFilename = errors.New("photos: invalid filename")
)

// Store persists at most one current profile photo per biography.
type Store interface {
	// Save writes contents as <biography id>/profile_photo/<filename>, overwriting any file of that name.
	Save(ctx context.Context, biographyID, filename string, contents []byte) error
	// RemoveAll deletes every photo stored for the biography. Missing directories are not an error.
	RemoveAll(ctx context.Context, biographyID string) error
	// Driver reports the backend in use.
	Driver() Driver
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver Driver
	Root   string
	S3     S3Config
}

// Open builds the Store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystemStore(cfg.Root)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("photos: unknown driver %q", driver)
	}
}

// Key returns the storage key for a biography photo. The layout is shared by every driver
// and mirrors the public URL path.
func Key(biographyID, filename string) string {
	return biographyID + "/" + photoDirectory + "/" + filename
}

// PublicURL rewrites a stored filename into the servable location rooted at base.
// An empty filename yields an empty URL.
func PublicURL(base, biographyID, filename string) string {
	if filename == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + Key(biographyID, filename)
}

func validateBiographyID(biographyID string) error {
	trimmed := strings.TrimSpace(biographyID)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return ErrInvalidBiographyID
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidBiographyID, biographyID)
	}
	return nil
}
