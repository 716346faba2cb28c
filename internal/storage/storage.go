package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// DefaultMaxFileSize is the upload ceiling for product images (5 MiB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// filenameTimeLayout is ISO-8601 in UTC with millisecond precision.
const filenameTimeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrUnsupportedType is returned for files outside the allow-list.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge is returned for files above the size ceiling.
	ErrTooLarge = errors.New("file too large")
)

// AllowedContentTypes lists the accepted image MIME types.
var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ImageFile is an uploaded file as received from a multipart form.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ImageStore persists uploaded product images.
type ImageStore interface {
	// Save validates and stores f, returning its store-relative path.
	Save(ctx context.Context, f ImageFile) (string, error)
	// Remove deletes a previously saved image.
	Remove(ctx context.Context, storedPath string) error
}

// DiskImageStore writes images into a directory of an afero filesystem.
type DiskImageStore struct {
	fs      afero.Fs
	dir     string
	maxSize int64
	now     func() time.Time
}

// Option configures a DiskImageStore.
type Option func(*DiskImageStore)

// WithMaxSize overrides the size ceiling.
func WithMaxSize(n int64) Option {
	return func(s *DiskImageStore) { s.maxSize = n }
}

// WithClock overrides the clock used for filename prefixes.
func WithClock(now func() time.Time) Option {
	return func(s *DiskImageStore) { s.now = now }
}

// NewDiskImageStore creates the upload directory on fs if needed.
func NewDiskImageStore(fs afero.Fs, dir string, opts ...Option) (*DiskImageStore, error) {
	s := &DiskImageStore{
		fs:      fs,
		dir:     dir,
		maxSize: DefaultMaxFileSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return s, nil
}

// Save checks the declared and sniffed MIME types and the size, then writes
// the file as <timestamp><original name>.
func (s *DiskImageStore) Save(ctx context.Context, f ImageFile) (string, error) {
	if !AllowedContentTypes[f.ContentType] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, f.ContentType)
	}
	if f.Size > s.maxSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, f.Size, s.maxSize)
	}

	// Read one byte past the limit so a lying Size header is still caught.
	data, err := io.ReadAll(io.LimitReader(f.Content, s.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, s.maxSize)
	}

	if detected := mimetype.Detect(data); !detected.Is(f.ContentType) {
		return "", fmt.Errorf("%w: declared %q but content is %q", ErrUnsupportedType, f.ContentType, detected.String())
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := s.now().UTC().Format(filenameTimeLayout) + path.Base(filepath.ToSlash(f.Filename))
	storedPath := filepath.Join(s.dir, name)
	if err := afero.WriteReader(s.fs, storedPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", storedPath, err)
	}
	return storedPath, nil
}

// Remove deletes storedPath. Removing a missing file is not an error.
func (s *DiskImageStore) Remove(_ context.Context, storedPath string) error {
	if err := s.fs.Remove(storedPath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
		return fmt.Errorf("failed to remove %s: %w", storedPath, err)
	}
	return nil
}
