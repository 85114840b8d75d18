package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/go-posts-api/config"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

var ErrInvalidName = errors.New("invalid image name")

// ImageStore keeps processed images and serves them back under /uploads.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Delete(ctx context.Context, name string) error
	// Handler serves GET /{name}; mount it with the /uploads prefix stripped.
	Handler() http.Handler
}

// NewImageStore builds the store selected by cfg.Driver.
func NewImageStore(ctx context.Context, cfg config.UploadsConfig, logger *slog.Logger) (ImageStore, error) {
	switch cfg.Driver {
	case DriverLocal:
		return NewLocalStore(cfg.Dir, logger)
	case DriverS3:
		return NewS3Store(ctx, cfg.S3, logger)
	default:
		return nil, fmt.Errorf("unknown uploads driver %q", cfg.Driver)
	}
}

var _ ImageStore = (*LocalStore)(nil)

type LocalStore struct {
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string, logger *slog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	return &LocalStore{dir: dir, logger: logger}, nil
}

// Save writes to a temp file first so readers never see a partial image.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) error {
	if !ValidFilename(name) {
		return ErrInvalidName
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("renaming image: %w", err)
	}

	s.logger.DebugContext(ctx, "Image stored", slog.String("name", name))
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if !ValidFilename(name) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}

func (s *LocalStore) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ValidFilename(strings.TrimPrefix(r.URL.Path, "/")) {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
