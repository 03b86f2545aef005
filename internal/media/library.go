// Package media installs module system files and resolves their URLs
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/koios/matrx-widgets/internal/config"
)

var supportedBackends = mapset.NewSet("local", "s3")

// Backend stores library files and reports where each one ended up
type Backend interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// Recorder keeps track of installed system files
type Recorder interface {
	RecordSystemFile(ctx context.Context, name, storedAs string) error
}

// Library is the media asset store widgets load their client files from
type Library struct {
	backend  Backend
	recorder Recorder
	baseURL  string
	logger   *zap.Logger
}

// NewLibrary creates a library publishing files under baseURL
func NewLibrary(backend Backend, recorder Recorder, baseURL string, logger *zap.Logger) *Library {
	return &Library{
		backend:  backend,
		recorder: recorder,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// NewBackend builds the backend selected by cfg.Backend
func NewBackend(ctx context.Context, cfg config.LibraryConfig) (Backend, error) {
	if !supportedBackends.Contains(cfg.Backend) {
		return nil, fmt.Errorf("unsupported library backend %q", cfg.Backend)
	}
	if cfg.Backend == "s3" {
		return NewS3Backend(ctx, cfg)
	}
	return NewLocalBackend(cfg.Path), nil
}

// LibraryName maps a module install path such as modules/vendor/x.js to its library name
func LibraryName(file string) string {
	return strings.TrimPrefix(filepath.ToSlash(file), "modules/")
}

// ResourceURL returns the URL of a library file
func (l *Library) ResourceURL(name string) string {
	return l.baseURL + "/" + strings.TrimLeft(name, "/")
}

// Install copies module files found under sourceRoot into the library.
// Files missing from sourceRoot are skipped with a warning.
func (l *Library) Install(ctx context.Context, sourceRoot string, files []string) error {
	var errs []error
	for _, file := range files {
		sourcePath := filepath.Join(sourceRoot, filepath.FromSlash(file))
		if err := l.InstallFile(ctx, sourcePath, LibraryName(file)); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Warn("Module system file not found", zap.String("path", sourcePath))
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InstallFile stores a single local file under name
func (l *Library) InstallFile(ctx context.Context, sourcePath, name string) error {
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", sourcePath, err)
	}
	defer f.Close()

	return l.InstallReader(ctx, name, f)
}

// InstallReader stores the contents of r under name and records it as a system file
func (l *Library) InstallReader(ctx context.Context, name string, r io.Reader) error {
	storedAs, err := l.backend.Put(ctx, name, r)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}

	if err := l.recorder.RecordSystemFile(ctx, name, storedAs); err != nil {
		return err
	}

	l.logger.Debug("Installed system file",
		zap.String("name", name),
		zap.String("stored_as", storedAs))
	return nil
}
