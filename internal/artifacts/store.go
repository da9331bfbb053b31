// Package artifacts manages the on-disk files behind transcription jobs: uploaded
// sources, generated MIDI and MusicXML, and their retention.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxUploadBytes is the upload cap (50 MiB).
const DefaultMaxUploadBytes int64 = 50 * 1024 * 1024

// allowedExtensions is fixed; it is not runtime configuration.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
	".m4a":  true,
}

// AllowedExtensions returns the accepted source extensions in display order.
func AllowedExtensions() []string {
	return []string{".wav", ".mp3", ".ogg", ".flac", ".m4a"}
}

// Role names a file that belongs to a job.
type Role string

const (
	RoleSource    Role = "source"
	RolePrimary   Role = "midi"
	RoleSecondary Role = "musicxml"
)

// Extension returns the file extension used for a derived role.
func (r Role) Extension() string {
	switch r {
	case RolePrimary:
		return ".mid"
	case RoleSecondary:
		return ".musicxml"
	default:
		return ""
	}
}

// IDGenerator produces fresh job identifiers.
type IDGenerator func() string

// UUIDv7 is the default generator: time-ordered and never reused.
func UUIDv7() IDGenerator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Upload describes a persisted source file.
type Upload struct {
	ID           string
	Path         string
	OriginalName string
	Size         int64
}

// Store maps job identifiers to paths under an upload and an output directory.
type Store struct {
	uploadDir string
	outputDir string
	maxBytes  int64
	newID     IDGenerator
	logger    *slog.Logger
	kick      chan struct{}
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes overrides the upload cap.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithIDGenerator overrides the identifier strategy.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.newID = g
		}
	}
}

// WithLogger sets the logger used for sweep diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a store rooted at the given directories. Call EnsureDirs
// before the first Accept.
func NewStore(uploadDir, outputDir string, opts ...Option) *Store {
	s := &Store{
		uploadDir: uploadDir,
		outputDir: outputDir,
		maxBytes:  DefaultMaxUploadBytes,
		newID:     UUIDv7(),
		logger:    slog.Default(),
		kick:      make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnsureDirs creates the managed directories if they do not exist.
func (s *Store) EnsureDirs() error {
	for _, dir := range s.dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &StoreError{Message: fmt.Sprintf("failed to create directory %s", dir), Cause: err}
		}
	}
	return nil
}

// UploadDir returns the directory holding source files.
func (s *Store) UploadDir() string { return s.uploadDir }

// OutputDir returns the directory holding generated artifacts.
func (s *Store) OutputDir() string { return s.outputDir }

// MaxBytes returns the upload cap in bytes.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Validate checks a file name and size against the upload policy without touching disk.
func (s *Store) Validate(name string, size int64) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return &ValidationError{
			Kind:    UnsupportedFormat,
			Message: fmt.Sprintf("invalid file type %q, allowed: %s", ext, strings.Join(AllowedExtensions(), ", ")),
		}
	}
	if size > s.maxBytes {
		return &ValidationError{
			Kind:    PayloadTooLarge,
			Message: fmt.Sprintf("file too large, maximum size: %dMB", s.maxBytes/(1024*1024)),
		}
	}
	return nil
}

// Accept validates and persists an upload under a fresh identifier. The file
// only appears at its final path once fully written.
func (s *Store) Accept(name string, content []byte) (*Upload, error) {
	if err := s.Validate(name, int64(len(content))); err != nil {
		return nil, err
	}

	id := s.newID()
	ext := strings.ToLower(filepath.Ext(name))
	dest := s.SourcePath(id, ext)

	if err := writeAtomic(s.uploadDir, dest, content); err != nil {
		return nil, &StoreError{Message: "failed to save upload", Cause: err}
	}

	return &Upload{
		ID:           id,
		Path:         dest,
		OriginalName: filepath.Base(name),
		Size:         int64(len(content)),
	}, nil
}

// writeAtomic writes to a temp file in dir and renames it onto dest.
func writeAtomic(dir, dest string, content []byte) error {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return err
	}
	return nil
}

// SourcePath derives the upload location for an identifier and extension.
func (s *Store) SourcePath(id, ext string) string {
	return filepath.Join(s.uploadDir, id+strings.ToLower(ext))
}

// PathFor derives the location of a generated artifact. RoleSource has no
// fixed extension; use SourcePath for it.
func (s *Store) PathFor(id string, role Role) string {
	return filepath.Join(s.outputDir, id+role.Extension())
}

// Remove deletes a file. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Message: fmt.Sprintf("failed to remove %s", path), Cause: err}
	}
	return nil
}

// Open opens an artifact for reading.
func (s *Store) Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrArtifactNotFound
		}
		return nil, &StoreError{Message: fmt.Sprintf("failed to open %s", path), Cause: err}
	}
	return f, nil
}

// Exists reports whether path refers to an existing regular file.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// PurgeOlderThan deletes files in the managed directories whose modification
// time is older than maxAge. Individual failures are logged and skipped.
func (s *Store) PurgeOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range s.dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("sweep: failed to list directory", "dir", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				// Deleted between ReadDir and Info.
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					s.logger.Warn("sweep: failed to remove file", "path", path, "error", err)
				}
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("sweep: removed expired files", "count", removed, "max_age", maxAge.String())
	}
	return removed
}

// Kick requests an out-of-band sweep from a running sweeper. Never blocks.
func (s *Store) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// RunSweeper purges expired files every interval, and whenever Kick is called,
// until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", "interval", interval.String(), "max_age", maxAge.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.PurgeOlderThan(maxAge)
		case <-s.kick:
			s.PurgeOlderThan(maxAge)
		}
	}
}

func (s *Store) dirs() []string {
	if s.uploadDir == s.outputDir {
		return []string{s.uploadDir}
	}
	return []string{s.uploadDir, s.outputDir}
}
