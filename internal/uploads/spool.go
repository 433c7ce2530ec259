package uploads

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the spool's limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// Spool writes uploads to a scratch directory under unique names.
type Spool struct {
	dir    string
	limit  int64
	logger *slog.Logger
}

func NewSpool(dir string, limit int64, logger *slog.Logger) (*Spool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "order-analyzer-uploads")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Spool{dir: dir, limit: limit, logger: logger}, nil
}

func (s *Spool) Dir() string { return s.dir }

// File is one spooled upload. Release must be called on every path.
type File struct {
	Path         string
	OriginalName string
	Size         int64

	logger *slog.Logger
	once   sync.Once
}

// Save copies r into a new file named pdf-<unix>-<uuid>.pdf. Reading more
// than the limit fails with ErrTooLarge and leaves nothing behind.
func (s *Spool) Save(r io.Reader, originalName string) (*File, error) {
	name := fmt.Sprintf("pdf-%d-%s.pdf", time.Now().Unix(), uuid.New().String())
	path := filepath.Join(s.dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	src := r
	if s.limit > 0 {
		src = io.LimitReader(r, s.limit+1)
	}
	n, copyErr := io.Copy(out, src)
	closeErr := out.Close()

	f := &File{Path: path, OriginalName: originalName, Size: n, logger: s.logger}
	switch {
	case copyErr != nil:
		f.Release()
		return nil, fmt.Errorf("write spool file: %w", copyErr)
	case closeErr != nil:
		f.Release()
		return nil, fmt.Errorf("close spool file: %w", closeErr)
	case s.limit > 0 && n > s.limit:
		f.Release()
		return nil, ErrTooLarge
	}
	s.logger.Debug("uploads.spooled", "path", path, "bytes", n, "original_name", originalName)
	return f, nil
}

// Bytes reads the spooled content back.
func (f *File) Bytes() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Release removes the spooled file. Safe to call more than once.
func (f *File) Release() {
	f.once.Do(func() {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("uploads.release_failed", "path", f.Path, "error", err)
			return
		}
		f.logger.Debug("uploads.released", "path", f.Path)
	})
}
