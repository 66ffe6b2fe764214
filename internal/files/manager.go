package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager provides file management operations
type Manager struct {
	baseDir string
	logger  *slog.Logger
}

// NewManager creates a new file manager instance. Relative paths are
// resolved against baseDir.
func NewManager(baseDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{baseDir: baseDir, logger: logger.With(slog.String("component", "file_manager"))}
}

// Resolve returns the absolute-or-base-relative form of path.
func (m *Manager) Resolve(path string) string {
	if filepath.IsAbs(path) || m.baseDir == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(m.baseDir, path)
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(m.Resolve(path))
	return err == nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	fullPath := m.Resolve(path)

	m.logger.Debug("Ensuring directory exists",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	return os.MkdirAll(fullPath, 0755)
}

// WriteAtomic writes path through write. The content goes to a temporary
// file in the same directory that is renamed over path only once write
// and the final sync succeed.
func (m *Manager) WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	fullPath := m.Resolve(path)
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", fullPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", fullPath, err)
	}
	if err = os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}

	m.logger.Info("Wrote file", slog.String("path", fullPath))
	return nil
}
