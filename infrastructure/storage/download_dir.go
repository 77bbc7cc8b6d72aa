package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultClearPattern matches the PDF exports left behind by download flows
var DefaultClearPattern = regexp.MustCompile(`[.]pdf$`)

// DownloadDir is the directory the browser writes its downloads into. Test
// flows share it, so they clear it before triggering a new download.
type DownloadDir struct {
	fs     afero.Fs
	path   string
	logger *logrus.Logger
}

// NewDownloadDir - creates download directory storage on fs
func NewDownloadDir(fs afero.Fs, path string, logger *logrus.Logger) *DownloadDir {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &DownloadDir{
		fs:     fs,
		path:   path,
		logger: logger,
	}
}

// Path returns the directory path
func (d *DownloadDir) Path() string {
	return d.path
}

// FS returns the filesystem the directory lives on
func (d *DownloadDir) FS() afero.Fs {
	return d.fs
}

// Ensure - creates the directory if it does not exist
func (d *DownloadDir) Ensure() error {
	if err := d.fs.MkdirAll(d.path, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	return nil
}

// List - returns the regular files in the directory
func (d *DownloadDir) List() ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return nil, err
	}
	files := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.Mode().IsRegular() {
			files = append(files, entry)
		}
	}
	return files, nil
}

// Clear - deletes every file whose name matches pattern, DefaultClearPattern if nil
func (d *DownloadDir) Clear(pattern *regexp.Regexp) (int, error) {
	if pattern == nil {
		pattern = DefaultClearPattern
	}
	files, err := d.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		if !pattern.MatchString(f.Name()) {
			continue
		}
		if err := d.fs.Remove(filepath.Join(d.path, f.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", f.Name(), err)
		}
		removed++
	}

	if removed > 0 {
		d.logger.WithFields(logrus.Fields{
			"dir":     d.path,
			"pattern": pattern.String(),
		}).Debugf("Cleared %d downloaded files", removed)
	}
	return removed, nil
}

// Read - reads a downloaded file
func (d *DownloadDir) Read(name string) ([]byte, error) {
	return afero.ReadFile(d.fs, d.Join(name))
}

// Write - stores data under name, used by backends that hand over finished downloads
func (d *DownloadDir) Write(name string, data []byte) error {
	return afero.WriteFile(d.fs, d.Join(name), data, 0644)
}

// Join returns the path of name inside the directory
func (d *DownloadDir) Join(name string) string {
	return filepath.Join(d.path, name)
}
