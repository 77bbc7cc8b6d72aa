// Package diagnostics captures screenshots of failed flows
package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"oeb_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultDir is where screenshots land unless configured otherwise
const DefaultDir = "screenshots"

var (
	quotes      = regexp.MustCompile(`['"]+`)
	nonAlphanum = regexp.MustCompile(`(?i)[^a-z0-9]`)
)

// FileName - derives a screenshot file name from a flow title
func FileName(title string) string {
	name := quotes.ReplaceAllString(title, "")
	name = nonAlphanum.ReplaceAllString(name, "_")
	return strings.ToLower(name)
}

// Capturer writes screenshots into a directory
type Capturer struct {
	fs     afero.Fs
	dir    string
	logger *logrus.Logger
}

// NewCapturer - creates new capturer writing into dir on fs
func NewCapturer(fs afero.Fs, dir string, logger *logrus.Logger) *Capturer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if dir == "" {
		dir = DefaultDir
	}
	return &Capturer{fs: fs, dir: dir, logger: logger}
}

// Capture - stores a PNG of page as <dir>/<FileName(title)>.png and returns
// its path. Pages that cannot take screenshots are skipped with an empty path.
func (c *Capturer) Capture(ctx context.Context, page interfaces.Page, title string) (string, error) {
	if err := c.fs.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}

	shooter, ok := page.(interfaces.Screenshotter)
	if !ok || shooter == nil {
		c.logger.Debugf("Page %T cannot take screenshots, skipping %q", page, title)
		return "", nil
	}

	data, err := shooter.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}

	path := filepath.Join(c.dir, FileName(title)+".png")
	if err := afero.WriteFile(c.fs, path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	c.logger.WithField("path", path).Info("Screenshot saved")
	return path, nil
}
