// Package download turns a browser-triggered file export into a single
// awaitable result.
package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"oeb_automation/application/poll"
	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// DefaultTimeout is used when an expectation does not set one
const DefaultTimeout = 5 * time.Second

// DefaultPartialSuffixes are the in-progress markers written by Chromium,
// Firefox and Safari next to a file that is still being downloaded
var DefaultPartialSuffixes = []string{".crdownload", ".part", ".download"}

// Observer receives the outcome of every wait
type Observer interface {
	DownloadAwaited(pattern string, elapsed time.Duration, err error)
}

// Watcher waits for downloads to land in a directory
type Watcher struct {
	fs       afero.Fs
	logger   *logrus.Logger
	suffixes []string
	observer Observer
}

// Option configures a Watcher
type Option func(*Watcher)

// WithPartialSuffixes replaces the in-progress marker suffixes
func WithPartialSuffixes(suffixes ...string) Option {
	return func(w *Watcher) {
		w.suffixes = suffixes
	}
}

// WithObserver reports every wait to o
func WithObserver(o Observer) Option {
	return func(w *Watcher) {
		w.observer = o
	}
}

// NewWatcher - creates new download watcher on fs
func NewWatcher(fs afero.Fs, logger *logrus.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &Watcher{
		fs:       fs,
		logger:   logger,
		suffixes: DefaultPartialSuffixes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until exactly one finished file matching exp.Pattern exists in
// exp.Directory and returns its path. More than one match fails immediately
// with ErrAmbiguousResult; running out of time fails with a
// DownloadTimeoutError. Filesystem errors are returned unchanged.
func (w *Watcher) Wait(ctx context.Context, exp entities.DownloadExpectation) (string, error) {
	if exp.Pattern == nil {
		return "", errors.New("download expectation without a file name pattern")
	}
	timeout := exp.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	log := w.logger.WithFields(logrus.Fields{
		"dir":     exp.Directory,
		"pattern": exp.PatternString(),
	})
	log.Debugf("Waiting up to %s for download", timeout)

	start := time.Now()
	var found string
	err := poll.Until(ctx, exp.Interval(), timeout, func(ctx context.Context) (bool, error) {
		name, ready, err := w.check(exp)
		if err != nil {
			return false, err
		}
		found = name
		return ready, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		err = &entities.DownloadTimeoutError{Timeout: timeout, Pattern: exp.PatternString()}
	}

	elapsed := time.Since(start)
	if w.observer != nil {
		w.observer.DownloadAwaited(exp.PatternString(), elapsed, err)
	}
	if err != nil {
		log.WithError(err).Debug("Download did not complete")
		return "", err
	}

	path := filepath.Join(exp.Directory, found)
	log.WithField("file", found).Infof("Download finished after %s", elapsed.Round(time.Millisecond))
	return path, nil
}

// Await runs trigger and waits for the download it starts. Backends with a
// native download event are awaited through it and the result is then
// verified on disk with the remaining budget; all others are polled.
func (w *Watcher) Await(ctx context.Context, page interfaces.Page, exp entities.DownloadExpectation, trigger func() error) (string, error) {
	notifier, ok := page.(interfaces.DownloadNotifier)
	if !ok {
		if err := trigger(); err != nil {
			return "", fmt.Errorf("failed to trigger download: %w", err)
		}
		return w.Wait(ctx, exp)
	}

	timeout := exp.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()

	eventCtx, cancel := context.WithTimeout(ctx, timeout)
	name, err := notifier.SaveDownload(eventCtx, exp.Directory, trigger)
	cancel()
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, entities.ErrDownloadTimeout) || errors.Is(err, context.DeadlineExceeded)) {
			err = &entities.DownloadTimeoutError{Timeout: timeout, Pattern: exp.PatternString()}
		}
		if w.observer != nil {
			w.observer.DownloadAwaited(exp.PatternString(), time.Since(start), err)
		}
		return "", err
	}
	w.logger.WithField("file", name).Debug("Native download event received")

	remaining := timeout - time.Since(start)
	if remaining < exp.Interval() {
		remaining = exp.Interval()
	}
	exp.Timeout = remaining
	return w.Wait(ctx, exp)
}

// check lists the directory once. ready is true when exactly one matching
// file exists and nothing is still being written for it. A marker whose
// stripped name matches but has no finished file yet counts as a pending
// match, both for ambiguity and for readiness.
func (w *Watcher) check(exp entities.DownloadExpectation) (string, bool, error) {
	entries, err := afero.ReadDir(w.fs, exp.Directory)
	if err != nil {
		return "", false, err
	}

	var matches []string
	finished := make(map[string]bool)
	partial := make(map[string]bool)
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		name := entry.Name()
		if base, ok := w.stripMarker(name); ok {
			if exp.Pattern.MatchString(base) {
				partial[base] = true
			}
			continue
		}
		if exp.Pattern.MatchString(name) {
			matches = append(matches, name)
			finished[name] = true
		}
	}

	var pending []string
	for base := range partial {
		if !finished[base] {
			pending = append(pending, base)
		}
	}
	sort.Strings(pending)

	if candidates := len(matches) + len(pending); candidates > 1 {
		all := append(append([]string{}, matches...), pending...)
		return "", false, entities.Ambiguous("%d files in %s match %q: %s", candidates, exp.Directory, exp.PatternString(), strings.Join(all, ", "))
	}

	switch {
	case len(pending) == 1:
		w.logger.WithField("file", pending[0]).Debug("Download still in progress")
		return pending[0], false, nil
	case len(matches) == 0:
		return "", false, nil
	case partial[matches[0]]:
		w.logger.WithField("file", matches[0]).Debug("Download still in progress")
		return matches[0], false, nil
	default:
		return matches[0], true, nil
	}
}

func (w *Watcher) stripMarker(name string) (string, bool) {
	for _, suffix := range w.suffixes {
		if suffix != "" && strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), true
		}
	}
	return "", false
}
