package browser

import (
	"context"
	"fmt"
	"time"

	"oeb_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Backend names accepted by Open
const (
	BackendPlaywright = "playwright"
	BackendSelenium   = "selenium"
	BackendRod        = "rod"
	BackendChromedp   = "chromedp"
)

// DefaultNavigationTimeout bounds a single navigation
const DefaultNavigationTimeout = 30 * time.Second

// Options configures a live browser session
type Options struct {
	Backend  string
	Headless bool

	// DownloadDir is where the browser stores downloaded files
	DownloadDir string

	// StorageState is a playwright storage state file reused across runs.
	// It is loaded when it exists and written back on Close.
	StorageState string

	// DriverPath overrides ChromeDriver discovery for the selenium backend
	DriverPath string

	NavigationTimeout time.Duration
}

func (o Options) navigationTimeout() time.Duration {
	if o.NavigationTimeout <= 0 {
		return DefaultNavigationTimeout
	}
	return o.NavigationTimeout
}

// Open - starts a browser session with the configured backend
func Open(ctx context.Context, opts Options, logger *logrus.Logger) (interfaces.Session, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"backend":  opts.Backend,
		"headless": opts.Headless,
		"download": opts.DownloadDir,
	}).Info("Opening browser session")

	switch opts.Backend {
	case BackendPlaywright, "":
		s, err := NewPlaywrightSession(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSelenium:
		s, err := NewSeleniumSession(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRod:
		s, err := NewRodSession(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendChromedp:
		s, err := NewChromedpSession(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSnapshot:
		return nil, fmt.Errorf("backend %q has no live browser, parse a saved page instead", opts.Backend)
	default:
		return nil, fmt.Errorf("unknown browser backend %q", opts.Backend)
	}
}

// timeoutMillis converts the time left on ctx into a playwright style
// millisecond timeout, using def when ctx has no deadline.
func timeoutMillis(ctx context.Context, def time.Duration) float64 {
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left < time.Millisecond {
			left = time.Millisecond
		}
		return float64(left.Milliseconds())
	}
	return float64(def.Milliseconds())
}
