package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

const actionTimeout = 5 * time.Second

// PlaywrightSession drives Chromium through playwright. It is the only
// backend with a native download event.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    Options
	logger  *logrus.Logger
}

// NewPlaywrightSession - launches Chromium and opens a single page
func NewPlaywrightSession(ctx context.Context, opts Options, logger *logrus.Logger) (*PlaywrightSession, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		AcceptDownloads:   playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if opts.StorageState != "" {
		if _, err := os.Stat(opts.StorageState); err == nil {
			contextOptions.StorageStatePath = playwright.String(opts.StorageState)
			logger.Debugf("Reusing storage state from %s", opts.StorageState)
		}
	}

	browser, err := pw.Chromium.Launch(playwrightLaunchOptions(opts))
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(contextOptions)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(actionTimeout.Milliseconds()))

	page.OnDialog(func(dialog playwright.Dialog) {
		dialog.Accept()
	})

	return &PlaywrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
		opts:    opts,
		logger:  logger,
	}, nil
}

// playwrightLaunchOptions leaves DownloadsPath to playwright: its artifacts
// are named by GUID and must stay out of the directory downloads are awaited
// in. SaveDownload copies each file into place.
func playwrightLaunchOptions(opts Options) playwright.BrowserTypeLaunchOptions {
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
}

// Backend returns the backend name
func (p *PlaywrightSession) Backend() string {
	return BackendPlaywright
}

// Navigate - navigates to the specified URL and waits for the network to settle
func (p *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	p.logger.Infof("Navigating to: %s", url)
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(timeoutMillis(ctx, p.opts.navigationTimeout())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// QueryAll - finds all elements matching selector in the current page
func (p *PlaywrightSession) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, classifyPlaywright(err)
	}
	return wrapHandles(handles), nil
}

// SaveDownload - runs trigger and stores the download it starts in dir
func (p *PlaywrightSession) SaveDownload(ctx context.Context, dir string, trigger func() error) (string, error) {
	download, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, actionTimeout)),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return "", fmt.Errorf("%w: %v", entities.ErrDownloadTimeout, err)
		}
		return "", err
	}

	if dir == "" {
		dir = p.opts.DownloadDir
	}
	name := download.SuggestedFilename()
	if err := download.SaveAs(filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to save download %s: %w", name, err)
	}
	if err := download.Delete(); err != nil {
		p.logger.WithError(err).Debug("Failed to remove download artifact")
	}
	p.logger.WithField("file", name).Debug("Download saved")
	return name, nil
}

// Screenshot - captures the full page as PNG
func (p *PlaywrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
	})
}

// SaveState - saves cookies and local storage for the next run
func (p *PlaywrightSession) SaveState() error {
	if p.context == nil || p.opts.StorageState == "" {
		return nil
	}

	if _, err := p.context.StorageState(p.opts.StorageState); err != nil {
		if isClosedError(err) {
			return nil
		}
		return fmt.Errorf("failed to save browser state: %w", err)
	}
	return nil
}

// Close - saves state and closes the browser
func (p *PlaywrightSession) Close() error {
	var closeErr error

	if err := p.SaveState(); err != nil {
		closeErr = err
	}

	if p.context != nil {
		if err := p.context.Close(); err != nil && !isClosedError(err) {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to close context: %w", err))
		}
		p.context = nil
	}

	if p.browser != nil {
		if err := p.browser.Close(); err != nil && !isClosedError(err) {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		p.browser = nil
	}

	if p.pw != nil {
		if err := p.pw.Stop(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		p.pw = nil
	}

	return closeErr
}

func isClosedError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "closed") || strings.Contains(errStr, "target closed")
}

func wrapHandles(handles []playwright.ElementHandle) []interfaces.Element {
	result := make([]interfaces.Element, 0, len(handles))
	for _, h := range handles {
		result = append(result, &playwrightElement{handle: h})
	}
	return result
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.handle.TextContent()
	return text, classifyPlaywright(err)
}

func (e *playwrightElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, classifyPlaywright(err)
	}
	return wrapHandles(handles), nil
}

func (e *playwrightElement) Parent(ctx context.Context) (interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	isRoot, err := e.handle.Evaluate("el => el.parentElement === null")
	if err != nil {
		return nil, classifyPlaywright(err)
	}
	if root, _ := isRoot.(bool); root {
		return nil, nil
	}

	h, err := e.handle.EvaluateHandle("el => el.parentElement")
	if err != nil {
		return nil, classifyPlaywright(err)
	}
	parent := h.AsElement()
	if parent == nil {
		return nil, entities.Stale(errors.New("parent element disappeared"))
	}
	return &playwrightElement{handle: parent}, nil
}

func (e *playwrightElement) SameAs(ctx context.Context, other interfaces.Element) (bool, error) {
	o, ok := other.(*playwrightElement)
	if !ok {
		return false, nil
	}
	same, err := e.handle.Evaluate("(el, other) => el === other", o.handle)
	if err != nil {
		return false, classifyPlaywright(err)
	}
	b, _ := same.(bool)
	return b, nil
}

func (e *playwrightElement) Click(ctx context.Context) error {
	err := e.handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, actionTimeout)),
	})
	return classifyPlaywright(err)
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	err := e.handle.Fill(value, playwright.ElementHandleFillOptions{
		Timeout: playwright.Float(timeoutMillis(ctx, actionTimeout)),
	})
	return classifyPlaywright(err)
}
