package browser

import (
	"context"
	"fmt"

	"oeb_automation/domain/interfaces"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// RodSession drives Chromium through go-rod over the DevTools protocol
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	logger   *logrus.Logger
}

// NewRodSession - launches Chromium and opens a blank page
func NewRodSession(ctx context.Context, opts Options, logger *logrus.Logger) (*RodSession, error) {
	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage")

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	if opts.DownloadDir != "" {
		err := proto.BrowserSetDownloadBehavior{
			Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath: opts.DownloadDir,
		}.Call(browser)
		if err != nil {
			browser.Close()
			l.Cleanup()
			return nil, fmt.Errorf("failed to set download directory: %w", err)
		}
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &RodSession{
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     opts,
		logger:   logger,
	}, nil
}

// Backend returns the backend name
func (r *RodSession) Backend() string {
	return BackendRod
}

// Navigate - navigates to url and waits for the load event
func (r *RodSession) Navigate(ctx context.Context, url string) error {
	r.logger.Infof("Navigating to: %s", url)
	page := r.page.Context(ctx).Timeout(r.opts.navigationTimeout())
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return page.WaitLoad()
}

// QueryAll - finds all elements matching selector
func (r *RodSession) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	elements, err := r.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, classifyRod(err)
	}
	return wrapRod(elements), nil
}

// Screenshot - captures the full page as PNG
func (r *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return r.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close - closes the browser and removes the launcher profile
func (r *RodSession) Close() error {
	var closeErr error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
		r.launcher = nil
	}
	return closeErr
}

func wrapRod(elements rod.Elements) []interfaces.Element {
	result := make([]interfaces.Element, 0, len(elements))
	for _, el := range elements {
		result = append(result, &rodElement{el: el})
	}
	return result
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.textContent`)
	if err != nil {
		return "", classifyRod(err)
	}
	return res.Value.Str(), nil
}

func (e *rodElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	elements, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, classifyRod(err)
	}
	return wrapRod(elements), nil
}

func (e *rodElement) Parent(ctx context.Context) (interfaces.Element, error) {
	el := e.el.Context(ctx)
	res, err := el.Eval(`() => this.parentElement === null`)
	if err != nil {
		return nil, classifyRod(err)
	}
	if res.Value.Bool() {
		return nil, nil
	}
	parent, err := el.Parent()
	if err != nil {
		return nil, classifyRod(err)
	}
	return &rodElement{el: parent}, nil
}

func (e *rodElement) SameAs(ctx context.Context, other interfaces.Element) (bool, error) {
	o, ok := other.(*rodElement)
	if !ok {
		return false, nil
	}
	same, err := e.el.Context(ctx).Equal(o.el)
	return same, classifyRod(err)
}

func (e *rodElement) Click(ctx context.Context) error {
	return classifyRod(e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Fill(ctx context.Context, value string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return classifyRod(err)
	}
	return classifyRod(el.Input(value))
}
