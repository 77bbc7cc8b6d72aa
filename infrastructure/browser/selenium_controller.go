package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"oeb_automation/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

// SeleniumSession drives Chrome through a local ChromeDriver
type SeleniumSession struct {
	wd      selenium.WebDriver
	service *selenium.Service
	logger  *logrus.Logger
}

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(override string) (string, error) {
	candidates := []string{override, os.Getenv("BROWSER_DRIVER_PATH")}
	candidates = append(candidates,
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	)

	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}

	return "", errors.New("chromedriver not found, install it or set BROWSER_DRIVER_PATH")
}

// findChromeBinary - finds a Chrome/Chromium executable, empty lets ChromeDriver decide
func findChromeBinary() string {
	if path := os.Getenv("CHROME_BINARY_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// freePort asks the kernel for an unused TCP port for ChromeDriver
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// NewSeleniumSession - starts ChromeDriver and a Chrome session that
// downloads into opts.DownloadDir without prompting
func NewSeleniumSession(ctx context.Context, opts Options, logger *logrus.Logger) (*SeleniumSession, error) {
	driverPath, err := findChromeDriver(opts.DriverPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find chromedriver: %w", err)
	}
	logger.Infof("Using ChromeDriver at: %s", driverPath)

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve chromedriver port: %w", err)
	}
	service, err := selenium.NewChromeDriverService(driverPath, port)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	args := []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--window-size=1280,720",
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	chromeCaps := chrome.Capabilities{
		Args: args,
		Prefs: map[string]interface{}{
			"download.prompt_for_download": false,
		},
	}
	if opts.DownloadDir != "" {
		chromeCaps.Prefs["download.default_directory"] = opts.DownloadDir
	}
	if binary := findChromeBinary(); binary != "" {
		logger.Infof("Using Chrome binary at: %s", binary)
		chromeCaps.Path = binary
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		service.Stop()
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver, set CHROME_BINARY_PATH: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}
	if err := wd.SetPageLoadTimeout(opts.navigationTimeout()); err != nil {
		logger.Warnf("Failed to set page load timeout: %v", err)
	}

	return &SeleniumSession{
		wd:      wd,
		service: service,
		logger:  logger,
	}, nil
}

// Backend returns the backend name
func (s *SeleniumSession) Backend() string {
	return BackendSelenium
}

// Navigate - navigates browser to specified URL
func (s *SeleniumSession) Navigate(ctx context.Context, url string) error {
	s.logger.Infof("Navigating to: %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wd.Get(url)
}

// QueryAll - finds all elements matching a CSS selector
func (s *SeleniumSession) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elements, err := s.wd.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, classifySelenium(err)
	}
	return s.wrap(elements), nil
}

// Screenshot - takes screenshot of current page
func (s *SeleniumSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.wd.Screenshot()
}

// Close - closes browser and stops ChromeDriver service
func (s *SeleniumSession) Close() error {
	var closeErr error
	if s.wd != nil {
		if err := s.wd.Quit(); err != nil {
			closeErr = fmt.Errorf("failed to quit webdriver: %w", err)
		}
		s.wd = nil
	}
	if s.service != nil {
		if err := s.service.Stop(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("failed to stop chromedriver: %w", err))
		}
		s.service = nil
	}
	return closeErr
}

func (s *SeleniumSession) wrap(elements []selenium.WebElement) []interfaces.Element {
	result := make([]interfaces.Element, 0, len(elements))
	for _, el := range elements {
		result = append(result, &seleniumElement{session: s, el: el})
	}
	return result
}

// script - runs a script with the element as arguments[0]
func (s *SeleniumSession) script(script string, args ...interface{}) (interface{}, error) {
	res, err := s.wd.ExecuteScript(script, args)
	return res, classifySelenium(err)
}

type seleniumElement struct {
	session *SeleniumSession
	el      selenium.WebElement
}

// Text uses textContent, WebElement.Text only returns the rendered text
func (e *seleniumElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := e.session.script("return arguments[0].textContent;", e.el)
	if err != nil {
		return "", err
	}
	text, _ := res.(string)
	return text, nil
}

func (e *seleniumElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	elements, err := e.el.FindElements(selenium.ByCSSSelector, selector)
	if err != nil {
		return nil, classifySelenium(err)
	}
	return e.session.wrap(elements), nil
}

func (e *seleniumElement) Parent(ctx context.Context) (interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := e.session.script("return arguments[0].parentElement === null;", e.el)
	if err != nil {
		return nil, err
	}
	if root, _ := res.(bool); root {
		return nil, nil
	}
	parent, err := e.el.FindElement(selenium.ByXPATH, "..")
	if err != nil {
		return nil, classifySelenium(err)
	}
	return &seleniumElement{session: e.session, el: parent}, nil
}

func (e *seleniumElement) SameAs(ctx context.Context, other interfaces.Element) (bool, error) {
	o, ok := other.(*seleniumElement)
	if !ok {
		return false, nil
	}
	res, err := e.session.script("return arguments[0] === arguments[1];", e.el, o.el)
	if err != nil {
		return false, err
	}
	same, _ := res.(bool)
	return same, nil
}

func (e *seleniumElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.session.script("arguments[0].scrollIntoView({block: 'center'});", e.el); err != nil {
		e.session.logger.Warnf("Failed to scroll to element: %v", err)
	}
	return classifySelenium(e.el.Click())
}

func (e *seleniumElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.el.Clear(); err != nil {
		return classifySelenium(err)
	}
	return classifySelenium(e.el.SendKeys(value))
}
