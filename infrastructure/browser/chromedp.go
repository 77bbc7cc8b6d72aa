package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// ChromedpSession drives Chromium with chromedp. Elements are DOM node ids
// of the current document; ids die with the document that issued them.
type ChromedpSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	opts        Options
	logger      *logrus.Logger

	mu   sync.Mutex
	root cdp.NodeID
}

// NewChromedpSession - starts Chromium through an exec allocator
func NewChromedpSession(ctx context.Context, opts Options, logger *logrus.Logger) (*ChromedpSession, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1280, 720),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	sessCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(logger.Debugf))

	s := &ChromedpSession{
		ctx:         sessCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		opts:        opts,
		logger:      logger,
	}

	// the first Run starts the browser
	if err := chromedp.Run(sessCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	chromedp.ListenTarget(sessCtx, func(ev interface{}) {
		if _, ok := ev.(*dom.EventDocumentUpdated); ok {
			s.forgetDocument()
		}
	})

	if opts.DownloadDir != "" {
		err := chromedp.Run(sessCtx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(opts.DownloadDir))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to set download directory: %w", err)
		}
	}

	return s, nil
}

// Backend returns the backend name
func (s *ChromedpSession) Backend() string {
	return BackendChromedp
}

// exec binds the session's target to the caller's context so that ctx
// bounds every protocol call
func (s *ChromedpSession) exec(ctx context.Context) (context.Context, error) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return nil, errors.New("chromedp session is not running")
	}
	return cdp.WithExecutor(ctx, c.Target), nil
}

// Navigate - navigates to url and waits for the load event
func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	s.logger.Infof("Navigating to: %s", url)
	navCtx, cancel := context.WithTimeout(s.ctx, s.opts.navigationTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	s.forgetDocument()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *ChromedpSession) forgetDocument() {
	s.mu.Lock()
	s.root = 0
	s.mu.Unlock()
}

func (s *ChromedpSession) document(ctx context.Context) (cdp.NodeID, error) {
	s.mu.Lock()
	root := s.root
	s.mu.Unlock()
	if root != 0 {
		return root, nil
	}

	// event listeners run on the target loop, the lock is not held across calls
	doc, err := dom.GetDocument().WithDepth(0).Do(ctx)
	if err != nil {
		return 0, classifyCDP(err)
	}
	s.mu.Lock()
	s.root = doc.NodeID
	s.mu.Unlock()
	return doc.NodeID, nil
}

// QueryAll - finds all elements of the current document matching selector
func (s *ChromedpSession) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	ectx, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	root, err := s.document(ectx)
	if err != nil {
		return nil, err
	}
	result, err := s.queryFrom(ectx, root, selector)
	if entities.IsStale(err) {
		s.forgetDocument()
	}
	return result, err
}

func (s *ChromedpSession) queryFrom(ctx context.Context, node cdp.NodeID, selector string) ([]interfaces.Element, error) {
	ids, err := dom.QuerySelectorAll(node, selector).Do(ctx)
	if err != nil {
		return nil, classifyCDP(err)
	}
	result := make([]interfaces.Element, 0, len(ids))
	for _, id := range ids {
		result = append(result, &chromedpElement{session: s, id: id})
	}
	return result, nil
}

// Screenshot - captures the viewport as PNG
func (s *ChromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	ectx, err := s.exec(ctx)
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := chromedp.CaptureScreenshot(&buf).Do(ectx); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close - closes the tab and terminates the browser process
func (s *ChromedpSession) Close() error {
	var closeErr error
	if s.cancel != nil {
		if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.cancel()
		s.cancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
	return closeErr
}

type chromedpElement struct {
	session *ChromedpSession
	id      cdp.NodeID
}

// call runs fn with the element bound to this. Unless byValue is set the
// caller owns the returned remote object.
func (e *chromedpElement) call(ctx context.Context, fn string, byValue bool) (*runtime.RemoteObject, error) {
	obj, err := dom.ResolveNode().WithNodeID(e.id).Do(ctx)
	if err != nil {
		return nil, classifyCDP(err)
	}
	defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithReturnByValue(byValue).
		Do(ctx)
	if err != nil {
		return nil, classifyCDP(err)
	}
	if exc != nil {
		return nil, exc
	}
	return res, nil
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	ectx, err := e.session.exec(ctx)
	if err != nil {
		return "", err
	}
	res, err := e.call(ectx, `function() { return this.textContent; }`, true)
	if err != nil {
		return "", err
	}
	var text string
	if len(res.Value) > 0 {
		if err := json.Unmarshal(res.Value, &text); err != nil {
			return "", fmt.Errorf("failed to decode text content: %w", err)
		}
	}
	return text, nil
}

func (e *chromedpElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	ectx, err := e.session.exec(ctx)
	if err != nil {
		return nil, err
	}
	return e.session.queryFrom(ectx, e.id, selector)
}

func (e *chromedpElement) Parent(ctx context.Context) (interfaces.Element, error) {
	ectx, err := e.session.exec(ctx)
	if err != nil {
		return nil, err
	}
	res, err := e.call(ectx, `function() { return this.parentElement; }`, false)
	if err != nil {
		return nil, err
	}
	if res.ObjectID == "" {
		return nil, nil
	}
	defer runtime.ReleaseObject(res.ObjectID).Do(ectx)

	id, err := dom.RequestNode(res.ObjectID).Do(ectx)
	if err != nil {
		return nil, classifyCDP(err)
	}
	return &chromedpElement{session: e.session, id: id}, nil
}

func (e *chromedpElement) SameAs(ctx context.Context, other interfaces.Element) (bool, error) {
	o, ok := other.(*chromedpElement)
	if !ok {
		return false, nil
	}
	return o.session == e.session && o.id == e.id, nil
}

func (e *chromedpElement) Click(ctx context.Context) error {
	ectx, err := e.session.exec(ctx)
	if err != nil {
		return err
	}
	_, err = e.call(ectx, `function() { this.scrollIntoView({block: 'center'}); this.click(); }`, true)
	return err
}

func (e *chromedpElement) Fill(ctx context.Context, value string) error {
	ectx, err := e.session.exec(ctx)
	if err != nil {
		return err
	}
	if _, err := e.call(ectx, `function() { this.focus(); this.value = ''; }`, true); err != nil {
		return err
	}
	return input.InsertText(value).Do(ectx)
}
