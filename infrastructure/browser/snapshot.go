package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"oeb_automation/domain/entities"
	"oeb_automation/domain/interfaces"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// BackendSnapshot is the name of the static document backend
const BackendSnapshot = "snapshot"

var errReadOnly = errors.New("snapshot documents are read-only")

// SnapshotPage is a static HTML document, typically the captured content of a
// live page. It answers the same queries as a live backend.
type SnapshotPage struct {
	root *html.Node

	mu        sync.Mutex
	selectors map[string]cascadia.Selector
}

// ParseSnapshot - parses an HTML document into a queryable page
func ParseSnapshot(r io.Reader) (*SnapshotPage, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &SnapshotPage{
		root:      root,
		selectors: make(map[string]cascadia.Selector),
	}, nil
}

// SnapshotFromString - parses an HTML string into a queryable page
func SnapshotFromString(doc string) (*SnapshotPage, error) {
	return ParseSnapshot(strings.NewReader(doc))
}

// Backend returns the backend name
func (s *SnapshotPage) Backend() string {
	return BackendSnapshot
}

// QueryAll - finds all elements of the document matching selector
func (s *SnapshotPage) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	return s.queryFrom(s.root, selector)
}

func (s *SnapshotPage) compile(selector string) (cascadia.Selector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sel, ok := s.selectors[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	s.selectors[selector] = sel
	return sel, nil
}

func (s *SnapshotPage) queryFrom(n *html.Node, selector string) ([]interfaces.Element, error) {
	sel, err := s.compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(n, sel)
	result := make([]interfaces.Element, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, &snapshotElement{page: s, node: node})
	}
	return result, nil
}

type snapshotElement struct {
	page *SnapshotPage
	node *html.Node
}

// Text - returns the concatenated text of all descendant text nodes
func (e *snapshotElement) Text(ctx context.Context) (string, error) {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return b.String(), nil
}

// QueryAll - finds descendants matching selector
func (e *snapshotElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	return e.page.queryFrom(e.node, selector)
}

// Parent - returns the parent element, nil above the root element
func (e *snapshotElement) Parent(ctx context.Context) (interfaces.Element, error) {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, nil
	}
	return &snapshotElement{page: e.page, node: p}, nil
}

// SameAs - compares the underlying nodes
func (e *snapshotElement) SameAs(ctx context.Context, other interfaces.Element) (bool, error) {
	o, ok := other.(*snapshotElement)
	if !ok {
		return false, nil
	}
	return o.node == e.node, nil
}

func (e *snapshotElement) Click(ctx context.Context) error {
	return errReadOnly
}

func (e *snapshotElement) Fill(ctx context.Context, value string) error {
	return errReadOnly
}

// FaultyPage simulates a document that keeps re-rendering: the first
// evaluations fail with a stale reference before the wrapped page answers.
type FaultyPage struct {
	page      interfaces.Page
	remaining int64
	calls     int64
}

// WithFaults - wraps page so that its first n queries fail as stale
func WithFaults(page interfaces.Page, n int) *FaultyPage {
	return &FaultyPage{page: page, remaining: int64(n)}
}

// QueryAll - fails while faults remain, then delegates
func (f *FaultyPage) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	atomic.AddInt64(&f.calls, 1)
	if atomic.AddInt64(&f.remaining, -1) >= 0 {
		return nil, entities.Stale(fmt.Errorf("document re-rendered while querying %q", selector))
	}
	return f.page.QueryAll(ctx, selector)
}

// Calls returns how many queries reached the page
func (f *FaultyPage) Calls() int {
	return int(atomic.LoadInt64(&f.calls))
}
