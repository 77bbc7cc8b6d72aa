package interfaces

import (
	"context"
)

// Element is a live handle to a node in the page, owned by the backend.
// Holders keep it only for the duration of one evaluation.
type Element interface {
	// Text returns the element's text content
	Text(ctx context.Context) (string, error)

	// QueryAll finds descendants matching a CSS selector
	QueryAll(ctx context.Context, selector string) ([]Element, error)

	// Parent returns the immediate parent element, or nil at the document root
	Parent(ctx context.Context) (Element, error)

	// SameAs reports whether other refers to the same node
	SameAs(ctx context.Context, other Element) (bool, error)

	// Click clicks on the element
	Click(ctx context.Context) error

	// Fill types value into an input-like element
	Fill(ctx context.Context, value string) error
}

// Page is the query capability of the current document in one browser session
type Page interface {
	// QueryAll finds elements matching a CSS selector in document order
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// DownloadNotifier is implemented by backends that expose a native
// download-completed event. SaveDownload runs trigger, waits for the download
// it starts and stores the file in dir, returning the saved file name.
type DownloadNotifier interface {
	SaveDownload(ctx context.Context, dir string, trigger func() error) (string, error)
}

// Screenshotter captures a PNG of the current page
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is a browser session opened by one of the backends
type Session interface {
	Page

	// Navigate navigates to a URL
	Navigate(ctx context.Context, url string) error

	// Backend returns the backend name of the session
	Backend() string

	// Close closes the browser
	Close() error
}
