package repository

import "context"

// RenderSession is an isolated, disposable page-rendering context used
// for exactly one analysis attempt. Lifetime is caller-controlled:
// create, wait until ready, use, dispose. Dispose must be safe to call
// on every exit path and runs the underlying teardown exactly once.
type RenderSession interface {
	// PollReady reports whether the page has reached a ready/complete
	// state. It is polled at a bounded interval until the attempt
	// budget expires.
	PollReady(ctx context.Context) (bool, error)
	// QueryDOM returns the number of nodes matching the selector.
	QueryDOM(ctx context.Context, selector string) (int, error)
	// ComputedStyle returns the requested computed style properties of
	// the first node matching the selector.
	ComputedStyle(ctx context.Context, selector string, props []string) (map[string]string, error)
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// IsCMSRendered probes the loaded page for content-management-system
	// markers. CMS-rendered pages need a longer settle delay before
	// style extraction is reliable.
	IsCMSRendered(ctx context.Context) bool
	// EmulateMobile switches the session's viewport to a mobile device
	// profile for the mobile passes.
	EmulateMobile(ctx context.Context) error
	// Dispose releases the session. Idempotent.
	Dispose()
}

// RenderSessionFactory creates render sessions. Creation failures map
// to ErrSessionCreationFailed and are retried by the attempt manager.
type RenderSessionFactory interface {
	Create(ctx context.Context, url string) (RenderSession, error)
}
