// Package chromedp_render implements the render session, the color
// sample collector and the mobile usability auditor on headless Chrome
// via chromedp.
package chromedp_render

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/user/designaudit-service/internal/repository"
)

// Mobile emulation profile (roughly an iPhone 13).
const (
	mobileWidth  = 390
	mobileHeight = 844
	mobileScale  = 3.0
)

// SessionFactory creates isolated render sessions backed by a pool of
// Chrome exec allocators.
type SessionFactory struct {
	allocatorPool *sync.Pool
}

// NewSessionFactory creates the factory and pre-warms the allocator pool.
func NewSessionFactory(poolSize int) *SessionFactory {
	pool := &sync.Pool{
		New: func() interface{} {
			opts := append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
			)
			allocCtx, _ := chromedp.NewExecAllocator(context.Background(), opts...)
			return allocCtx
		},
	}

	for i := 0; i < poolSize; i++ {
		allocCtx := pool.Get().(context.Context)
		pool.Put(allocCtx)
	}

	return &SessionFactory{allocatorPool: pool}
}

// Create opens a fresh tab and starts navigation without waiting for the
// load to finish; readiness is the caller's to poll. The returned
// session must be disposed on every exit path.
func (f *SessionFactory) Create(ctx context.Context, url string) (repository.RenderSession, error) {
	allocCtx := f.allocatorPool.Get().(context.Context)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	// Tie the tab to the attempt budget without losing the explicit
	// dispose path.
	stop := context.AfterFunc(ctx, tabCancel)

	s := &Session{
		ctx:    tabCtx,
		cancel: tabCancel,
		stop:   stop,
		pool:   f.allocatorPool,
		alloc:  allocCtx,
	}

	// page.Navigate returns once navigation starts; load completion is
	// observed through PollReady.
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(cctx context.Context) error {
		_, _, _, err := page.Navigate(url).Do(cctx)
		return err
	}))
	if err != nil {
		s.Dispose()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	return s, nil
}

// Session is one disposable tab context.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
	pool   *sync.Pool
	alloc  context.Context
	once   sync.Once
}

// PollReady reports whether the document reached readyState "complete".
func (s *Session) PollReady(ctx context.Context) (bool, error) {
	var state string
	if err := s.eval(ctx, `document.readyState`, &state); err != nil {
		return false, err
	}
	return state == "complete", nil
}

// QueryDOM returns the number of nodes matching the selector.
func (s *Session) QueryDOM(ctx context.Context, selector string) (int, error) {
	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(selector))
	if err := s.eval(ctx, expr, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// ComputedStyle returns the requested computed style properties of the
// first node matching the selector. Missing nodes yield an empty map.
func (s *Session) ComputedStyle(ctx context.Context, selector string, props []string) (map[string]string, error) {
	quoted := make([]string, len(props))
	for i, p := range props {
		quoted[i] = strconv.Quote(p)
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return {};
		const cs = getComputedStyle(el);
		const out = {};
		for (const p of [%s]) out[p] = cs.getPropertyValue(p);
		return out;
	})()`, strconv.Quote(selector), strings.Join(quoted, ", "))

	out := map[string]string{}
	if err := s.eval(ctx, expr, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, err
	}
	return buf, nil
}

// IsCMSRendered probes for content-management-system markers: a
// generator meta tag or the platform globals the big site builders
// inject. Probe failures report false; the caller only uses this to
// size the settle delay.
func (s *Session) IsCMSRendered(ctx context.Context) bool {
	const expr = `(() => {
		const gen = document.querySelector('meta[name="generator"]');
		const content = gen ? (gen.getAttribute('content') || '') : '';
		if (/squarespace|wordpress|wix|weebly|shopify|webflow/i.test(content)) return true;
		if (window.Static && window.Static.SQUARESPACE_CONTEXT) return true;
		if (window.wixBiSession) return true;
		return !!document.querySelector('link[href*="wp-content"], script[src*="wp-includes"]');
	})()`

	var cms bool
	if err := s.eval(ctx, expr, &cms); err != nil {
		return false
	}
	return cms
}

// EmulateMobile switches the tab to the mobile device profile.
func (s *Session) EmulateMobile(ctx context.Context) error {
	return s.run(ctx,
		emulation.SetDeviceMetricsOverride(mobileWidth, mobileHeight, mobileScale, true),
		emulation.SetTouchEmulationEnabled(true),
	)
}

// Dispose releases the tab and returns the allocator to the pool.
// Idempotent; runs the teardown exactly once.
func (s *Session) Dispose() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.cancel()
		s.pool.Put(s.alloc)
	})
}

// eval evaluates a JS expression in the tab, bounded by the caller ctx.
func (s *Session) eval(ctx context.Context, expr string, out interface{}) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// mergeContexts bounds the tab context by the caller's deadline and
// cancellation while keeping chromedp's tab state.
func mergeContexts(tabCtx, callerCtx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tabCtx)
	stop := context.AfterFunc(callerCtx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
