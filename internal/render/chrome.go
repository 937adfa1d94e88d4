package render

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-harvest/internal/config"
)

// ChromeEngine drives a single headless Chrome process.
type ChromeEngine struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromeEngine launches Chrome and waits for the browser to come up.
func NewChromeEngine(ctx context.Context, cfg config.BrowserConfig) (*ChromeEngine, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	// The browser outlives the launching context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "render: launch chrome")
	}

	return &ChromeEngine{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewContext opens an incognito browser context.
func (e *ChromeEngine) NewContext(_ context.Context, opts ContextOptions) (BrowsingContext, error) {
	bctx, cancel := chromedp.NewContext(e.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		return nil, eris.Wrap(err, "render: new browser context")
	}
	return &chromeContext{ctx: bctx, cancel: cancel, opts: opts}, nil
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() error {
	err := chromedp.Cancel(e.browserCtx)
	e.browserCancel()
	e.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return eris.Wrap(err, "render: close chrome")
	}
	return nil
}

type chromeContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ContextOptions

	mu       sync.Mutex
	usedRoot bool
	tabs     []context.CancelFunc
}

// NewPage hands out the context's initial tab first, then opens new tabs
// in the same browser context.
func (c *chromeContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	tabCtx := c.ctx
	if c.usedRoot {
		var cancel context.CancelFunc
		tabCtx, cancel = chromedp.NewContext(c.ctx)
		c.tabs = append(c.tabs, cancel)
	}
	c.usedRoot = true
	c.mu.Unlock()

	// A new tab's target is attached by its first Run, which must use the
	// tab context itself so the target outlives this call.
	if tabCtx != c.ctx {
		if err := chromedp.Run(tabCtx); err != nil {
			return nil, eris.Wrap(err, "render: open tab")
		}
	}

	var actions []chromedp.Action
	if c.opts.ViewportWidth > 0 && c.opts.ViewportHeight > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(c.opts.ViewportWidth), int64(c.opts.ViewportHeight)))
	}
	if c.opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(c.opts.UserAgent))
	}

	runCtx, stop := withCaller(tabCtx, ctx)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return nil, eris.Wrap(err, "render: open tab")
	}
	return &chromePage{ctx: tabCtx}, nil
}

func (c *chromeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.tabs {
		cancel()
	}
	c.tabs = nil
	c.cancel()
	return nil
}

type chromePage struct {
	ctx context.Context
	url string
}

func (p *chromePage) Goto(ctx context.Context, url string, opts GotoOptions) error {
	runCtx, stop := withCaller(p.ctx, ctx)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, opts.Timeout)
		defer cancel()
	}

	p.url = url
	var nav chromedp.Action = chromedp.Navigate(url)
	if opts.WaitUntil != WaitLoad {
		nav = navigateDOMReady(url)
	}

	err := chromedp.Run(runCtx, nav)
	if err == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return &TimeoutError{URL: url, Timeout: opts.Timeout, Err: err}
	}
	return eris.Wrapf(err, "render: navigate %s", url)
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	runCtx, stop := withCaller(p.ctx, ctx)
	defer stop()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "render: read page content")
	}
	if bt := DetectBlock(nil, []byte(html)); bt != BlockNone {
		return "", &BlockedError{URL: p.url, Type: bt}
	}
	return html, nil
}

// navigateDOMReady navigates and returns on DOMContentLoaded rather than
// the load event.
func navigateDOMReady(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ready := make(chan struct{})
		var once sync.Once
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev any) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				once.Do(func() { close(ready) })
			}
		})

		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return eris.Errorf("page load error %s", res.ErrorText)
		}

		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// withCaller derives a context from the chromedp tab context that is also
// cancelled when the caller's context is.
func withCaller(tab, caller context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
