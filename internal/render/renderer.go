// Package render turns URLs into rendered page markup. Two engines are
// provided: a headless Chrome engine driven over CDP and a static engine
// that performs plain HTTP GETs.
package render

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-harvest/internal/config"
)

// WaitUntil selects the page lifecycle event a navigation waits for.
type WaitUntil string

const (
	// WaitDOMContentLoaded returns once the DOM is parsed.
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	// WaitLoad returns once the load event fires.
	WaitLoad WaitUntil = "load"
)

// Engine is a launched browser. It is shared for a whole run and only
// used to spawn contexts.
type Engine interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowsingContext, error)
	Close() error
}

// BrowsingContext is an isolated session: cookies and storage never leak
// between contexts.
type BrowsingContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	// Goto navigates to url. A navigation that runs past opts.Timeout
	// returns a *TimeoutError.
	Goto(ctx context.Context, url string, opts GotoOptions) error
	// Content returns the current document markup.
	Content(ctx context.Context) (string, error)
}

// ContextOptions configures a new browsing context.
type ContextOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// GotoOptions configures a single navigation.
type GotoOptions struct {
	Timeout   time.Duration
	WaitUntil WaitUntil
}

// ContextOptionsFrom maps browser config onto per-context options.
func ContextOptionsFrom(cfg config.BrowserConfig) ContextOptions {
	return ContextOptions{
		UserAgent:      cfg.UserAgent,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
	}
}

// Launch starts the engine named by cfg.Engine.
func Launch(ctx context.Context, cfg config.BrowserConfig) (Engine, error) {
	switch cfg.Engine {
	case "chromedp", "":
		return NewChromeEngine(ctx, cfg)
	case "static":
		return NewStaticEngine(), nil
	default:
		return nil, eris.Errorf("render: unknown engine %q", cfg.Engine)
	}
}
