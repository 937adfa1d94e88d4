// Package rendertest provides an in-memory render.Engine for tests.
package rendertest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fin-harvest/internal/render"
)

// Engine serves fixed markup per URL and records every navigation.
type Engine struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string][]error
	visits   []string
	gotoOpts []render.GotoOptions
	ctxOpts  []render.ContextOptions
	opened   int
	closed   int
	shut     bool
}

// NewEngine creates an Engine serving pages keyed by URL.
func NewEngine(pages map[string]string) *Engine {
	if pages == nil {
		pages = make(map[string]string)
	}
	return &Engine{pages: pages, failures: make(map[string][]error)}
}

// Fail queues errors returned by the next navigations to url, one per call.
// A nil entry lets that navigation through.
func (e *Engine) Fail(url string, errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[url] = append(e.failures[url], errs...)
}

// Visits returns every URL navigated to, in order.
func (e *Engine) Visits() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.visits...)
}

// GotoOptions returns the options passed to each navigation.
func (e *Engine) GotoOptions() []render.GotoOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]render.GotoOptions(nil), e.gotoOpts...)
}

// ContextOptions returns the options of every context opened.
func (e *Engine) ContextOptions() []render.ContextOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]render.ContextOptions(nil), e.ctxOpts...)
}

// Contexts returns how many contexts were opened and closed.
func (e *Engine) Contexts() (opened, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened, e.closed
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shut
}

// NewContext implements render.Engine.
func (e *Engine) NewContext(_ context.Context, opts render.ContextOptions) (render.BrowsingContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shut {
		return nil, eris.New("rendertest: engine closed")
	}
	e.opened++
	e.ctxOpts = append(e.ctxOpts, opts)
	return &browsingContext{engine: e}, nil
}

// Close implements render.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shut = true
	return nil
}

type browsingContext struct {
	engine *Engine
	once   sync.Once
}

func (c *browsingContext) NewPage(_ context.Context) (render.Page, error) {
	return &Page{engine: c.engine}, nil
}

func (c *browsingContext) Close() error {
	c.once.Do(func() {
		c.engine.mu.Lock()
		c.engine.closed++
		c.engine.mu.Unlock()
	})
	return nil
}

// Page is a render.Page backed by an Engine.
type Page struct {
	engine *Engine
	html   string
}

// NewPage returns a standalone page served by e.
func (e *Engine) NewPage() *Page {
	return &Page{engine: e}
}

// Goto implements render.Page.
func (p *Page) Goto(ctx context.Context, url string, opts render.GotoOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := p.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	e.visits = append(e.visits, url)
	e.gotoOpts = append(e.gotoOpts, opts)

	if q := e.failures[url]; len(q) > 0 {
		e.failures[url] = q[1:]
		if q[0] != nil {
			return q[0]
		}
	}

	html, ok := e.pages[url]
	if !ok {
		return eris.Errorf("rendertest: no page for %s", url)
	}
	p.html = html
	return nil
}

// Content implements render.Page.
func (p *Page) Content(_ context.Context) (string, error) {
	return p.html, nil
}
