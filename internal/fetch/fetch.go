// Package fetch navigates a page to a URL under a timeout and a bounded
// retry policy, then hands back the parsed document.
package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fin-harvest/internal/config"
	"github.com/sells-group/fin-harvest/internal/document"
	"github.com/sells-group/fin-harvest/internal/render"
	"github.com/sells-group/fin-harvest/internal/resilience"
)

// RetryPolicy selects which navigation failures are retried.
type RetryPolicy string

const (
	// RetryTimeout retries navigation timeouts only.
	RetryTimeout RetryPolicy = "timeout"
	// RetryTransient also retries dropped connections and 5xx/429 responses.
	RetryTransient RetryPolicy = "transient"
)

// Options configures a Controller.
type Options struct {
	Timeout           time.Duration
	MaxRetries        int
	BackoffStep       time.Duration
	Settle            time.Duration
	RetryOn           RetryPolicy
	WaitUntil         render.WaitUntil
	RequestsPerSecond float64
}

// OptionsFrom converts config values to Options.
func OptionsFrom(cfg config.FetchConfig) Options {
	return Options{
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.MaxRetries,
		BackoffStep:       time.Duration(cfg.BackoffStepMs) * time.Millisecond,
		Settle:            time.Duration(cfg.SettleMs) * time.Millisecond,
		RetryOn:           RetryPolicy(cfg.RetryOn),
		WaitUntil:         render.WaitUntil(cfg.WaitUntil),
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

// Controller performs navigations. It never returns errors to callers:
// failures are logged and reported as false.
type Controller struct {
	opts Options
	wait func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option customizes a Controller.
type Option func(*Controller)

// WithWait replaces the function used for backoff and settle pauses.
func WithWait(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.wait = fn }
}

// New creates a Controller.
func New(opts Options, options ...Option) *Controller {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.WaitUntil == "" {
		opts.WaitUntil = render.WaitDOMContentLoaded
	}
	if opts.RetryOn == "" {
		opts.RetryOn = RetryTimeout
	}
	c := &Controller{
		opts:     opts,
		wait:     resilience.Sleep,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Fetch navigates page to rawURL and parses the rendered markup.
func (c *Controller) Fetch(ctx context.Context, page render.Page, rawURL string) (*document.Document, bool) {
	if !c.Navigate(ctx, page, rawURL) {
		return nil, false
	}

	html, err := page.Content(ctx)
	if err != nil {
		zap.L().Warn("read page content failed", zap.String("url", rawURL), zap.Error(err))
		return nil, false
	}

	doc, err := document.Parse(html)
	if err != nil {
		zap.L().Warn("parse page failed", zap.String("url", rawURL), zap.Error(err))
		return nil, false
	}
	return doc, true
}

// Navigate loads rawURL into page, retrying per the configured policy, and
// pauses for the settle interval on success.
func (c *Controller) Navigate(ctx context.Context, page render.Page, rawURL string) bool {
	retry := resilience.RetryConfig{
		MaxAttempts: c.opts.MaxRetries + 1,
		Backoff:     resilience.LinearBackoff(c.opts.BackoffStep),
		Wait:        c.wait,
		ShouldRetry: c.shouldRetry,
		OnRetry:     resilience.RetryLogger("navigation", zap.String("url", rawURL)),
	}
	gotoOpts := render.GotoOptions{Timeout: c.opts.Timeout, WaitUntil: c.opts.WaitUntil}

	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		if err := c.throttle(ctx, rawURL); err != nil {
			return err
		}
		return page.Goto(ctx, rawURL, gotoOpts)
	})
	if err != nil {
		if resilience.IsExhausted(err) {
			zap.L().Error("navigation retries exhausted",
				zap.String("url", rawURL),
				zap.Int("attempts", retry.MaxAttempts),
				zap.Error(err),
			)
		} else {
			zap.L().Error("navigation failed", zap.String("url", rawURL), zap.Error(err))
		}
		return false
	}

	if c.opts.Settle > 0 {
		if err := c.wait(ctx, c.opts.Settle); err != nil {
			return false
		}
	}
	return true
}

func (c *Controller) shouldRetry(err error) bool {
	if render.IsTimeout(err) {
		return true
	}
	return c.opts.RetryOn == RetryTransient && resilience.IsTransient(err)
}

// throttle waits on the per-host limiter when a request rate is set.
func (c *Controller) throttle(ctx context.Context, rawURL string) error {
	if c.opts.RequestsPerSecond <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	c.mu.Lock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(c.opts.RequestsPerSecond), 1)
		c.limiters[host] = lim
	}
	c.mu.Unlock()

	return lim.Wait(ctx)
}
