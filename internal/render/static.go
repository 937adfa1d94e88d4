package render

import (
	"context"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/fin-harvest/internal/resilience"
)

const maxStaticBody = 4 << 20

// StaticEngine renders pages with plain HTTP GETs. No JavaScript runs, so
// it suits server-rendered sites and tests.
type StaticEngine struct {
	transport *http.Transport
}

// NewStaticEngine creates a StaticEngine with its own connection pool.
func NewStaticEngine() *StaticEngine {
	return &StaticEngine{
		transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConnsPerHost: 4,
		},
	}
}

// NewContext returns a context with its own cookie jar.
func (e *StaticEngine) NewContext(_ context.Context, opts ContextOptions) (BrowsingContext, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "render: cookie jar")
	}
	return &staticContext{
		client:    &http.Client{Transport: e.transport, Jar: jar},
		userAgent: opts.UserAgent,
	}, nil
}

// Close drops idle connections.
func (e *StaticEngine) Close() error {
	e.transport.CloseIdleConnections()
	return nil
}

type staticContext struct {
	client    *http.Client
	userAgent string

	mu     sync.Mutex
	closed bool
}

func (c *staticContext) NewPage(_ context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, eris.New("render: context closed")
	}
	return &staticPage{owner: c}, nil
}

func (c *staticContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type staticPage struct {
	owner   *staticContext
	content string
}

func (p *staticPage) Goto(ctx context.Context, url string, opts GotoOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrapf(err, "render: create request for %s", url)
	}
	if p.owner.userAgent != "" {
		req.Header.Set("User-Agent", p.owner.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")

	resp, err := p.owner.client.Do(req)
	if err != nil {
		return classify(ctx, url, opts.Timeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody+1))
	if err != nil {
		return classify(ctx, url, opts.Timeout, err)
	}
	if len(body) > maxStaticBody {
		body = body[:maxStaticBody]
		zap.L().Warn("response body truncated",
			zap.String("url", url),
			zap.Int("limit_bytes", maxStaticBody),
		)
	}

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return &BlockedError{URL: url, Type: bt}
	}

	if resp.StatusCode >= 400 {
		err := eris.Errorf("render: %s returned status %d", url, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	text, err := decodeBody(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return err
	}
	p.content = text
	return nil
}

func (p *staticPage) Content(_ context.Context) (string, error) {
	return p.content, nil
}

// classify maps a transport error to a TimeoutError when the navigation
// deadline fired, and marks dropped connections as transient.
func classify(ctx context.Context, url string, timeout time.Duration, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(eris.Wrapf(err, "render: get %s", url), 0)
	}
	return eris.Wrapf(err, "render: get %s", url)
}

// decodeBody converts body to UTF-8 using the charset in contentType.
func decodeBody(body []byte, contentType string) (string, error) {
	charset := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		charset = strings.ToLower(strings.TrimSpace(params["charset"]))
	}
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", eris.Wrapf(err, "render: unsupported charset %q", charset)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "render: decode %s body", charset)
	}
	return string(out), nil
}
