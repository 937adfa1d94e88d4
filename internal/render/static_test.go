package render

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/fin-harvest/internal/config"
	"github.com/sells-group/fin-harvest/internal/resilience"
)

func openStaticPage(t *testing.T, ua string) (Page, BrowsingContext) {
	t.Helper()
	eng := NewStaticEngine()
	t.Cleanup(func() { _ = eng.Close() })

	bctx, err := eng.NewContext(context.Background(), ContextOptions{UserAgent: ua})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bctx.Close() })

	page, err := bctx.NewPage(context.Background())
	require.NoError(t, err)
	return page, bctx
}

func TestStaticPage_GotoAndContent(t *testing.T) {
	uaCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body><p>Net profit ₹500 crore</p></body></html>"))
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, config.DefaultUserAgent)
	require.NoError(t, page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: 5 * time.Second}))

	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "Net profit ₹500 crore")
	assert.Equal(t, config.DefaultUserAgent, <-uaCh)
}

func TestStaticPage_DecodesCharset(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("<p>Café revenue €5 bn</p>")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte(encoded))
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, "")
	require.NoError(t, page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: 5 * time.Second}))

	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>Café revenue €5 bn</p>", html)
}

func TestStaticPage_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	page, _ := openStaticPage(t, "")
	err := page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, srv.URL, te.URL)
	assert.Equal(t, 50*time.Millisecond, te.Timeout)
}

func TestStaticPage_CallerCancelIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page, _ := openStaticPage(t, "")
	err := page.Goto(ctx, srv.URL, GotoOptions{Timeout: time.Second})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestStaticPage_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "123")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, "")
	err := page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: time.Second})
	require.Error(t, err)
	assert.True(t, IsBlocked(err))
	assert.False(t, IsTimeout(err))
}

func TestStaticPage_StatusErrors(t *testing.T) {
	var code atomic.Int32
	code.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(code.Load()))
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, "")

	err := page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: time.Second})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))

	code.Store(http.StatusNotFound)
	err = page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: time.Second})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func TestStaticContext_IsolatesCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err == nil {
			_, _ = w.Write([]byte("returning"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		_, _ = w.Write([]byte("first"))
	}))
	defer srv.Close()

	eng := NewStaticEngine()
	defer eng.Close()

	visit := func(bctx BrowsingContext) string {
		page, err := bctx.NewPage(context.Background())
		require.NoError(t, err)
		require.NoError(t, page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: time.Second}))
		html, err := page.Content(context.Background())
		require.NoError(t, err)
		return html
	}

	a, err := eng.NewContext(context.Background(), ContextOptions{})
	require.NoError(t, err)
	assert.Equal(t, "first", visit(a))
	assert.Equal(t, "returning", visit(a))
	require.NoError(t, a.Close())

	b, err := eng.NewContext(context.Background(), ContextOptions{})
	require.NoError(t, err)
	assert.Equal(t, "first", visit(b))

	_, err = a.NewPage(context.Background())
	assert.Error(t, err)
}

func TestLaunch(t *testing.T) {
	eng, err := Launch(context.Background(), config.BrowserConfig{Engine: "static"})
	require.NoError(t, err)
	assert.IsType(t, &StaticEngine{}, eng)
	require.NoError(t, eng.Close())

	_, err = Launch(context.Background(), config.BrowserConfig{Engine: "lynx"})
	assert.Error(t, err)
}

func TestContextOptionsFrom(t *testing.T) {
	opts := ContextOptionsFrom(config.BrowserConfig{UserAgent: "ua", ViewportWidth: 1920, ViewportHeight: 1080})
	assert.Equal(t, ContextOptions{UserAgent: "ua", ViewportWidth: 1920, ViewportHeight: 1080}, opts)
}

func TestStaticPage_TruncatesLargeBodyWithWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(bytes.Repeat([]byte("a"), maxStaticBody+512))
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, "")
	require.NoError(t, page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: 5 * time.Second}))

	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Len(t, html, maxStaticBody)

	entries := logs.FilterMessage("response body truncated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, srv.URL, entries[0].ContextMap()["url"])
}

func TestStaticPage_BodyAtLimitIsNotTruncated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("b"), maxStaticBody))
	}))
	defer srv.Close()

	page, _ := openStaticPage(t, "")
	require.NoError(t, page.Goto(context.Background(), srv.URL, GotoOptions{Timeout: 5 * time.Second}))

	html, err := page.Content(context.Background())
	require.NoError(t, err)
	assert.Len(t, html, maxStaticBody)
	assert.Zero(t, logs.Len())
}
