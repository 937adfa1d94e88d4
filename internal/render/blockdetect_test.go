package render

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	cfHeader := http.Header{}
	cfHeader.Set("cf-ray", "8abc")

	tests := []struct {
		name string
		resp *http.Response
		body string
		want BlockType
	}{
		{"clean page", &http.Response{StatusCode: 200}, "<html><body>Revenue growth 12%</body></html>", BlockNone},
		{"cloudflare header", &http.Response{StatusCode: 403, Header: cfHeader}, "", BlockCloudflare},
		{"cloudflare header ignored on 200", &http.Response{StatusCode: 200, Header: cfHeader}, "ok", BlockNone},
		{"cloudflare challenge body", nil, "<title>Just a moment</title>Checking your browser before accessing", BlockCloudflare},
		{"recaptcha", nil, `<div class="g-recaptcha" data-sitekey="x"></div>`, BlockCaptcha},
		{"akamai access denied", nil, "<h1>Access Denied</h1>Reference #18.abc", BlockAccess},
		{"long page mentioning access denied", nil, "Access Denied Reference #1" + strings.Repeat("x", 5000), BlockNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.resp != nil && tt.resp.Header == nil {
				tt.resp.Header = http.Header{}
			}
			assert.Equal(t, tt.want, DetectBlock(tt.resp, []byte(tt.body)))
		})
	}
}
