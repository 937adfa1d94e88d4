package render

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot wall detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockAccess     BlockType = "access_denied"
)

// DetectBlock inspects a response for signs of bot protection. resp may be
// nil when only markup is available, as with a rendered page.
func DetectBlock(resp *http.Response, body []byte) BlockType {
	if resp != nil && (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable) {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-mitigated") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		strings.Contains(lower, "cf-chl-") {
		return BlockCloudflare
	}

	if strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "are you a robot") {
		return BlockCaptcha
	}

	// Akamai and similar edge denials are short pages.
	if len(body) < 4096 && strings.Contains(lower, "access denied") &&
		strings.Contains(lower, "reference #") {
		return BlockAccess
	}

	return BlockNone
}
