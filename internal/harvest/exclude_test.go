package harvest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathExcluder_Excluded(t *testing.T) {
	e := NewPathExcluder([]string{"/news/*", "/*.pdf", " ", "/Videos/*"})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.moneycontrol.com/news/business/tcs-q3", true},
		{"https://www.moneycontrol.com/news", true},
		{"https://www.moneycontrol.com/newsroom/tcs", false},
		{"https://www.screener.in/annual-report.pdf", true},
		{"https://www.screener.in/videos/tcs-results", true},
		{"https://www.screener.in/company/TCS/", false},
		{"://bad url", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Excluded(tt.url))
		})
	}
}

func TestPathExcluder_NoPatterns(t *testing.T) {
	e := NewPathExcluder(nil)
	assert.False(t, e.Excluded("://bad url"))

	links := []string{"https://a.example/news/x", "https://a.example/stock"}
	assert.Equal(t, links, e.Filter(links))
}

func TestPathExcluder_Filter(t *testing.T) {
	e := NewPathExcluder([]string{"/news/*"})
	links := []string{
		"https://a.example/news/tcs",
		"https://a.example/stocks/tcs",
		"https://a.example/company/tcs",
	}
	assert.Equal(t, []string{
		"https://a.example/stocks/tcs",
		"https://a.example/company/tcs",
	}, e.Filter(links))
	assert.Len(t, links, 3)
}
