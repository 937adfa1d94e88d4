package harvest

import (
	"net/url"
	"path"
	"strings"
)

// PathExcluder drops candidate links whose path matches a glob pattern.
// A pattern ending in "/*" also covers every deeper path under it, so
// "/news/*" excludes "/news/2024/q3/results".
type PathExcluder struct {
	patterns []string
}

// NewPathExcluder creates a PathExcluder. Patterns are matched
// case-insensitively; no patterns excludes nothing.
func NewPathExcluder(patterns []string) *PathExcluder {
	lower := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lower = append(lower, strings.ToLower(p))
		}
	}
	return &PathExcluder{patterns: lower}
}

// Excluded reports whether rawURL should be skipped. Unparseable URLs are
// always excluded.
func (e *PathExcluder) Excluded(rawURL string) bool {
	if len(e.patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	p := strings.ToLower(u.Path)
	for _, pattern := range e.patterns {
		if globMatch(pattern, p) {
			return true
		}
	}
	return false
}

// Filter returns links in order with excluded entries removed.
func (e *PathExcluder) Filter(links []string) []string {
	if len(e.patterns) == 0 {
		return links
	}
	out := links[:0:0]
	for _, l := range links {
		if !e.Excluded(l) {
			out = append(out, l)
		}
	}
	return out
}

func globMatch(pattern, p string) bool {
	if ok, _ := path.Match(pattern, p); ok {
		return true
	}
	if dir, ok := strings.CutSuffix(pattern, "/*"); ok {
		return p == dir || strings.HasPrefix(p, dir+"/")
	}
	return false
}
