package harvest

import (
	"net/url"
	"strings"

	"github.com/sells-group/fin-harvest/internal/model"
)

const searchSuffix = " stock financial results"

// Slug turns a company name into the hyphenated form used in site paths.
func Slug(company string) string {
	return strings.ReplaceAll(company, " ", "-")
}

// SearchURL builds the first URL visited on site for company: the site's
// company path when it has one, its generic search endpoint otherwise.
func SearchURL(site model.TargetSite, company string) string {
	base := strings.TrimRight(site.BaseURL, "/")
	if site.PathTemplate != "" {
		return base + strings.ReplaceAll(site.PathTemplate, "{slug}", Slug(company))
	}
	q := strings.ReplaceAll(url.QueryEscape(company+searchSuffix), "+", "%20")
	return base + "/search?q=" + q
}

// FilterLinks keeps links whose lowercased address contains one of the
// keywords or the lowercased company slug. Order is preserved and
// duplicates are dropped.
func FilterLinks(links []string, company string, keywords []string) []string {
	slug := strings.ToLower(Slug(company))
	seen := make(map[string]bool)
	var out []string
	for _, link := range links {
		if seen[link] {
			continue
		}
		lower := strings.ToLower(link)
		if strings.Contains(lower, slug) || containsAny(lower, keywords) {
			seen[link] = true
			out = append(out, link)
		}
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
