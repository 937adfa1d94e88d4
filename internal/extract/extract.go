// Package extract scans rendered pages for text that mentions a financial
// category and turns it into extraction records.
package extract

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sells-group/fin-harvest/internal/document"
	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/quantity"
	"github.com/sells-group/fin-harvest/internal/render"
)

// DefaultMinFragmentLength is the trimmed length a fragment must exceed.
const DefaultMinFragmentLength = 10

// Fetcher loads a URL into a page and returns the parsed document.
type Fetcher interface {
	Fetch(ctx context.Context, page render.Page, url string) (*document.Document, bool)
}

// CategoryRecord pairs a record with the category it was produced for.
type CategoryRecord struct {
	Category model.Category
	Record   model.ExtractionRecord
}

// Extractor fetches pages and collects category fragments, skipping URLs
// that already produced a record in this run.
type Extractor struct {
	fetcher Fetcher
	visited *model.VisitedSet
	minLen  int
	now     func() time.Time
}

// New creates an Extractor sharing the run's visited set.
func New(f Fetcher, visited *model.VisitedSet, minLen int) *Extractor {
	if minLen < 0 {
		minLen = DefaultMinFragmentLength
	}
	return &Extractor{
		fetcher: f,
		visited: visited,
		minLen:  minLen,
		now:     time.Now,
	}
}

// Extract produces a record for a single category, or nil when the URL was
// already visited, the fetch failed, or nothing matched.
func (e *Extractor) Extract(ctx context.Context, page render.Page, url string, cat model.Category) *model.ExtractionRecord {
	if e.visited.Contains(url) {
		return nil
	}
	doc, ok := e.fetcher.Fetch(ctx, page, url)
	if !ok {
		return nil
	}
	rec := Collect(doc, url, cat, e.minLen, e.now())
	if rec != nil {
		e.visited.Add(url)
	}
	return rec
}

// ExtractAll navigates once and tests every category against the same
// document, in AllCategories order.
func (e *Extractor) ExtractAll(ctx context.Context, page render.Page, url string) []CategoryRecord {
	if e.visited.Contains(url) {
		return nil
	}
	doc, ok := e.fetcher.Fetch(ctx, page, url)
	if !ok {
		return nil
	}

	now := e.now()
	var out []CategoryRecord
	for _, cat := range model.AllCategories() {
		if rec := Collect(doc, url, cat, e.minLen, now); rec != nil {
			out = append(out, CategoryRecord{Category: cat, Record: *rec})
		}
	}
	if len(out) > 0 {
		e.visited.Add(url)
	}
	return out
}

// Collect scans doc for block elements whose own text matches the category
// and for tables that mention it anywhere, in which case every row and cell
// of the table is taken. Fragments longer than minLen are cleaned and
// de-duplicated in first-seen order. Returns nil when nothing survives.
func Collect(doc *document.Document, url string, cat model.Category, minLen int, now time.Time) *model.ExtractionRecord {
	re := cat.Pattern()
	if doc == nil || re == nil {
		return nil
	}

	candidates := doc.FindByText(document.BlockKinds, re)
	for _, table := range doc.Tables() {
		if document.TableMentions(table, re) {
			candidates = append(candidates, document.TableCells(table)...)
		}
	}

	seen := make(map[string]bool)
	var frags model.Fragments
	for _, s := range candidates {
		text := strings.TrimSpace(document.VisibleText(s))
		if utf8.RuneCountInString(text) <= minLen {
			continue
		}
		cleaned := quantity.CleanText(text)
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		frags = append(frags, cleaned)
	}

	if len(frags) == 0 {
		return nil
	}
	return &model.ExtractionRecord{URL: url, Timestamp: now, TextData: frags}
}
