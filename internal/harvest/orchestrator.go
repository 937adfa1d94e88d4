package harvest

import (
	"context"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fin-harvest/internal/document"
	"github.com/sells-group/fin-harvest/internal/extract"
	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/render"
	"github.com/sells-group/fin-harvest/internal/resilience"
)

// Navigator loads URLs into pages. *fetch.Controller implements it.
type Navigator interface {
	extract.Fetcher
	Navigate(ctx context.Context, page render.Page, url string) bool
}

// Orchestrator walks the configured sites for one company at a time.
type Orchestrator struct {
	opts     Options
	nav      Navigator
	pacer    Pacer
	exclude  *PathExcluder
	breakers *resilience.Breakers
}

// NewOrchestrator creates an Orchestrator. A positive SiteFailureThreshold
// enables a per-site circuit breaker shared across companies.
func NewOrchestrator(opts Options, nav Navigator, pacer Pacer) *Orchestrator {
	if opts.MaxLinksPerSite <= 0 {
		opts.MaxLinksPerSite = 3
	}
	o := &Orchestrator{opts: opts, nav: nav, pacer: pacer, exclude: NewPathExcluder(opts.ExcludePaths)}
	if opts.SiteFailureThreshold > 0 {
		o.breakers = resilience.NewBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: opts.SiteFailureThreshold,
			OnStateChange: func(name string, from, to resilience.CircuitState) {
				zap.L().Warn("site circuit state changed",
					zap.String("site", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	return o
}

// ProcessCompany visits every site for company inside bctx. Results are
// appended to the run aggregate as they are found and also returned.
// A failing site is logged and skipped.
func (o *Orchestrator) ProcessCompany(ctx context.Context, bctx render.BrowsingContext, rc *model.RunContext, company string) []model.CompanyCategoryResult {
	page, err := bctx.NewPage(ctx)
	if err != nil {
		zap.L().Error("open page failed", zap.String("company", company), zap.Error(err))
		return nil
	}
	ex := extract.New(o.nav, rc.Visited, o.opts.MinFragmentLength)

	var out []model.CompanyCategoryResult
	for _, site := range o.opts.Sites {
		if ctx.Err() != nil {
			break
		}
		res, err := o.processSite(ctx, page, ex, rc, site, company)
		out = append(out, res...)
		if err != nil {
			zap.L().Warn("site processing failed",
				zap.String("company", company),
				zap.String("site", site.Name),
				zap.Error(err),
			)
		}
	}
	return out
}

func (o *Orchestrator) processSite(ctx context.Context, page render.Page, ex *extract.Extractor, rc *model.RunContext, site model.TargetSite, company string) (results []model.CompanyCategoryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic: %v", r)
		}
	}()

	var cb *resilience.CircuitBreaker
	if o.breakers != nil {
		cb = o.breakers.Get(site.Name)
		if err := cb.Allow(); err != nil {
			return nil, err
		}
	}

	base, err := url.Parse(site.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "parse base url %q", site.BaseURL)
	}

	searchURL := SearchURL(site, company)
	ok := o.nav.Navigate(ctx, page, searchURL)
	if cb != nil {
		cb.Record(ok)
	}
	if !ok {
		return nil, eris.Errorf("search page %s unavailable", searchURL)
	}

	if err := o.pacer.Pause(ctx, o.opts.SearchDelay); err != nil {
		return nil, err
	}

	html, err := page.Content(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "read search page")
	}
	doc, err := document.Parse(html)
	if err != nil {
		return nil, err
	}

	links := o.exclude.Filter(FilterLinks(doc.Links(base), company, o.opts.LinkKeywords))
	if len(links) > o.opts.MaxLinksPerSite {
		links = links[:o.opts.MaxLinksPerSite]
	}
	zap.L().Debug("candidate links",
		zap.String("company", company),
		zap.String("site", site.Name),
		zap.Strings("links", links),
	)

	for i, link := range links {
		if i > 0 {
			if err := o.pacer.Pause(ctx, o.opts.LinkDelay); err != nil {
				return results, err
			}
		}
		for _, cr := range ex.ExtractAll(ctx, page, link) {
			r := model.CompanyCategoryResult{
				Company:          company,
				Source:           site.Name,
				ExtractionRecord: cr.Record,
			}
			rc.Aggregate.Append(cr.Category, r)
			results = append(results, r)
		}
	}
	return results, nil
}
