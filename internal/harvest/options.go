package harvest

import (
	"time"

	"github.com/sells-group/fin-harvest/internal/config"
	"github.com/sells-group/fin-harvest/internal/model"
	"github.com/sells-group/fin-harvest/internal/render"
)

// Options configures the orchestrator and runner.
type Options struct {
	Sites                  []model.TargetSite
	MaxLinksPerSite        int
	LinkKeywords           []string
	ExcludePaths           []string
	MinFragmentLength      int
	SearchDelay            Delay
	LinkDelay              Delay
	CompanyDelay           Delay
	MaxConcurrentCompanies int
	SiteFailureThreshold   int
	Context                render.ContextOptions
}

// OptionsFrom builds Options from the loaded configuration.
func OptionsFrom(cfg *config.Config) Options {
	h := cfg.Harvest
	return Options{
		Sites:                  h.Sites,
		MaxLinksPerSite:        h.MaxLinksPerSite,
		LinkKeywords:           h.LinkKeywords,
		ExcludePaths:           h.ExcludePaths,
		MinFragmentLength:      cfg.Extract.MinFragmentLength,
		SearchDelay:            msDelay(h.SearchDelayMinMs, h.SearchDelayMaxMs),
		LinkDelay:              msDelay(h.LinkDelayMinMs, h.LinkDelayMaxMs),
		CompanyDelay:           msDelay(h.CompanyDelayMinMs, h.CompanyDelayMaxMs),
		MaxConcurrentCompanies: h.MaxConcurrentCompanies,
		SiteFailureThreshold:   h.SiteFailureThreshold,
		Context:                render.ContextOptionsFrom(cfg.Browser),
	}
}

func msDelay(minMs, maxMs int) Delay {
	return Delay{
		Min: time.Duration(minMs) * time.Millisecond,
		Max: time.Duration(maxMs) * time.Millisecond,
	}
}
