package model

// TargetSite is a financial-data website visited for every company.
type TargetSite struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	// PathTemplate is a company page path containing "{slug}". Empty means
	// the site is queried through its generic /search?q= endpoint.
	PathTemplate string `json:"path_template,omitempty" yaml:"path_template" mapstructure:"path_template"`
}

// DefaultTargetSites returns the built-in site list, in visit order.
func DefaultTargetSites() []TargetSite {
	return []TargetSite{
		{Name: "moneycontrol", BaseURL: "https://www.moneycontrol.com", PathTemplate: "/stocks/company-info/{slug}"},
		{Name: "screener", BaseURL: "https://www.screener.in", PathTemplate: "/company/{slug}"},
		{Name: "investing_india", BaseURL: "https://in.investing.com"},
		{Name: "economic_times", BaseURL: "https://economictimes.indiatimes.com"},
		{Name: "tickertape", BaseURL: "https://www.tickertape.in"},
	}
}
