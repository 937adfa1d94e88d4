package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/fin-harvest/internal/model"
)

// DefaultUserAgent is the desktop Chrome user agent presented to target sites.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds the full application configuration.
type Config struct {
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// HarvestConfig configures the per-company site walk.
type HarvestConfig struct {
	Sites                  []model.TargetSite `yaml:"sites" mapstructure:"sites"`
	Companies              []string           `yaml:"companies" mapstructure:"companies"`
	MaxLinksPerSite        int                `yaml:"max_links_per_site" mapstructure:"max_links_per_site"`
	LinkKeywords           []string           `yaml:"link_keywords" mapstructure:"link_keywords"`
	ExcludePaths           []string           `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	LinkDelayMinMs         int                `yaml:"link_delay_min_ms" mapstructure:"link_delay_min_ms"`
	LinkDelayMaxMs         int                `yaml:"link_delay_max_ms" mapstructure:"link_delay_max_ms"`
	CompanyDelayMinMs      int                `yaml:"company_delay_min_ms" mapstructure:"company_delay_min_ms"`
	CompanyDelayMaxMs      int                `yaml:"company_delay_max_ms" mapstructure:"company_delay_max_ms"`
	SearchDelayMinMs       int                `yaml:"search_delay_min_ms" mapstructure:"search_delay_min_ms"`
	SearchDelayMaxMs       int                `yaml:"search_delay_max_ms" mapstructure:"search_delay_max_ms"`
	MaxConcurrentCompanies int                `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	SiteFailureThreshold   int                `yaml:"site_failure_threshold" mapstructure:"site_failure_threshold"`
}

// FetchConfig configures navigation timeouts and retries.
type FetchConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffStepMs     int     `yaml:"backoff_step_ms" mapstructure:"backoff_step_ms"`
	SettleMs          int     `yaml:"settle_ms" mapstructure:"settle_ms"`
	RetryOn           string  `yaml:"retry_on" mapstructure:"retry_on"`
	WaitUntil         string  `yaml:"wait_until" mapstructure:"wait_until"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ExtractConfig configures fragment collection.
type ExtractConfig struct {
	MinFragmentLength int `yaml:"min_fragment_length" mapstructure:"min_fragment_length"`
}

// BrowserConfig configures the rendering engine.
type BrowserConfig struct {
	Engine         string `yaml:"engine" mapstructure:"engine"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	ViewportWidth  int    `yaml:"viewport_width" mapstructure:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height" mapstructure:"viewport_height"`
	ExecPath       string `yaml:"exec_path" mapstructure:"exec_path"`
}

// OutputConfig configures the result writer.
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("harvest.sites", defaultSites())
	v.SetDefault("harvest.companies", []string{"TCS", "Reliance Industries", "HDFC Bank"})
	v.SetDefault("harvest.max_links_per_site", 3)
	v.SetDefault("harvest.link_keywords", []string{"stock", "company", "financial", "share", "quote"})
	v.SetDefault("harvest.exclude_paths", []string{})
	v.SetDefault("harvest.link_delay_min_ms", 1000)
	v.SetDefault("harvest.link_delay_max_ms", 2000)
	v.SetDefault("harvest.company_delay_min_ms", 2000)
	v.SetDefault("harvest.company_delay_max_ms", 3000)
	v.SetDefault("harvest.search_delay_min_ms", 1000)
	v.SetDefault("harvest.search_delay_max_ms", 2000)
	v.SetDefault("harvest.max_concurrent_companies", 1)
	v.SetDefault("harvest.site_failure_threshold", 0)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_step_ms", 2000)
	v.SetDefault("fetch.settle_ms", 2000)
	v.SetDefault("fetch.retry_on", "timeout")
	v.SetDefault("fetch.wait_until", "domcontentloaded")
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("extract.min_fragment_length", 10)
	v.SetDefault("browser.engine", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("output.dir", "results")
	v.SetDefault("output.formats", []string{"json", "csv"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fin-harvest.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func defaultSites() []map[string]any {
	var out []map[string]any
	for _, s := range model.DefaultTargetSites() {
		out = append(out, map[string]any{
			"name":          s.Name,
			"base_url":      s.BaseURL,
			"path_template": s.PathTemplate,
		})
	}
	return out
}

// Validate checks that the configuration can drive a harvest run.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Harvest.Sites) == 0 {
		errs = append(errs, "harvest.sites must not be empty")
	}
	for i, s := range c.Harvest.Sites {
		if s.Name == "" || s.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("harvest.sites[%d] requires name and base_url", i))
		}
	}
	if c.Harvest.MaxLinksPerSite < 1 {
		errs = append(errs, "harvest.max_links_per_site must be >= 1")
	}
	if c.Harvest.MaxConcurrentCompanies < 1 || c.Harvest.MaxConcurrentCompanies > 16 {
		errs = append(errs, "harvest.max_concurrent_companies must be between 1 and 16")
	}
	if c.Harvest.LinkDelayMinMs > c.Harvest.LinkDelayMaxMs ||
		c.Harvest.CompanyDelayMinMs > c.Harvest.CompanyDelayMaxMs ||
		c.Harvest.SearchDelayMinMs > c.Harvest.SearchDelayMaxMs {
		errs = append(errs, "harvest delay minimums must not exceed maximums")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		errs = append(errs, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, "fetch.max_retries must be >= 0")
	}
	if !slices.Contains([]string{"timeout", "transient"}, c.Fetch.RetryOn) {
		errs = append(errs, fmt.Sprintf("fetch.retry_on %q must be timeout or transient", c.Fetch.RetryOn))
	}
	if !slices.Contains([]string{"domcontentloaded", "load"}, c.Fetch.WaitUntil) {
		errs = append(errs, fmt.Sprintf("fetch.wait_until %q must be domcontentloaded or load", c.Fetch.WaitUntil))
	}
	if !slices.Contains([]string{"chromedp", "static"}, c.Browser.Engine) {
		errs = append(errs, fmt.Sprintf("browser.engine %q must be chromedp or static", c.Browser.Engine))
	}
	for _, f := range c.Output.Formats {
		if !slices.Contains([]string{"json", "csv", "xlsx"}, f) {
			errs = append(errs, fmt.Sprintf("output.formats: unknown format %q", f))
		}
	}
	switch c.Store.Driver {
	case "none":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite, postgres or none", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
