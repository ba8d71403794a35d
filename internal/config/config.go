// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/JakeFAU/catalog-crawler/internal/extract"
	"github.com/JakeFAU/catalog-crawler/internal/normalize"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Schema  SchemaConfig  `mapstructure:"schema"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig describes the target site and its expected size.
type CatalogConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	ListingPattern   string `mapstructure:"listing_pattern"`
	Pages            int    `mapstructure:"pages"`
	PageSize         int    `mapstructure:"page_size"`
	ExpectedPreviews int    `mapstructure:"expected_previews"`
	ExpectedDetails  int    `mapstructure:"expected_details"`
}

// CrawlerConfig governs fan-out, identity rotation and retry pacing.
type CrawlerConfig struct {
	// Concurrency bounds in-flight tasks per phase. 0 launches every task at once.
	Concurrency             int      `mapstructure:"concurrency"`
	UserAgents              []string `mapstructure:"user_agents"`
	ListingDelayMinMs       int      `mapstructure:"listing_delay_min_ms"`
	ListingDelayMaxMs       int      `mapstructure:"listing_delay_max_ms"`
	DetailDelayMinMs        int      `mapstructure:"detail_delay_min_ms"`
	DetailDelayMaxMs        int      `mapstructure:"detail_delay_max_ms"`
	RequireCompletePreviews bool     `mapstructure:"require_complete_previews"`
	RateLimitRPS            float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst          int      `mapstructure:"rate_limit_burst"`
	ProgressSteps           int      `mapstructure:"progress_steps"`
}

// HTTPConfig configures the single-attempt client.
type HTTPConfig struct {
	TimeoutSeconds     int  `mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// StorageConfig selects where collections are persisted.
type StorageConfig struct {
	// Backend is one of local, memory or gcs.
	Backend      string `mapstructure:"backend"`
	BaseDir      string `mapstructure:"base_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
	PreviewsPath string `mapstructure:"previews_path"`
	DetailsPath  string `mapstructure:"details_path"`
}

// SchemaConfig carries the extraction selectors and the label table.
type SchemaConfig struct {
	Listing extract.ListingSchema `mapstructure:"listing"`
	Detail  extract.DetailSchema  `mapstructure:"detail"`
	// Labels is a list rather than a map because Viper lowercases map keys.
	Labels []LabelMapping `mapstructure:"labels"`
}

// LabelMapping translates one localized label to a canonical field name.
type LabelMapping struct {
	Label string `mapstructure:"label"`
	Key   string `mapstructure:"key"`
}

// DBConfig controls the optional Postgres record mirror.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for phase notices.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	// DryRun logs notices instead of sending them to Pub/Sub.
	DryRun bool `mapstructure:"dry_run"`
}

// MetricsConfig enables the /metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	Debug       bool `mapstructure:"debug"`
}

// DefaultUserAgents is the identity pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:129.0) Gecko/20100101 Firefox/129.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:129.0) Gecko/20100101 Firefox/129.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36 Edg/128.0.0.0",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.base_url", "https://animego.org")
	v.SetDefault("catalog.listing_pattern", "/anime?page=%d")
	v.SetDefault("catalog.pages", 119)
	v.SetDefault("catalog.page_size", 20)
	v.SetDefault("catalog.expected_previews", 2361)
	v.SetDefault("catalog.expected_details", 2361)
	v.SetDefault("crawler.concurrency", 0)
	v.SetDefault("crawler.user_agents", DefaultUserAgents)
	v.SetDefault("crawler.listing_delay_min_ms", 1000)
	v.SetDefault("crawler.listing_delay_max_ms", 5000)
	v.SetDefault("crawler.detail_delay_min_ms", 5000)
	v.SetDefault("crawler.detail_delay_max_ms", 10000)
	v.SetDefault("crawler.require_complete_previews", true)
	v.SetDefault("crawler.rate_limit_rps", 0)
	v.SetDefault("crawler.rate_limit_burst", 1)
	v.SetDefault("crawler.progress_steps", 20)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.insecure_skip_verify", true)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.previews_path", "anime_previews.json")
	v.SetDefault("storage.details_path", "anime_data.json")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "catalog_records")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.dry_run", false)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.development", true)

	schema := extract.DefaultSchema()
	setStructDefaults(v, "schema.listing", schema.Listing)
	setStructDefaults(v, "schema.detail", schema.Detail)
	v.SetDefault("schema.labels", defaultLabelMappings())
}

// setStructDefaults registers every field of s under prefix so a config file
// can override single selectors.
func setStructDefaults(v *viper.Viper, prefix string, s any) {
	var fields map[string]any
	if err := mapstructure.Decode(s, &fields); err != nil {
		panic(fmt.Sprintf("config: decode %s defaults: %v", prefix, err))
	}
	for key, value := range fields {
		v.SetDefault(prefix+"."+key, value)
	}
}

func defaultLabelMappings() []LabelMapping {
	labels := normalize.DefaultLabels()
	out := make([]LabelMapping, 0, len(labels))
	for label, key := range labels {
		out = append(out, LabelMapping{Label: label, Key: key})
	}
	slices.SortFunc(out, func(a, b LabelMapping) int { return strings.Compare(a.Label, b.Label) })
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("catalog.base_url must be an absolute URL")
	}
	if !strings.Contains(c.Catalog.ListingPattern, "%d") {
		return fmt.Errorf("catalog.listing_pattern must contain %%d")
	}
	if c.Catalog.Pages < 0 {
		return fmt.Errorf("catalog.pages must be >= 0")
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("catalog.page_size must be > 0")
	}
	if c.Catalog.ExpectedPreviews < 0 || c.Catalog.ExpectedDetails < 0 {
		return fmt.Errorf("catalog expected totals must be >= 0")
	}
	if c.Crawler.Concurrency < 0 {
		return fmt.Errorf("crawler.concurrency must be >= 0")
	}
	if len(c.Crawler.UserAgents) == 0 {
		return fmt.Errorf("crawler.user_agents must not be empty")
	}
	if c.Crawler.ListingDelayMinMs < 0 || c.Crawler.ListingDelayMaxMs < c.Crawler.ListingDelayMinMs {
		return fmt.Errorf("crawler listing delay range is invalid")
	}
	if c.Crawler.DetailDelayMinMs < 0 || c.Crawler.DetailDelayMaxMs < c.Crawler.DetailDelayMinMs {
		return fmt.Errorf("crawler detail delay range is invalid")
	}
	if c.Crawler.RateLimitRPS < 0 {
		return fmt.Errorf("crawler.rate_limit_rps must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend must be local, memory or gcs")
	}
	if c.Storage.PreviewsPath == "" || c.Storage.DetailsPath == "" {
		return fmt.Errorf("storage.previews_path and storage.details_path are required")
	}
	for i, m := range c.Schema.Labels {
		if strings.TrimSpace(m.Label) == "" || strings.TrimSpace(m.Key) == "" {
			return fmt.Errorf("schema.labels[%d] needs both label and key", i)
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" && !c.PubSub.DryRun {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ListingDelay returns the listing-phase backoff bounds.
func (c CrawlerConfig) ListingDelay() (time.Duration, time.Duration) {
	return time.Duration(c.ListingDelayMinMs) * time.Millisecond, time.Duration(c.ListingDelayMaxMs) * time.Millisecond
}

// DetailDelay returns the detail-phase backoff bounds.
func (c CrawlerConfig) DetailDelay() (time.Duration, time.Duration) {
	return time.Duration(c.DetailDelayMinMs) * time.Millisecond, time.Duration(c.DetailDelayMaxMs) * time.Millisecond
}

// Timeout returns the per-attempt HTTP timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LabelTable returns the label mappings as a lookup table.
func (c SchemaConfig) LabelTable() map[string]string {
	table := make(map[string]string, len(c.Labels))
	for _, m := range c.Labels {
		table[m.Label] = m.Key
	}
	return table
}

// ExtractSchema assembles the selector schema used by the extractor.
func (c SchemaConfig) ExtractSchema() extract.Schema {
	return extract.Schema{Listing: c.Listing, Detail: c.Detail}
}
