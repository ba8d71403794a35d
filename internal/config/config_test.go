package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.BaseURL != "https://animego.org" || cfg.Catalog.Pages != 119 || cfg.Catalog.PageSize != 20 {
		t.Fatalf("unexpected catalog defaults: %+v", cfg.Catalog)
	}
	if cfg.Catalog.ExpectedPreviews != 2361 || cfg.Catalog.ExpectedDetails != 2361 {
		t.Fatalf("unexpected expected totals: %+v", cfg.Catalog)
	}
	if cfg.Crawler.Concurrency != 0 || !cfg.Crawler.RequireCompletePreviews {
		t.Fatalf("unexpected crawler defaults: %+v", cfg.Crawler)
	}
	if len(cfg.Crawler.UserAgents) != len(DefaultUserAgents) {
		t.Fatalf("expected %d default user agents, got %d", len(DefaultUserAgents), len(cfg.Crawler.UserAgents))
	}
	lo, hi := cfg.Crawler.ListingDelay()
	if lo != time.Second || hi != 5*time.Second {
		t.Fatalf("unexpected listing delay [%s, %s]", lo, hi)
	}
	lo, hi = cfg.Crawler.DetailDelay()
	if lo != 5*time.Second || hi != 10*time.Second {
		t.Fatalf("unexpected detail delay [%s, %s]", lo, hi)
	}
	if !cfg.HTTP.InsecureSkipVerify || cfg.HTTP.Timeout() != 30*time.Second {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Schema.Listing.Item != "#anime-list-container > .col-12" {
		t.Fatalf("unexpected listing item selector %q", cfg.Schema.Listing.Item)
	}
	if cfg.Schema.Detail.ThumbnailSuffix != " 2x" {
		t.Fatalf("unexpected thumbnail suffix %q", cfg.Schema.Detail.ThumbnailSuffix)
	}
	labels := cfg.Schema.LabelTable()
	if labels["Тип"] != "type" || labels["Главные герои"] != "characters" || len(labels) != 17 {
		t.Fatalf("label table did not survive loading: %v", labels)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
catalog:
  base_url: https://mirror.example
  pages: 3
  expected_previews: 60
crawler:
  concurrency: 8
  user_agents: ["agent-one", "agent-two"]
  detail_delay_min_ms: 100
  detail_delay_max_ms: 200
  require_complete_previews: false
  rate_limit_rps: 2.5
storage:
  backend: memory
schema:
  listing:
    title: ".card-title"
  labels:
    - label: "Тип"
      key: "kind"
logging:
  development: false
  debug: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.BaseURL != "https://mirror.example" || cfg.Catalog.Pages != 3 || cfg.Catalog.ExpectedPreviews != 60 {
		t.Fatalf("catalog overrides not applied: %+v", cfg.Catalog)
	}
	if cfg.Catalog.ExpectedDetails != 2361 {
		t.Fatalf("expected untouched default for expected_details, got %d", cfg.Catalog.ExpectedDetails)
	}
	if cfg.Crawler.Concurrency != 8 || cfg.Crawler.RequireCompletePreviews || cfg.Crawler.RateLimitRPS != 2.5 {
		t.Fatalf("crawler overrides not applied: %+v", cfg.Crawler)
	}
	if strings.Join(cfg.Crawler.UserAgents, ",") != "agent-one,agent-two" {
		t.Fatalf("unexpected user agents %v", cfg.Crawler.UserAgents)
	}
	if lo, hi := cfg.Crawler.DetailDelay(); lo != 100*time.Millisecond || hi != 200*time.Millisecond {
		t.Fatalf("unexpected detail delay [%s, %s]", lo, hi)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Schema.Listing.Title != ".card-title" || cfg.Schema.Listing.Link != ".h5 > a" {
		t.Fatalf("selector override should keep sibling defaults: %+v", cfg.Schema.Listing)
	}
	if got := cfg.Schema.LabelTable(); len(got) != 1 || got["Тип"] != "kind" {
		t.Fatalf("label override not applied: %v", got)
	}
	if cfg.Logging.Development || !cfg.Logging.Debug {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_CATALOG_PAGES", "5")
	t.Setenv("CATALOG_STORAGE_BACKEND", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.Pages != 5 || cfg.Storage.Backend != "memory" {
		t.Fatalf("env overrides not applied: pages=%d backend=%q", cfg.Catalog.Pages, cfg.Storage.Backend)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "relative base url", mutate: func(c *Config) { c.Catalog.BaseURL = "/anime" }, want: "catalog.base_url"},
		{name: "pattern without page", mutate: func(c *Config) { c.Catalog.ListingPattern = "/anime" }, want: "catalog.listing_pattern"},
		{name: "zero page size", mutate: func(c *Config) { c.Catalog.PageSize = 0 }, want: "catalog.page_size"},
		{name: "negative concurrency", mutate: func(c *Config) { c.Crawler.Concurrency = -1 }, want: "crawler.concurrency"},
		{name: "empty agents", mutate: func(c *Config) { c.Crawler.UserAgents = nil }, want: "crawler.user_agents"},
		{name: "inverted listing delay", mutate: func(c *Config) { c.Crawler.ListingDelayMaxMs = 10 }, want: "listing delay"},
		{name: "inverted detail delay", mutate: func(c *Config) { c.Crawler.DetailDelayMinMs = 20000 }, want: "detail delay"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = "gcs" }, want: "storage.gcs_bucket"},
		{name: "blank label", mutate: func(c *Config) { c.Schema.Labels = []LabelMapping{{Label: "Тип"}} }, want: "schema.labels[0]"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "t" }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			c.Crawler.UserAgents = append([]string(nil), base.Crawler.UserAgents...)
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigDryRunTopicNeedsNoProject(t *testing.T) {
	t.Setenv("CATALOG_PUBSUB_TOPIC_NAME", "catalog-phases")
	t.Setenv("CATALOG_PUBSUB_DRY_RUN", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.PubSub.DryRun || cfg.PubSub.TopicName != "catalog-phases" {
		t.Fatalf("unexpected pubsub config: %+v", cfg.PubSub)
	}
}
