package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Shanghai"
	configPathEnv   = "FRONTIER_DIGEST_CONFIG"
	openAIAPIKeyEnv = "OPENAI_API_KEY"
	openAIBaseEnv   = "OPENAI_BASE_URL"
	aiModelEnv      = "AI_MODEL"
	runTimeEnv      = "RUN_TIME"
	timezoneEnv     = "TIMEZONE"
	outputDirEnv    = "OUTPUT_DIR"
	storePathEnv    = "STORE_PATH"
)

// Config holds high-level settings required across the application.
type Config struct {
	Feeds     []FeedConfig    `yaml:"feeds"`
	AI        AIConfig        `yaml:"ai"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Store     StoreConfig     `yaml:"store"`
	Site      SiteConfig      `yaml:"site"`
	Limits    LimitsConfig    `yaml:"limits"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// FeedConfig names a single RSS/Atom source. Order matters: it is the
// dedup tie-break order for same-run duplicates.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AIConfig defines how to contact the OpenAI-compatible chat API.
type AIConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	Timeout       string `yaml:"timeout"`
	MaxCandidates int    `yaml:"maxCandidates"`
	MaxSelected   int    `yaml:"maxSelected"`
	MinSelected   int    `yaml:"minSelected"`
	ExcerptRunes  int    `yaml:"excerptRunes"`
}

// RequestTimeout parses the configured timeout, defaulting to one minute.
func (a AIConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// SchedulerConfig defines when the daily run fires.
type SchedulerConfig struct {
	RunTime  string         `yaml:"runTime"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// StoreConfig describes where day records and the seen index live.
type StoreConfig struct {
	Path              string `yaml:"path"`
	SeenRetentionDays int    `yaml:"seenRetentionDays"`
}

// SiteConfig drives the static page renderer.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	BaseURL     string `yaml:"baseUrl"`
	OutputDir   string `yaml:"outputDir"`
	HistoryDays int    `yaml:"historyDays"`
}

// LimitsConfig bounds feed reading so a run never grows without limit.
type LimitsConfig struct {
	MaxPerFeed      int    `yaml:"maxPerFeed"`
	FreshnessWindow string `yaml:"freshnessWindow"`
	FetchTimeout    string `yaml:"fetchTimeout"`
	FetchWorkers    int    `yaml:"fetchWorkers"`
}

// Freshness parses the entry-age cutoff, defaulting to 24 hours.
func (l LimitsConfig) Freshness() time.Duration {
	d, err := time.ParseDuration(l.FreshnessWindow)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// Timeout parses the per-feed fetch timeout, defaulting to 20 seconds.
func (l LimitsConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(l.FetchTimeout)
	if err != nil || d <= 0 {
		return 20 * time.Second
	}
	return d
}

// LoggingConfig selects console level and an optional log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.AI.APIKey = v
	}

	if v := os.Getenv(openAIBaseEnv); v != "" {
		c.AI.Endpoint = v
	}

	if v := os.Getenv(aiModelEnv); v != "" {
		c.AI.Model = v
	}

	if v := os.Getenv(runTimeEnv); v != "" {
		c.Scheduler.RunTime = v
	}

	if v := os.Getenv(timezoneEnv); v != "" {
		c.Scheduler.Timezone = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Site.OutputDir = v
	}

	if v := os.Getenv(storePathEnv); v != "" {
		c.Store.Path = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	if override.AI.Endpoint != "" {
		base.AI.Endpoint = override.AI.Endpoint
	}
	if override.AI.Model != "" {
		base.AI.Model = override.AI.Model
	}
	if override.AI.APIKey != "" {
		base.AI.APIKey = override.AI.APIKey
	}
	if override.AI.Timeout != "" {
		base.AI.Timeout = override.AI.Timeout
	}
	if override.AI.MaxCandidates > 0 {
		base.AI.MaxCandidates = override.AI.MaxCandidates
	}
	if override.AI.MaxSelected > 0 {
		base.AI.MaxSelected = override.AI.MaxSelected
	}
	if override.AI.MinSelected > 0 {
		base.AI.MinSelected = override.AI.MinSelected
	}
	if override.AI.ExcerptRunes > 0 {
		base.AI.ExcerptRunes = override.AI.ExcerptRunes
	}

	if override.Scheduler.RunTime != "" {
		base.Scheduler.RunTime = override.Scheduler.RunTime
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Store.Path != "" {
		base.Store.Path = override.Store.Path
	}
	if override.Store.SeenRetentionDays != 0 {
		base.Store.SeenRetentionDays = override.Store.SeenRetentionDays
	}

	if override.Site.Title != "" {
		base.Site.Title = override.Site.Title
	}
	if override.Site.Description != "" {
		base.Site.Description = override.Site.Description
	}
	if override.Site.BaseURL != "" {
		base.Site.BaseURL = override.Site.BaseURL
	}
	if override.Site.OutputDir != "" {
		base.Site.OutputDir = override.Site.OutputDir
	}
	if override.Site.HistoryDays > 0 {
		base.Site.HistoryDays = override.Site.HistoryDays
	}

	if override.Limits.MaxPerFeed > 0 {
		base.Limits.MaxPerFeed = override.Limits.MaxPerFeed
	}
	if override.Limits.FreshnessWindow != "" {
		base.Limits.FreshnessWindow = override.Limits.FreshnessWindow
	}
	if override.Limits.FetchTimeout != "" {
		base.Limits.FetchTimeout = override.Limits.FetchTimeout
	}
	if override.Limits.FetchWorkers > 0 {
		base.Limits.FetchWorkers = override.Limits.FetchWorkers
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Feeds: []FeedConfig{
			{Name: "OpenAI News", URL: "https://openai.com/news/rss.xml"},
			{Name: "Google DeepMind", URL: "https://deepmind.google/blog/rss.xml"},
			{Name: "Hugging Face", URL: "https://huggingface.co/blog/feed.xml"},
			{Name: "LangChain", URL: "https://blog.langchain.dev/rss/"},
			{Name: "Simon Willison", URL: "https://simonwillison.net/atom/everything"},
			{Name: "Eugene Yan", URL: "https://eugeneyan.com/rss/"},
			{Name: "Lilian Weng", URL: "https://lilianweng.github.io/index.xml"},
			{Name: "Chip Huyen", URL: "https://huyenchip.com/feed.xml"},
			{Name: "Sebastian Raschka", URL: "https://magazine.sebastianraschka.com/feed"},
			{Name: "MIT Tech Review AI", URL: "https://www.technologyreview.com/feed/"},
			{Name: "The Verge AI", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml"},
			{Name: "The Gradient", URL: "https://thegradient.pub/rss/"},
			{Name: "The Keyword (Google AI)", URL: "https://blog.google/technology/ai/rss/"},
			{Name: "AINews by smol.ai", URL: "https://news.smol.ai/rss.xml"},
		},
		AI: AIConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			APIKey:        "",
			Timeout:       "60s",
			MaxCandidates: 50,
			MaxSelected:   5,
			MinSelected:   3,
			ExcerptRunes:  300,
		},
		Scheduler: SchedulerConfig{RunTime: "07:00", Timezone: defaultTimezone, location: tz},
		Store:     StoreConfig{Path: "data/frontierdigest.db", SeenRetentionDays: 90},
		Site: SiteConfig{
			Title:       "AI Daily Frontier",
			Description: "Daily digest of leading AI blogs, distilled by AI into a browsable page",
			BaseURL:     "http://localhost:8000",
			OutputDir:   "output",
			HistoryDays: 7,
		},
		Limits: LimitsConfig{
			MaxPerFeed:      20,
			FreshnessWindow: "24h",
			FetchTimeout:    "20s",
			FetchWorkers:    4,
		},
		Logging: LoggingConfig{Level: "info", File: ""},
	}
}
