// Package config loads and validates scraper configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/npr-news-scraper/internal/extract"
	"github.com/JakeFAU/npr-news-scraper/internal/render"
	"github.com/JakeFAU/npr-news-scraper/internal/storage"
	"github.com/JakeFAU/npr-news-scraper/internal/telemetry"
)

// Browser engines.
const (
	EngineChromedp = "chromedp"
	EngineStatic   = "static"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Snapshot providers.
const (
	SnapshotNone   = "none"
	SnapshotLocal  = "local"
	SnapshotGCS    = "gcs"
	SnapshotMemory = "memory"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Source    SourceConfig      `mapstructure:"source"`
	Browser   BrowserConfig     `mapstructure:"browser"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Run       RunConfig         `mapstructure:"run"`
	DB        DBConfig          `mapstructure:"db"`
	Snapshot  SnapshotConfig    `mapstructure:"snapshot"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Server    ServerConfig      `mapstructure:"server"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Telemetry telemetry.Config  `mapstructure:"telemetry"`
}

// SourceConfig names the site being scraped.
type SourceConfig struct {
	// Tag is written to the resource column and scopes the replace.
	Tag        string `mapstructure:"tag"`
	ListingURL string `mapstructure:"listing_url"`
}

// BrowserConfig configures the page renderer.
type BrowserConfig struct {
	Engine           string        `mapstructure:"engine"`
	ExecPath         string        `mapstructure:"exec_path"`
	Headless         bool          `mapstructure:"headless"`
	NoSandbox        bool          `mapstructure:"no_sandbox"`
	UserAgent        string        `mapstructure:"user_agent"`
	IgnoreCertErrors bool          `mapstructure:"ignore_cert_errors"`
	ListingTimeout   time.Duration `mapstructure:"listing_timeout"`
	ArticleTimeout   time.Duration `mapstructure:"article_timeout"`
	ListingWait      string        `mapstructure:"listing_wait"`
	ArticleWait      string        `mapstructure:"article_wait"`
}

// RunConfig tunes the per-article retry loop.
type RunConfig struct {
	MaxAttempts       int    `mapstructure:"max_attempts"`
	AuthorPlaceholder string `mapstructure:"author_placeholder"`
}

// DBConfig controls access to the article table.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SnapshotConfig selects where the run side file is written.
type SnapshotConfig struct {
	Provider string `mapstructure:"provider"`
	Dir      string `mapstructure:"dir"`
	Path     string `mapstructure:"path"`
	Bucket   string `mapstructure:"bucket"`
}

// PubSubConfig holds the run notification topic. Both fields empty disables it.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	APIKey         string        `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored and existing variables are not overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

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
	sel := extract.DefaultSelectors()

	v.SetDefault("source.tag", "NPR")
	v.SetDefault("source.listing_url", "https://www.npr.org/sections/news/")
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.ignore_cert_errors", true)
	v.SetDefault("browser.listing_timeout", 60*time.Second)
	v.SetDefault("browser.article_timeout", 30*time.Second)
	v.SetDefault("browser.listing_wait", "dom")
	v.SetDefault("browser.article_wait", "networkidle")
	v.SetDefault("selectors.item", sel.Item)
	v.SetDefault("selectors.headline", sel.Headline)
	v.SetDefault("selectors.date", sel.Date)
	v.SetDefault("selectors.media", sel.Media)
	v.SetDefault("selectors.body", sel.Body)
	v.SetDefault("selectors.author", sel.Author)
	v.SetDefault("run.max_attempts", 3)
	v.SetDefault("run.author_placeholder", extract.DefaultAuthorPlaceholder)
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.table", storage.DefaultTable)
	v.SetDefault("db.max_conns", 1)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("snapshot.provider", SnapshotNone)
	v.SetDefault("snapshot.dir", ".")
	v.SetDefault("snapshot.path", "npr-news-articles.json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 15*time.Minute)
	v.SetDefault("logging.development", false)
	v.SetDefault("telemetry.service_name", telemetry.DefaultServiceName)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// bindLegacyEnv maps the variable names the scraper has always been deployed
// with. The SCRAPER_ prefixed name wins when both are set.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"db.dsn":            {"SCRAPER_DB_DSN", "POSTGRES_CONNECTION_STRING"},
		"browser.exec_path": {"SCRAPER_BROWSER_EXEC_PATH", "CHROME_EXECUTABLE_PATH"},
		"server.port":       {"SCRAPER_SERVER_PORT", "PORT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source.Tag) == "" {
		return fmt.Errorf("source.tag is required")
	}
	if err := ValidateListingURL(c.Source.ListingURL); err != nil {
		return fmt.Errorf("source.listing_url: %w", err)
	}
	switch c.Browser.Engine {
	case EngineChromedp, EngineStatic:
	default:
		return fmt.Errorf("browser.engine must be %q or %q", EngineChromedp, EngineStatic)
	}
	if c.Browser.ListingTimeout <= 0 || c.Browser.ArticleTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be > 0")
	}
	if _, err := render.ParseWaitCondition(c.Browser.ListingWait); err != nil {
		return fmt.Errorf("browser.listing_wait: %w", err)
	}
	if _, err := render.ParseWaitCondition(c.Browser.ArticleWait); err != nil {
		return fmt.Errorf("browser.article_wait: %w", err)
	}
	if c.Selectors.Item == "" || c.Selectors.Headline == "" {
		return fmt.Errorf("selectors.item and selectors.headline are required")
	}
	if c.Run.MaxAttempts <= 0 {
		return fmt.Errorf("run.max_attempts must be > 0")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("db.driver must be %q or %q", DriverPostgres, DriverSQLite)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required (or POSTGRES_CONNECTION_STRING)")
	}
	if _, err := storage.TableName(c.DB.Table); err != nil {
		return fmt.Errorf("db.table: %w", err)
	}
	switch c.Snapshot.Provider {
	case SnapshotNone, SnapshotMemory:
	case SnapshotLocal:
		if c.Snapshot.Dir == "" {
			return fmt.Errorf("snapshot.dir is required for the local provider")
		}
	case SnapshotGCS:
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown snapshot.provider %q", c.Snapshot.Provider)
	}
	if c.Snapshot.Provider != SnapshotNone && c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicID == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_id must be set together")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// NotifyEnabled reports whether run notifications should be published.
func (c Config) NotifyEnabled() bool {
	return c.PubSub.ProjectID != "" && c.PubSub.TopicID != ""
}

// ValidateListingURL accepts absolute http and https URLs only.
func ValidateListingURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}
