package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/signview/signview/feed"
)

// Defaults carried over from the deployed configuration.
const (
	DefaultListen          = "localhost:8080"
	DefaultTimezone        = "US/Central"
	DefaultStaticPrefix    = "/static/"
	DefaultFeedRefresh     = 5 * time.Minute
	DefaultWeatherRefresh  = 15 * time.Minute
	DefaultForecastRefresh = 65 * time.Minute
)

// apiKeyEnv is the environment variable holding the OpenWeatherMap key;
// it is never written to the config file.
const apiKeyEnv = "OPENWEATHERMAP_APIKEY"

// Duration is a yaml-decodable duration accepting extended units such as
// "90s", "5m" or "1d".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := str2duration.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Feed describes one syndication source to aggregate.
type Feed struct {
	// Key is the cache key for the feed; it must be unique across all
	// cached resources.
	Key string `yaml:"key"`
	URL string `yaml:"url"`
	// Kind selects the source-specific parsing rules: meetings, calendar
	// or legistar.
	Kind string `yaml:"kind"`
	// Refresh overrides the default 5m refresh interval.
	Refresh Duration `yaml:"refresh,omitempty"`
	// Venue restricts rendered meetings items to a single street address.
	Venue string `yaml:"venue,omitempty"`
	// Title overrides the page title for the feed's HTML view.
	Title string `yaml:"title,omitempty"`
	// MaxItems caps how many items the HTML views render; zero means all.
	MaxItems int `yaml:"max_items,omitempty"`
}

// Interval returns the feed's refresh interval.
func (f Feed) Interval() time.Duration {
	if f.Refresh > 0 {
		return f.Refresh.Std()
	}
	return DefaultFeedRefresh
}

// Storage selects the snapshot persistence backend.
type Storage struct {
	// Backend is one of file, bolt or sqlite.
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Weather configures the OpenWeatherMap consumer.
type Weather struct {
	Enabled         bool     `yaml:"enabled"`
	Lat             float64  `yaml:"lat"`
	Lon             float64  `yaml:"lon"`
	Units           string   `yaml:"units,omitempty"`
	Refresh         Duration `yaml:"refresh,omitempty"`
	ForecastRefresh Duration `yaml:"forecast_refresh,omitempty"`

	// APIKey is resolved from OPENWEATHERMAP_APIKEY at load time.
	APIKey string `yaml:"-"`
}

func (w Weather) Interval() time.Duration {
	if w.Refresh > 0 {
		return w.Refresh.Std()
	}
	return DefaultWeatherRefresh
}

func (w Weather) ForecastInterval() time.Duration {
	if w.ForecastRefresh > 0 {
		return w.ForecastRefresh.Std()
	}
	return DefaultForecastRefresh
}

// Config is the root configuration for the server.
type Config struct {
	Listen          string  `yaml:"listen"`
	Timezone        string  `yaml:"timezone"`
	ServeStatic     bool    `yaml:"serve_static"`
	StaticURLPrefix string  `yaml:"static_url_prefix"`
	StaticDir       string  `yaml:"static_dir"`
	Storage         Storage `yaml:"storage"`
	Weather         Weather `yaml:"weather"`
	Feeds           []Feed  `yaml:"feeds"`
}

func defaults() *Config {
	return &Config{
		Listen:          DefaultListen,
		Timezone:        DefaultTimezone,
		ServeStatic:     true,
		StaticURLPrefix: DefaultStaticPrefix,
		StaticDir:       "static",
		Storage: Storage{
			Backend: "file",
			Path:    defaultStoragePath(),
		},
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "localstorage.bin"
	}
	return home + "/.config/signview/localstorage.bin"
}

// Load reads the yaml config at path, applies defaults and environment
// overrides, and validates it.
func Load(path string) (*Config, error) {
	cfg := defaults()
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SIGNVIEW_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SIGNVIEW_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	c.Weather.APIKey = os.Getenv(apiKeyEnv)
}

// Validate checks cross-field constraints: parseable feed kinds, unique
// cache keys, a loadable timezone and a known storage backend.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", c.Timezone)
	}
	switch c.Storage.Backend {
	case "file", "bolt", "sqlite":
	default:
		return errors.Newf("unknown storage backend %q", c.Storage.Backend)
	}
	seen := make(map[string]bool, len(c.Feeds)+2)
	for _, f := range c.Feeds {
		if f.Key == "" || f.URL == "" {
			return errors.Newf("feed %q needs both key and url", f.Key)
		}
		if seen[f.Key] {
			return errors.Newf("duplicate feed key %q", f.Key)
		}
		seen[f.Key] = true
		if _, err := feed.ParseKind(f.Kind); err != nil {
			return errors.Wrapf(err, "feed %q", f.Key)
		}
	}
	if c.Weather.Enabled && c.Weather.APIKey == "" {
		return errors.Newf("weather enabled but %s is not set", apiKeyEnv)
	}
	return nil
}

// Location returns the configured local timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
