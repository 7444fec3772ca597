package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/signview/signview/cache"
	"github.com/signview/signview/config"
	"github.com/signview/signview/feed"
	"github.com/signview/signview/logger"
	"github.com/signview/signview/staticfiles"
	"github.com/signview/signview/weather"
)

//go:embed templates/*.html
var templateFS embed.FS

// Cache keys for the weather consumer; the feed keys come from the
// configuration. All cached resources share one key namespace.
const (
	weatherDataKey     = "weather_data"
	weatherForecastKey = "weather_forecast"
)

// feedEntry is one registered feed with its parser.
type feedEntry struct {
	cfg    config.Feed
	parser *feed.Parser
}

// App wires the cache store, the refresh group and the HTTP surface
// together. It owns all shared state explicitly; there is no package
// level mutable cache.
type App struct {
	cfg     *config.Config
	log     logger.Logger
	loc     *time.Location
	store   *cache.Store
	group   *cache.Group
	client  *http.Client
	weather *weather.Client
	tmpl    *template.Template

	mu    sync.Mutex
	feeds map[string]feedEntry
}

func newBackend(s config.Storage) (cache.Backend, error) {
	switch s.Backend {
	case "bolt":
		return cache.NewBoltBackend(s.Path)
	case "sqlite":
		return cache.NewSQLiteBackend(s.Path)
	default:
		return cache.NewFileBackend(s.Path)
	}
}

// NewApp builds the application from its configuration. Feeds from the
// config are registered immediately; their tasks start with Start.
func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "opening storage backend")
	}
	a := &App{
		cfg:    cfg,
		log:    log,
		loc:    loc,
		store:  cache.NewStore(backend, log),
		group:  cache.NewGroup(log),
		client: &http.Client{Timeout: 30 * time.Second},
		feeds:  make(map[string]feedEntry),
	}
	a.tmpl, err = template.New("").Funcs(template.FuncMap{
		"static":  a.staticURL,
		"dtlocal": a.formatLocal,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parsing templates")
	}
	for _, fc := range cfg.Feeds {
		if err := a.RegisterFeed(fc); err != nil {
			return nil, err
		}
	}
	if cfg.Weather.Enabled {
		a.weather = weather.NewClient(a.client, log, cfg.Weather.APIKey, cfg.Weather.Lat, cfg.Weather.Lon, cfg.Weather.Units)
		if err := a.registerWeather(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// RegisterFeed registers a refresh task for one configured feed. Safe to
// call while the group is running: the new task starts immediately.
// Re-registering an existing key is a no-op.
func (a *App) RegisterFeed(fc config.Feed) error {
	kind, err := feed.ParseKind(fc.Kind)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.feeds[fc.Key]; ok {
		return nil
	}
	cell, err := a.store.GetOrCreate(fc.Key)
	if err != nil {
		return err
	}
	cell.Lock()
	cell.SetInterval(fc.Interval())
	cell.Unlock()
	entry := feedEntry{cfg: fc, parser: feed.NewParser(kind, a.loc)}
	a.feeds[fc.Key] = entry
	a.group.AddTask(cell, a.feedCallback(entry))
	a.log.Info("registered feed %q (%s)", fc.Key, fc.Kind)
	return nil
}

func (a *App) registerWeather() error {
	wc := a.cfg.Weather
	for _, reg := range []struct {
		key      string
		interval time.Duration
		callback cache.Callback
	}{
		{weatherDataKey, wc.Interval(), a.weatherCallback()},
		{weatherForecastKey, wc.ForecastInterval(), a.forecastCallback()},
	} {
		cell, err := a.store.GetOrCreate(reg.key)
		if err != nil {
			return err
		}
		cell.Lock()
		cell.SetInterval(reg.interval)
		cell.Unlock()
		a.group.AddTask(cell, reg.callback)
	}
	return nil
}

func (a *App) feedConfig(key string) (feedEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	entry, ok := a.feeds[key]
	return entry, ok
}

// Reload applies a changed configuration. Only feed additions take
// effect at runtime; everything else needs a restart.
func (a *App) Reload(cfg *config.Config) {
	for _, fc := range cfg.Feeds {
		if err := a.RegisterFeed(fc); err != nil {
			a.log.Warn("not registering feed %q: %v", fc.Key, err)
		}
	}
}

// Start launches the refresh group. Bound to process boot.
func (a *App) Start(ctx context.Context) error {
	return a.group.Start(ctx)
}

// Stop stops all background refresh work and closes the store. Bound to
// process shutdown; no background work survives it.
func (a *App) Stop() error {
	err := a.group.Stop()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Fatal blocks until the refresh group reports an unrecoverable error
// (a persist failure); nil when the group shut down normally.
func (a *App) Fatal() error {
	return a.group.Wait()
}

func (a *App) staticURL(path string) string {
	return staticfiles.URL(a.cfg.StaticURLPrefix, path)
}

func (a *App) formatLocal(t time.Time) string {
	return t.In(a.loc).Format("Mon Jan 2, 3:04 PM")
}
