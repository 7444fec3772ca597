package web

import (
	"net/http"
	"time"
)

// signageView is the template payload for the main display page: every
// configured feed plus current conditions when the weather consumer is
// enabled.
type signageView struct {
	Feeds   []feedView
	Weather *weatherView
	Now     time.Time
}

func (a *App) handleSignage(w http.ResponseWriter, r *http.Request) {
	view := signageView{Now: time.Now().In(a.loc)}
	for _, fc := range a.cfg.Feeds {
		fv, err := a.feedView(fc.Key)
		if err != nil {
			a.log.Error("feed %q read: %v", fc.Key, err)
			http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
			return
		}
		view.Feeds = append(view.Feeds, fv)
	}
	if a.weather != nil {
		current, err := a.demandWeather()
		if err != nil {
			a.log.Error("weather read: %v", err)
			http.Error(w, "weather unavailable", http.StatusServiceUnavailable)
			return
		}
		forecast, err := a.demandForecast()
		if err != nil {
			a.log.Error("forecast read: %v", err)
			http.Error(w, "weather unavailable", http.StatusServiceUnavailable)
			return
		}
		view.Weather = &weatherView{Current: current, Forecast: forecast}
	}
	a.render(w, "signage.html", view)
}

func (a *App) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

// Handler assembles the full request surface behind the access log.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck", a.handleHealthcheck)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/signage", http.StatusFound)
	})
	mux.HandleFunc("GET /signage", a.handleSignage)
	mux.HandleFunc("/rss/", a.handleRSS)
	mux.HandleFunc("GET /weather", a.handleWeather)
	mux.HandleFunc("GET /weather/data.json", a.handleWeatherJSON)
	mux.HandleFunc("GET /weather/forecast.json", a.handleForecastJSON)
	if a.cfg.ServeStatic {
		mux.Handle("GET "+a.cfg.StaticURLPrefix,
			http.StripPrefix(a.cfg.StaticURLPrefix, http.FileServer(http.Dir(a.cfg.StaticDir))))
	}
	return accessLog(a.log, mux)
}
