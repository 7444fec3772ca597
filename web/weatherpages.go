package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/signview/signview/cache"
	"github.com/signview/signview/weather"
)

func (a *App) weatherCallback() cache.Callback {
	return func(ctx context.Context, cell *cache.Cell) error {
		data, err := a.weather.Current(ctx)
		if err != nil {
			return err
		}
		return cell.Update(data, time.Now(), 0)
	}
}

func (a *App) forecastCallback() cache.Callback {
	return func(ctx context.Context, cell *cache.Cell) error {
		fc, err := a.weather.FiveDay(ctx)
		if err != nil {
			return err
		}
		return cell.Update(fc, time.Now(), 0)
	}
}

func (a *App) demandWeather() (*weather.Data, error) {
	cell, err := a.store.GetOrCreate(weatherDataKey)
	if err != nil {
		return nil, err
	}
	return cache.Demand[*weather.Data](cell, a.cfg.Weather.Interval())
}

func (a *App) demandForecast() (*weather.Forecast, error) {
	cell, err := a.store.GetOrCreate(weatherForecastKey)
	if err != nil {
		return nil, err
	}
	return cache.Demand[*weather.Forecast](cell, a.cfg.Weather.ForecastInterval())
}

// weatherView is the template payload for the weather page.
type weatherView struct {
	Current  *weather.Data
	Forecast *weather.Forecast
}

func (a *App) handleWeather(w http.ResponseWriter, r *http.Request) {
	if a.weather == nil {
		http.NotFound(w, r)
		return
	}
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
	a.render(w, "weather.html", weatherView{Current: current, Forecast: forecast})
}

func (a *App) serveJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("encoding json response: %v", err)
	}
}

func (a *App) handleWeatherJSON(w http.ResponseWriter, r *http.Request) {
	if a.weather == nil {
		http.NotFound(w, r)
		return
	}
	current, err := a.demandWeather()
	if err != nil {
		http.Error(w, "weather unavailable", http.StatusServiceUnavailable)
		return
	}
	a.serveJSON(w, current)
}

func (a *App) handleForecastJSON(w http.ResponseWriter, r *http.Request) {
	if a.weather == nil {
		http.NotFound(w, r)
		return
	}
	forecast, err := a.demandForecast()
	if err != nil {
		http.Error(w, "weather unavailable", http.StatusServiceUnavailable)
		return
	}
	a.serveJSON(w, forecast)
}
