package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/signview/signview/logger"
)

const apiBase = "https://api.openweathermap.org/data/2.5"

// Client wraps the two OpenWeatherMap endpoints the signage display
// consumes. Retrieval is the caller's responsibility in the cache
// contract: the refresh callbacks own a Client and push the decoded
// responses into their cells.
type Client struct {
	http   *http.Client
	log    logger.Logger
	base   string
	apiKey string
	lat    float64
	lon    float64
	units  string
}

// NewClient returns a Client for the given coordinates. An empty units
// string defaults to imperial, matching the deployed display.
func NewClient(httpClient *http.Client, log logger.Logger, apiKey string, lat, lon float64, units string) *Client {
	if units == "" {
		units = "imperial"
	}
	return &Client{
		http:   httpClient,
		log:    log.WithPrefix("[weather]"),
		base:   apiBase,
		apiKey: apiKey,
		lat:    lat,
		lon:    lon,
		units:  units,
	}
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%g", c.lat))
	q.Set("lon", fmt.Sprintf("%g", c.lon))
	q.Set("units", c.units)
	q.Set("appid", c.apiKey)
	u := c.base + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %s", endpoint)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf("%s returned %d: %s", endpoint, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s response", endpoint)
	}
	return nil
}

// Current fetches current conditions with the condition table resolved.
func (c *Client) Current(ctx context.Context) (*Data, error) {
	var data Data
	if err := c.get(ctx, "/weather", &data); err != nil {
		return nil, err
	}
	data.Weather = ResolveAll(data.Weather, data.IsDaytime())
	c.log.Debug("current conditions for %s: %d entries", data.Name, len(data.Weather))
	return &data, nil
}

// FiveDay fetches the five-day forecast with the condition table resolved
// per slot against the city's daylight window.
func (c *Client) FiveDay(ctx context.Context) (*Forecast, error) {
	var fc Forecast
	if err := c.get(ctx, "/forecast", &fc); err != nil {
		return nil, err
	}
	for i, slot := range fc.Slots {
		daytime := daytimeAt(slot.Dt, fc.City.Sunrise, fc.City.Sunset)
		fc.Slots[i].Weather = ResolveAll(slot.Weather, daytime)
	}
	c.log.Debug("forecast for %s: %d slots", fc.City.Name, len(fc.Slots))
	return &fc, nil
}

// daytimeAt compares the time of day of dt against the daylight window,
// ignoring which date each timestamp falls on: forecast slots run days
// past the sunrise/sunset the city block reports.
func daytimeAt(dt, sunrise, sunset int64) bool {
	const day = 86400
	d := ((dt % day) + day) % day
	rise := ((sunrise % day) + day) % day
	set := ((sunset % day) + day) % day
	if rise <= set {
		return rise <= d && d <= set
	}
	return d >= rise || d <= set
}
