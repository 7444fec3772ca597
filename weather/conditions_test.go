package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveKnownCode(t *testing.T) {
	day := Resolve(Condition{ID: 800, Main: "Clear"}, true)
	assert.Equal(t, "clear sky", day.Description)
	assert.Equal(t, "01d", day.Icon)
	assert.Equal(t, "clear-day.svg", day.Meteocon)

	night := Resolve(Condition{ID: 800, Main: "Clear"}, false)
	assert.Equal(t, "01n", night.Icon)
	assert.Equal(t, "clear-night.svg", night.Meteocon)
}

func TestResolveGroupFallback(t *testing.T) {
	// 201 has no per-code icon or meteocon; both come from the 2xx
	// thunderstorm group.
	c := Resolve(Condition{ID: 201}, true)
	assert.Equal(t, "thunderstorm with rain", c.Description)
	assert.Equal(t, "11d", c.Icon)
	assert.Equal(t, "thunderstorms-day-rain.svg", c.Meteocon)
}

func TestResolvePerCodeOverride(t *testing.T) {
	c := Resolve(Condition{ID: 511}, false)
	assert.Equal(t, "freezing rain", c.Description)
	assert.Equal(t, "13n", c.Icon)
	assert.Equal(t, "partly-cloudy-night-sleet.svg", c.Meteocon)
}

func TestResolveKeepsAPIIcon(t *testing.T) {
	// When the API already picked an icon, only the day suffix is
	// adjusted.
	c := Resolve(Condition{ID: 800, Icon: "01d"}, false)
	assert.Equal(t, "01n", c.Icon)
}

func TestResolveUnknownCode(t *testing.T) {
	c := Resolve(Condition{ID: 999, Description: "mystery", Icon: "50d"}, false)
	assert.Equal(t, "mystery", c.Description)
	assert.Equal(t, "50n", c.Icon)
}

func TestResolveDaylightWindow(t *testing.T) {
	d := &Data{Dt: 1500, Sys: Sys{Sunrise: 1000, Sunset: 2000}}
	assert.True(t, d.IsDaytime())
	d.Dt = 2500
	assert.False(t, d.IsDaytime())
}

func TestDaytimeAtIgnoresDate(t *testing.T) {
	const day = 86400
	sunrise, sunset := int64(21600), int64(64800) // 06:00 and 18:00
	assert.True(t, daytimeAt(3*day+43200, sunrise, sunset))  // noon, days later
	assert.False(t, daytimeAt(5*day+7200, sunrise, sunset))  // 02:00
	assert.False(t, daytimeAt(2*day+72000, sunrise, sunset)) // 20:00
}
