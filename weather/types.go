package weather

// Trimmed OpenWeatherMap response shapes. Field names follow the wire
// format; only the fields the signage templates consume are kept.

// Condition is one entry of a response's weather array, enriched with the
// resolved icon and meteocon from the condition table.
type Condition struct {
	ID          int    `json:"id" msgpack:"id"`
	Main        string `json:"main" msgpack:"main"`
	Description string `json:"description" msgpack:"description"`
	Icon        string `json:"icon" msgpack:"icon"`
	Meteocon    string `json:"-" msgpack:"meteocon"`
}

// Readings are the numeric measurements of one observation or forecast
// slot.
type Readings struct {
	Temp      float64 `json:"temp" msgpack:"temp"`
	FeelsLike float64 `json:"feels_like" msgpack:"feels_like"`
	TempMin   float64 `json:"temp_min" msgpack:"temp_min"`
	TempMax   float64 `json:"temp_max" msgpack:"temp_max"`
	Pressure  float64 `json:"pressure" msgpack:"pressure"`
	Humidity  float64 `json:"humidity" msgpack:"humidity"`
}

// Wind is the wind block of one observation.
type Wind struct {
	Speed float64 `json:"speed" msgpack:"speed"`
	Deg   float64 `json:"deg" msgpack:"deg"`
}

// Sys carries the daylight window of a current-conditions response.
type Sys struct {
	Sunrise int64 `json:"sunrise" msgpack:"sunrise"`
	Sunset  int64 `json:"sunset" msgpack:"sunset"`
}

// Data is a current-conditions response.
type Data struct {
	Dt      int64       `json:"dt" msgpack:"dt"`
	Name    string      `json:"name" msgpack:"name"`
	Main    Readings    `json:"main" msgpack:"main"`
	Wind    Wind        `json:"wind" msgpack:"wind"`
	Sys     Sys         `json:"sys" msgpack:"sys"`
	Weather []Condition `json:"weather" msgpack:"weather"`
}

// IsDaytime reports whether the observation falls inside the daylight
// window.
func (d *Data) IsDaytime() bool {
	return d.Sys.Sunrise <= d.Dt && d.Dt <= d.Sys.Sunset
}

// ForecastSlot is one three-hour slot of a forecast response.
type ForecastSlot struct {
	Dt      int64       `json:"dt" msgpack:"dt"`
	Main    Readings    `json:"main" msgpack:"main"`
	Weather []Condition `json:"weather" msgpack:"weather"`
	DtTxt   string      `json:"dt_txt" msgpack:"dt_txt"`
}

// ForecastCity is the city block of a forecast response.
type ForecastCity struct {
	Name    string `json:"name" msgpack:"name"`
	Sunrise int64  `json:"sunrise" msgpack:"sunrise"`
	Sunset  int64  `json:"sunset" msgpack:"sunset"`
}

// Forecast is a five-day forecast response.
type Forecast struct {
	City  ForecastCity   `json:"city" msgpack:"city"`
	Slots []ForecastSlot `json:"list" msgpack:"slots"`
}
