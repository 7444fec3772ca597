package weather

import "strings"

// The OpenWeatherMap condition table. Each code resolves to a
// description, an icon code and a meteocon file stem; "{day}" in a
// meteocon stem is substituted with day or night at render time.

type conditionInfo struct {
	desc     string
	icon     string
	meteocon string
}

type groupInfo struct {
	icon     string
	meteocon string
}

var groupDefaults = map[int]groupInfo{
	2: {icon: "11d", meteocon: "thunderstorms-{day}-rain"},
	3: {icon: "09d", meteocon: "partly-cloudy-{day}-drizzle"},
	5: {icon: "10d", meteocon: "partly-cloudy-{day}-rain"},
	6: {icon: "13d", meteocon: "partly-cloudy-{day}-snow"},
	7: {icon: "50d", meteocon: "fog-{day}"},
	8: {icon: "03d", meteocon: "partly-cloudy-{day}"},
}

var conditionTable = map[int]conditionInfo{
	200: {desc: "thunderstorm with light rain"},
	201: {desc: "thunderstorm with rain"},
	202: {desc: "thunderstorm with heavy rain"},
	210: {desc: "light thunderstorm"},
	211: {desc: "thunderstorm", meteocon: "thunderstorms-{day}"},
	212: {desc: "heavy thunderstorm", meteocon: "thunderstorms-{day}-extreme"},
	221: {desc: "ragged thunderstorm", meteocon: "thunderstorms-{day}-extreme"},
	230: {desc: "thunderstorm with light drizzle"},
	231: {desc: "thunderstorm with drizzle"},
	232: {desc: "thunderstorm with heavy drizzle"},

	300: {desc: "light intensity drizzle"},
	301: {desc: "drizzle"},
	302: {desc: "heavy intensity drizzle"},
	310: {desc: "light intensity drizzle rain"},
	311: {desc: "drizzle rain"},
	312: {desc: "heavy intensity drizzle rain"},
	313: {desc: "shower rain and drizzle"},
	314: {desc: "heavy shower rain and drizzle"},
	321: {desc: "shower drizzle"},

	500: {desc: "light rain"},
	501: {desc: "moderate rain"},
	502: {desc: "heavy intensity rain"},
	503: {desc: "very heavy rain"},
	504: {desc: "extreme rain", meteocon: "extreme-{day}-rain"},
	511: {desc: "freezing rain", icon: "13d", meteocon: "partly-cloudy-{day}-sleet"},
	520: {desc: "light intensity shower rain", icon: "09d"},
	521: {desc: "shower rain", icon: "09d"},
	522: {desc: "heavy intensity shower rain", icon: "09d"},
	531: {desc: "ragged shower rain", icon: "09d"},

	600: {desc: "light snow"},
	601: {desc: "snow"},
	602: {desc: "heavy snow"},
	611: {desc: "sleet", meteocon: "partly-cloudy-{day}-sleet"},
	612: {desc: "light shower sleet", meteocon: "partly-cloudy-{day}-sleet"},
	613: {desc: "shower sleet", meteocon: "partly-cloudy-{day}-sleet"},
	615: {desc: "light rain and snow"},
	616: {desc: "rain and snow"},
	620: {desc: "light shower snow"},
	621: {desc: "shower snow"},
	622: {desc: "heavy shower snow", meteocon: "extreme-{day}-snow"},

	701: {desc: "mist", meteocon: "mist"},
	711: {desc: "smoke", meteocon: "overcast-{day}-smoke"},
	721: {desc: "haze", meteocon: "haze-{day}"},
	731: {desc: "sand/dust whirls", meteocon: "dust-wind"},
	741: {desc: "fog"},
	751: {desc: "sand", meteocon: "dust"},
	761: {desc: "dust", meteocon: "dust"},
	762: {desc: "volcanic ash", meteocon: "dust"},
	771: {desc: "squalls", meteocon: "wind"},
	781: {desc: "tornado", meteocon: "tornado"},

	800: {desc: "clear sky", icon: "01d", meteocon: "clear-{day}"},
	801: {desc: "few clouds", icon: "02d"},
	802: {desc: "scattered clouds", icon: "03d"},
	803: {desc: "broken clouds", icon: "04d"},
	804: {desc: "overcast clouds", icon: "04d", meteocon: "overcast-{day}"},
}

// meteoconFile resolves a meteocon stem to its svg filename for the given
// time of day.
func meteoconFile(stem string, daytime bool) string {
	if stem == "" {
		return ""
	}
	day := "night"
	if daytime {
		day = "day"
	}
	return strings.ReplaceAll(stem, "{day}", day) + ".svg"
}

// iconCode flips an icon's day suffix to the night variant when needed.
func iconCode(icon string, daytime bool) string {
	if !strings.HasSuffix(icon, "d") || daytime {
		return icon
	}
	return icon[:len(icon)-1] + "n"
}

// Resolve fills in the description, icon and meteocon for a raw condition
// entry. Unknown codes keep whatever the API returned.
func Resolve(c Condition, daytime bool) Condition {
	group := groupDefaults[c.ID/100]
	info, ok := conditionTable[c.ID]
	if !ok {
		c.Meteocon = meteoconFile(group.meteocon, daytime)
		c.Icon = iconCode(c.Icon, daytime)
		return c
	}
	c.Description = info.desc
	icon := info.icon
	if icon == "" {
		icon = group.icon
	}
	if c.Icon == "" {
		c.Icon = icon
	}
	c.Icon = iconCode(c.Icon, daytime)
	stem := info.meteocon
	if stem == "" {
		stem = group.meteocon
	}
	c.Meteocon = meteoconFile(stem, daytime)
	return c
}

// ResolveAll resolves every condition of one observation in place.
func ResolveAll(conditions []Condition, daytime bool) []Condition {
	out := make([]Condition, len(conditions))
	for i, c := range conditions {
		out[i] = Resolve(c, daytime)
	}
	return out
}
