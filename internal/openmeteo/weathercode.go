package openmeteo

import (
	"errors"
	"fmt"
)

// ErrUnknownWeatherCode is returned for codes outside the WMO table below.
var ErrUnknownWeatherCode = errors.New("unknown weather code")

// WMO weather interpretation codes as documented by Open-Meteo.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog and depositing rime fog",
	48: "Fog and depositing rime fog",
	51: "Drizzle: Light intensity",
	53: "Drizzle: Moderate intensity",
	55: "Drizzle: Dense intensity",
	56: "Freezing Drizzle: Light intensity",
	57: "Freezing Drizzle: Dense intensity",
	61: "Rain: Slight intensity",
	63: "Rain: Moderate intensity",
	65: "Rain: Heavy intensity",
	66: "Freezing Rain: Light intensity",
	67: "Freezing Rain: Heavy intensity",
	71: "Snow fall: Slight intensity",
	73: "Snow fall: Moderate intensity",
	75: "Snow fall: Heavy intensity",
	77: "Snow grains",
	80: "Rain showers: Slight intensity",
	81: "Rain showers: Moderate intensity",
	82: "Rain showers: Violent intensity",
	85: "Snow showers: Slight intensity",
	86: "Snow showers: Heavy intensity",
	95: "Thunderstorm: Slight",
	96: "Thunderstorm with hail: Slight intensity",
	99: "Thunderstorm with hail: Heavy intensity",
}

// DescribeWeatherCode returns the human-readable phrase for a WMO code.
func DescribeWeatherCode(code int) (string, error) {
	desc, ok := weatherCodes[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownWeatherCode, code)
	}
	return desc, nil
}
