package openmeteo

import (
	"fmt"
	"net/url"
)

// DefaultTimezone is sent when the configuration does not name one.
const DefaultTimezone = "GMT"

// Params is the canonical set of query parameters for a forecast request.
// An empty string means the parameter is omitted and the API default applies.
type Params struct {
	Latitude          string
	Longitude         string
	Timezone          string
	WindSpeedUnit     string
	TemperatureUnit   string
	PrecipitationUnit string
	ForecastDays      string
	PastDays          string

	// Field selection, set by the stream variant.
	Hourly string
	Daily  string
}

// windSpeedUnits maps the values offered to users onto API tokens.
// Anything else is dropped.
var windSpeedUnits = map[string]string{
	"Mph":   "mph",
	"m/s":   "ms",
	"knots": "kn",
}

// NormalizeParams derives the canonical request parameters from a configuration.
func NormalizeParams(cfg SourceConfig) (Params, error) {
	if cfg.Latitude == nil {
		return Params{}, fmt.Errorf("%w: latitude", ErrMissingField)
	}
	if cfg.Longitude == nil {
		return Params{}, fmt.Errorf("%w: longitude", ErrMissingField)
	}

	p := Params{
		Latitude:  cfg.Latitude.String(),
		Longitude: cfg.Longitude.String(),
		Timezone:  DefaultTimezone,
	}

	// A timezone key set to null drops the parameter.
	if cfg.Timezone.Present {
		p.Timezone = cfg.Timezone.Value
	}

	// Celsius and millimeter are the API defaults and are rejected when sent explicitly.
	if cfg.TemperatureUnit != nil && *cfg.TemperatureUnit != "celsius" {
		p.TemperatureUnit = *cfg.TemperatureUnit
	}
	if cfg.PrecipitationUnit != nil && *cfg.PrecipitationUnit != "millimeter" {
		p.PrecipitationUnit = *cfg.PrecipitationUnit
	}
	if cfg.WindSpeedUnit != nil {
		p.WindSpeedUnit = windSpeedUnits[*cfg.WindSpeedUnit]
	}

	if cfg.ForecastDays != nil {
		p.ForecastDays = cfg.ForecastDays.String()
	}
	if cfg.PastDays != nil {
		p.PastDays = cfg.PastDays.String()
	}

	return p, nil
}

// Values renders the non-empty parameters as a URL query.
func (p Params) Values() url.Values {
	values := url.Values{}
	set := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}

	set("latitude", p.Latitude)
	set("longitude", p.Longitude)
	set("timezone", p.Timezone)
	set("wind_speed_unit", p.WindSpeedUnit)
	set("temperature_unit", p.TemperatureUnit)
	set("precipitation_unit", p.PrecipitationUnit)
	set("forecast_days", p.ForecastDays)
	set("past_days", p.PastDays)
	set("hourly", p.Hourly)
	set("daily", p.Daily)

	return values
}
