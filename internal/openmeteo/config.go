package openmeteo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required configuration or record field is absent.
	ErrMissingField = errors.New("missing required field")
)

// Number is a configuration value that may be supplied either as a JSON string
// or a JSON number. It keeps the literal text so it can be sent back verbatim.
type Number string

// UnmarshalJSON accepts "-37.1" as well as -37.1.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*n = Number(num)
	return nil
}

// String returns the literal text of the value.
func (n Number) String() string {
	return string(n)
}

// Option is a string setting that remembers whether its key was present.
// An explicit null is present with an empty value.
type Option struct {
	Value   string
	Present bool
}

// UnmarshalJSON is called for null too, which marks the key as present.
func (o *Option) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// SourceConfig is the user-supplied connector configuration.
// Pointer fields are nil when the key is absent from the document or null.
type SourceConfig struct {
	Latitude  *Number `json:"latitude"`
	Longitude *Number `json:"longitude"`

	Timezone          Option  `json:"timezone"`
	TemperatureUnit   *string `json:"temperature_unit,omitempty"`
	PrecipitationUnit *string `json:"precipitation_unit,omitempty"`
	WindSpeedUnit     *string `json:"wind_speed_unit,omitempty"`

	ForecastDays *Number `json:"forecast_days,omitempty"`
	PastDays     *Number `json:"past_days,omitempty"`

	Hourly []string `json:"hourly"`
	Daily  []string `json:"daily"`
}

// ParseSourceConfig decodes a JSON configuration document.
func ParseSourceConfig(data []byte) (SourceConfig, error) {
	var cfg SourceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return SourceConfig{}, fmt.Errorf("decode source config: %w", err)
	}
	return cfg, nil
}
