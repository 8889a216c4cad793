package openmeteo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CheckResult is the outcome of a configuration check.
type CheckResult struct {
	Succeeded bool   `json:"succeeded"`
	Message   string `json:"message,omitempty"`
}

func checkFailed(format string, args ...any) CheckResult {
	return CheckResult{Message: fmt.Sprintf(format, args...)}
}

// CheckConnection validates the configuration without contacting the API.
// Checks run in order and stop at the first failure. The coordinate bounds are
// exclusive: exactly ±90 and ±180 are rejected.
func CheckConnection(cfg SourceConfig) CheckResult {
	lat, ok := parseCoordinate(cfg.Latitude)
	if !ok {
		return checkFailed("Invalid latitude value provided")
	}
	if math.Abs(lat) >= 90.0 {
		return checkFailed("Latitude %s must be between -90.0 and 90.0", cfg.Latitude.String())
	}

	lon, ok := parseCoordinate(cfg.Longitude)
	if !ok {
		return checkFailed("Invalid longitude value provided")
	}
	if math.Abs(lon) >= 180.0 {
		return checkFailed("Longitude %s must be between -180.0 and 180.0", cfg.Longitude.String())
	}

	if err := validate.Var(cfg.Daily, "min=1"); err != nil {
		return checkFailed("Daily must include at least one field")
	}
	if err := validate.Var(cfg.Hourly, "min=1"); err != nil {
		return checkFailed("Hourly must include at least one field")
	}

	return CheckResult{Succeeded: true}
}

func parseCoordinate(n *Number) (float64, bool) {
	if n == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(n.String()), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Streams returns the hourly and daily streams for a configuration.
func Streams(cfg SourceConfig) ([]*Stream, error) {
	streams := make([]*Stream, 0, len(Variants()))
	for _, v := range Variants() {
		s, err := NewStream(v, cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s stream: %w", v.StreamName(), err)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// LookupVariant resolves a stream name to its variant.
func LookupVariant(streamName string) (Variant, bool) {
	for _, v := range Variants() {
		if v.StreamName() == streamName {
			return v, true
		}
	}
	return 0, false
}
