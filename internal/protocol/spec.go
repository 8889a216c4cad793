package protocol

// Spec documents the configuration the connector accepts.
type Spec struct {
	DocumentationURL        string         `json:"documentationUrl"`
	ConnectionSpecification map[string]any `json:"connectionSpecification"`
}

func enumString(title string, values ...string) map[string]any {
	return map[string]any{"type": "string", "title": title, "enum": values}
}

func fieldList(title string) map[string]any {
	return map[string]any{
		"type":     "array",
		"title":    title,
		"minItems": 1,
		"items":    map[string]any{"type": "string"},
	}
}

// ConnectorSpec returns the connection specification.
func ConnectorSpec() Spec {
	return Spec{
		DocumentationURL: "https://open-meteo.com/en/docs",
		ConnectionSpecification: map[string]any{
			"$schema":  "http://json-schema.org/draft-07/schema#",
			"title":    "Open-Meteo Spec",
			"type":     "object",
			"required": []string{"latitude", "longitude", "hourly", "daily"},
			"properties": map[string]any{
				"latitude":           map[string]any{"type": "string", "title": "Latitude", "examples": []string{"-37.1"}},
				"longitude":          map[string]any{"type": "string", "title": "Longitude", "examples": []string{"70.6"}},
				"timezone":           map[string]any{"type": "string", "title": "Timezone", "default": "GMT"},
				"forecast_days":      map[string]any{"type": "integer", "title": "Forecast days", "minimum": 0, "maximum": 16},
				"past_days":          map[string]any{"type": "integer", "title": "Past days", "minimum": 0, "maximum": 92},
				"temperature_unit":   enumString("Temperature unit", "celsius", "fahrenheit"),
				"precipitation_unit": enumString("Precipitation unit", "millimeter", "inch"),
				"wind_speed_unit":    enumString("Wind speed unit", "km/h", "m/s", "Mph", "knots"),
				"hourly":             fieldList("Hourly fields"),
				"daily":              fieldList("Daily fields"),
			},
		},
	}
}
