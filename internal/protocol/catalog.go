package protocol

import (
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
)

const syncModeFullRefresh = "full_refresh"

// Catalog lists the streams the connector can emit.
type Catalog struct {
	Streams []StreamInfo `json:"streams"`
}

type StreamInfo struct {
	Name                    string         `json:"name"`
	JSONSchema              map[string]any `json:"json_schema"`
	SupportedSyncModes      []string       `json:"supported_sync_modes"`
	SourceDefinedCursor     bool           `json:"source_defined_cursor"`
	DefaultCursorField      []string       `json:"default_cursor_field"`
	SourceDefinedPrimaryKey [][]string     `json:"source_defined_primary_key"`
}

// recordSchema describes the fields every row carries. Requested fields are
// open-ended, so additional properties are allowed.
func recordSchema() map[string]any {
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"time":         map[string]any{"type": "string"},
			"weather_code": map[string]any{"type": []string{"null", "string"}},
			"updated_at":   map[string]any{"type": "string", "format": "date-time"},
		},
	}
}

// BuildCatalog describes the given streams. Only full refresh is supported.
func BuildCatalog(streams []*openmeteo.Stream) Catalog {
	c := Catalog{Streams: make([]StreamInfo, 0, len(streams))}
	for _, s := range streams {
		c.Streams = append(c.Streams, StreamInfo{
			Name:                    s.Name(),
			JSONSchema:              recordSchema(),
			SupportedSyncModes:      []string{syncModeFullRefresh},
			SourceDefinedCursor:     false,
			DefaultCursorField:      []string{s.CursorField()},
			SourceDefinedPrimaryKey: [][]string{{s.PrimaryKey()}},
		})
	}
	return c
}
