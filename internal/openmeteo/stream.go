package openmeteo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	// BaseURL is the root of the public Open-Meteo API.
	BaseURL = "https://api.open-meteo.com/v1/"

	forecastPath = "forecast"
	primaryKey   = "time"
	cursorField  = "updated_at"
	codeField    = "weather_code"
)

// ErrMissingSection is returned when the response lacks the variant's data object.
var ErrMissingSection = errors.New("response section missing")

// Variant selects which forecast resolution a stream reads.
type Variant int

const (
	Hourly Variant = iota
	Daily
)

var variantInfo = [...]struct {
	key    string
	stream string
}{
	Hourly: {key: "hourly", stream: "hourly_forecast"},
	Daily:  {key: "daily", stream: "daily_forecast"},
}

// Variants lists all variants in emission order.
func Variants() []Variant {
	return []Variant{Hourly, Daily}
}

// ConfigKey is the configuration key holding the requested field list.
func (v Variant) ConfigKey() string { return variantInfo[v].key }

// ResponseKey is the top-level response object holding the columns.
func (v Variant) ResponseKey() string { return variantInfo[v].key }

// StreamName is the name records are emitted under.
func (v Variant) StreamName() string { return variantInfo[v].stream }

func (v Variant) String() string { return v.StreamName() }

func (v Variant) requestedFields(cfg SourceConfig) []string {
	if v == Daily {
		return cfg.Daily
	}
	return cfg.Hourly
}

// Stream is one forecast stream bound to a configuration.
type Stream struct {
	variant Variant
	params  Params
	now     func() time.Time
}

// NewStream builds the stream for a variant. The configuration must name the
// coordinates and the variant's field list.
func NewStream(v Variant, cfg SourceConfig) (*Stream, error) {
	params, err := NormalizeParams(cfg)
	if err != nil {
		return nil, err
	}

	fields := v.requestedFields(cfg)
	if fields == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, v.ConfigKey())
	}
	joined := strings.Join(fields, ",")
	switch v {
	case Hourly:
		params.Hourly = joined
	case Daily:
		params.Daily = joined
	}

	return &Stream{
		variant: v,
		params:  params,
		now:     time.Now,
	}, nil
}

func (s *Stream) Name() string          { return s.variant.StreamName() }
func (s *Stream) Path() string          { return forecastPath }
func (s *Stream) HTTPMethod() string    { return http.MethodGet }
func (s *Stream) PrimaryKey() string    { return primaryKey }
func (s *Stream) CursorField() string   { return cursorField }
func (s *Stream) RequestParams() Params { return s.params }

// NextPageToken is always nil; the API answers with a single page.
func (s *Stream) NextPageToken(*http.Response) map[string]string { return nil }

// ParseResponse flattens the variant's columnar payload into rows.
//
// Row i holds element i of every column, in the order the columns appear in the
// response. The weather code is replaced by its description and updated_at is
// stamped at parse time. An unknown code fails the whole response.
func (s *Stream) ParseResponse(body io.Reader) ([]Record, error) {
	cols, err := decodeSection(body, s.variant.ResponseKey())
	if err != nil {
		return nil, err
	}

	rows := transpose(cols)
	for i := range rows {
		raw, ok := rows[i].Get(codeField)
		if !ok {
			return nil, fmt.Errorf("row %d: %w: %s", i, ErrMissingField, codeField)
		}
		code, err := weatherCode(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		desc, err := DescribeWeatherCode(code)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i].Set(codeField, desc)
		rows[i].Set(cursorField, s.now())
	}

	return rows, nil
}

type column struct {
	name   string
	values []any
}

// transpose zips the columns into rows, stopping at the shortest column.
func transpose(cols []column) []Record {
	if len(cols) == 0 {
		return nil
	}

	n := len(cols[0].values)
	for _, c := range cols[1:] {
		if len(c.values) < n {
			n = len(c.values)
		}
	}

	rows := make([]Record, n)
	for i := 0; i < n; i++ {
		rec := NewRecord(len(cols) + 1)
		for _, c := range cols {
			rec.Set(c.name, c.values[i])
		}
		rows[i] = rec
	}
	return rows
}

// decodeSection reads the object under key from a JSON body, keeping column order.
func decodeSection(r io.Reader, key string) ([]column, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var (
		cols  []column
		found bool
	)
	for dec.More() {
		name, err := objectKey(dec)
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if name != key {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			continue
		}
		cols, err = decodeColumns(dec)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		found = true
	}

	if !found {
		return nil, fmt.Errorf("%w: %q", ErrMissingSection, key)
	}
	return cols, nil
}

func decodeColumns(dec *json.Decoder) ([]column, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var cols []column
	index := make(map[string]int)
	for dec.More() {
		name, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		var values []any
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		// A repeated key replaces the earlier values but keeps its position.
		if i, ok := index[name]; ok {
			cols[i].values = values
			continue
		}
		index[name] = len(cols)
		cols = append(cols, column{name: name, values: values})
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return cols, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	name, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return name, nil
}

// weatherCode accepts integral JSON numbers such as 80 or 80.0.
func weatherCode(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownWeatherCode, v)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownWeatherCode, n)
	}
	return int(f), nil
}
