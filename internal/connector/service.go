package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/source-open-meteo/internal/logger"
	"github.com/i474232898/source-open-meteo/internal/metrics"
	"github.com/i474232898/source-open-meteo/internal/openmeteo"
	"github.com/i474232898/source-open-meteo/internal/store"
)

// Fetcher performs the outbound GET. *transport.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, query url.Values) (*http.Response, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveBatch(batch store.Batch)
	GetLatest(stream string) (store.Batch, error)
	GetRange(stream string, from, to time.Time) ([]store.Batch, error)
}

// EmitFunc receives each record of a read, in stream order.
type EmitFunc func(stream string, rec openmeteo.Record) error

// Service runs the connector's streams against the API and keeps synced batches.
type Service struct {
	fetcher Fetcher
	baseURL string
	store   Store
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewService creates a new Service. baseURL is the API root, e.g. openmeteo.BaseURL.
func NewService(fetcher Fetcher, baseURL string, st Store, m *metrics.Metrics) *Service {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Service{
		fetcher: fetcher,
		baseURL: baseURL,
		store:   st,
		metrics: m,
		log:     logger.GetLogger().With("component", "connector"),
		now:     time.Now,
	}
}

// Check validates a configuration. It does not contact the API.
func (s *Service) Check(cfg openmeteo.SourceConfig) openmeteo.CheckResult {
	res := openmeteo.CheckConnection(cfg)
	if res.Succeeded {
		s.log.Infow("connection check succeeded")
	} else {
		s.log.Warnw("connection check failed", "reason", res.Message)
	}
	return res
}

// Streams builds the connector streams for a configuration.
func (s *Service) Streams(cfg openmeteo.SourceConfig) ([]*openmeteo.Stream, error) {
	return openmeteo.Streams(cfg)
}

// ReadStream issues the single request for a stream and parses its rows.
func (s *Service) ReadStream(ctx context.Context, stream *openmeteo.Stream) ([]openmeteo.Record, error) {
	start := time.Now()
	records, err := s.readStream(ctx, stream)
	s.metrics.ObserveRead(stream.Name(), len(records), time.Since(start), err)
	if err != nil {
		s.log.Errorw("stream read failed", "stream", stream.Name(), "error", err)
		return nil, err
	}
	s.log.Debugw("stream read", "stream", stream.Name(), "records", len(records))
	return records, nil
}

func (s *Service) readStream(ctx context.Context, stream *openmeteo.Stream) ([]openmeteo.Record, error) {
	resp, err := s.fetcher.Get(ctx, s.baseURL+stream.Path(), stream.RequestParams().Values())
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", stream.Name(), err)
	}
	defer resp.Body.Close()

	records, err := stream.ParseResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", stream.Name(), err)
	}
	return records, nil
}

// Read syncs the selected streams in order and hands each record to emit.
// An empty selection reads every stream; unselected streams are never
// requested. The first failing stream aborts the read.
func (s *Service) Read(ctx context.Context, cfg openmeteo.SourceConfig, only []openmeteo.Variant, emit EmitFunc) error {
	streams, err := selectStreams(cfg, only)
	if err != nil {
		return err
	}

	for _, stream := range streams {
		records, err := s.ReadStream(ctx, stream)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := emit(stream.Name(), rec); err != nil {
				return fmt.Errorf("emit %s record: %w", stream.Name(), err)
			}
		}
	}
	return nil
}

// selectStreams builds only the requested variants, keeping emission order.
func selectStreams(cfg openmeteo.SourceConfig, only []openmeteo.Variant) ([]*openmeteo.Stream, error) {
	if len(only) == 0 {
		return openmeteo.Streams(cfg)
	}

	var streams []*openmeteo.Stream
	for _, v := range openmeteo.Variants() {
		if !slices.Contains(only, v) {
			continue
		}
		stream, err := openmeteo.NewStream(v, cfg)
		if err != nil {
			return nil, fmt.Errorf("build %s stream: %w", v.StreamName(), err)
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

// SyncAndStore reads every stream and saves one batch per stream.
// Nothing is stored unless all streams succeed.
func (s *Service) SyncAndStore(ctx context.Context, cfg openmeteo.SourceConfig) error {
	if s.store == nil {
		return fmt.Errorf("no store configured")
	}

	streams, err := s.Streams(cfg)
	if err != nil {
		return err
	}

	syncedAt := s.now()
	batches := make([]store.Batch, 0, len(streams))
	for _, stream := range streams {
		records, err := s.ReadStream(ctx, stream)
		if err != nil {
			return err
		}
		batches = append(batches, store.NewBatch(stream.Name(), syncedAt, records))
	}

	for _, b := range batches {
		s.store.SaveBatch(b)
		s.log.Infow("stored batch", "stream", b.Stream, "batch", b.ID, "records", len(b.Records))
	}
	return nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(stream string) (store.Batch, error) {
	if s.store == nil {
		return store.Batch{}, store.ErrNotFound
	}
	return s.store.GetLatest(stream)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(stream string, from, to time.Time) ([]store.Batch, error) {
	if s.store == nil {
		return nil, store.ErrNotFound
	}
	return s.store.GetRange(stream, from, to)
}
