package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/source-open-meteo/internal/openmeteo"
)

var (
	// ErrNotFound is returned when no batch is available for a stream.
	ErrNotFound = errors.New("no synced records for stream")
)

// Batch is the set of records one sync produced for one stream.
type Batch struct {
	ID       string             `json:"id"`
	Stream   string             `json:"stream"`
	SyncedAt time.Time          `json:"syncedAt"` // always UTC
	Records  []openmeteo.Record `json:"records"`
}

// NewBatch stamps records with a fresh batch ID.
func NewBatch(stream string, syncedAt time.Time, records []openmeteo.Record) Batch {
	return Batch{
		ID:       uuid.NewString(),
		Stream:   stream,
		SyncedAt: syncedAt.UTC(),
		Records:  records,
	}
}

// BatchHistory holds a time-ordered list of batches for a stream.
type BatchHistory struct {
	Batches []Batch
}

// MemoryStore is a concurrency-safe in-memory store of synced batches.
type MemoryStore struct {
	mu sync.RWMutex

	// key: stream name
	data map[string]*BatchHistory

	maxHistory int           // max number of batches per stream
	maxAge     time.Duration // optional max age for batches
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*BatchHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveBatch appends a batch for its stream and enforces retention.
func (s *MemoryStore) SaveBatch(batch Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[batch.Stream]
	if !ok {
		history = &BatchHistory{}
		s.data[batch.Stream] = history
	}

	history.Batches = append(history.Batches, batch)

	if s.maxHistory > 0 && len(history.Batches) > s.maxHistory {
		over := len(history.Batches) - s.maxHistory
		history.Batches = history.Batches[over:]
	}

	// The newest batch is always kept, even when older than maxAge.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Batches)-1; i++ {
			if !history.Batches[i].SyncedAt.Before(cutoff) {
				break
			}
		}
		history.Batches = history.Batches[i:]
	}
}

// GetLatest returns the most recent batch for a stream.
func (s *MemoryStore) GetLatest(stream string) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stream]
	if !ok || len(history.Batches) == 0 {
		return Batch{}, ErrNotFound
	}
	return history.Batches[len(history.Batches)-1], nil
}

// GetRange returns all batches for a stream synced between from and to (inclusive).
func (s *MemoryStore) GetRange(stream string, from, to time.Time) ([]Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stream]
	if !ok || len(history.Batches) == 0 {
		return nil, ErrNotFound
	}

	var result []Batch
	for _, b := range history.Batches {
		if !b.SyncedAt.Before(from) && !b.SyncedAt.After(to) {
			result = append(result, b)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
