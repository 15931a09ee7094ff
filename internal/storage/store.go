package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"poolLedger/internal/model"
)

// LogSink defines a sink for log records.
type LogSink interface {
	PutLogBatch(logs []model.LogRecord) error
}

// Store is the key-value contract the ledger reads and writes entities through.
type Store interface {
	Get(ctx context.Context, kind, id string) ([]byte, bool, error)
	Put(ctx context.Context, kind, id string, data []byte) error
}

// Record is one serialized entity.
type Record struct {
	Kind string          `json:"kind"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Backend is a Store that can also persist a set of records atomically.
type Backend interface {
	Store
	PutBatch(ctx context.Context, records []Record) error
}

// Lister enumerates stored entity ids.
type Lister interface {
	ListIDs(ctx context.Context, kind, prefix string) ([]string, error)
}

// Archiver receives every flushed batch after the backend has committed it.
type Archiver interface {
	Archive(ctx context.Context, records []Record) error
}

// Load reads and decodes one entity.
func Load[T any](ctx context.Context, s Store, kind, id string) (*T, bool, error) {
	data, ok, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, false, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	if !ok {
		return nil, false, nil
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, false, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return out, true, nil
}

// LoadOrCreate reads one entity, building it with create when absent.
// The bool reports whether the entity was created.
func LoadOrCreate[T any](ctx context.Context, s Store, kind, id string, create func() *T) (*T, bool, error) {
	out, ok, err := Load[T](ctx, s, kind, id)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return out, false, nil
	}
	return create(), true, nil
}

// Save encodes and writes entities in order.
func Save(ctx context.Context, s Store, entities ...model.Entity) error {
	for _, e := range entities {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", e.EntityKind(), e.EntityID(), err)
		}
		if err := s.Put(ctx, e.EntityKind(), e.EntityID(), data); err != nil {
			return fmt.Errorf("put %s %s: %w", e.EntityKind(), e.EntityID(), err)
		}
	}
	return nil
}
