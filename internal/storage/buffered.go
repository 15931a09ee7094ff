package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Buffered is a write-back overlay over a Backend. Reads see pending writes
// first; Flush commits the pending set in one backend batch.
type Buffered struct {
	backend   Backend
	archivers []Archiver
	logger    *zap.Logger

	mu      sync.RWMutex
	pending map[entityKey][]byte
	order   []entityKey
}

func NewBuffered(backend Backend, logger *zap.Logger, archivers ...Archiver) *Buffered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffered{
		backend:   backend,
		archivers: archivers,
		logger:    logger,
		pending:   make(map[entityKey][]byte),
	}
}

func (b *Buffered) Get(ctx context.Context, kind, id string) ([]byte, bool, error) {
	b.mu.RLock()
	data, ok := b.pending[entityKey{kind: kind, id: id}]
	b.mu.RUnlock()
	if ok {
		return data, true, nil
	}
	return b.backend.Get(ctx, kind, id)
}

func (b *Buffered) Put(_ context.Context, kind, id string, data []byte) error {
	key := entityKey{kind: kind, id: id}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[key]; !ok {
		b.order = append(b.order, key)
	}
	b.pending[key] = append([]byte(nil), data...)
	return nil
}

// Pending returns the number of entities waiting for Flush.
func (b *Buffered) Pending() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Flush writes all pending entities to the backend, then hands them to the
// archivers. Pending state is kept if the backend write fails.
func (b *Buffered) Flush(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.order) == 0 {
		return 0, nil
	}

	records := make([]Record, 0, len(b.order))
	for _, key := range b.order {
		records = append(records, Record{Kind: key.kind, ID: key.id, Data: b.pending[key]})
	}

	if err := b.backend.PutBatch(ctx, records); err != nil {
		return 0, fmt.Errorf("flush %d entities: %w", len(records), err)
	}

	for _, a := range b.archivers {
		if err := a.Archive(ctx, records); err != nil {
			b.logger.Warn("archive batch failed", zap.Int("records", len(records)), zap.Error(err))
		}
	}

	b.pending = make(map[entityKey][]byte)
	b.order = nil
	return len(records), nil
}
