package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

type entityKey struct {
	kind string
	id   string
}

// MemoryStore keeps entities in process memory.
type MemoryStore struct {
	entities *xsync.Map[entityKey, []byte]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entities: xsync.NewMap[entityKey, []byte]()}
}

func (m *MemoryStore) Get(_ context.Context, kind, id string) ([]byte, bool, error) {
	data, ok := m.entities.Load(entityKey{kind: kind, id: id})
	return data, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, kind, id string, data []byte) error {
	m.entities.Store(entityKey{kind: kind, id: id}, append([]byte(nil), data...))
	return nil
}

func (m *MemoryStore) PutBatch(ctx context.Context, records []Record) error {
	for _, r := range records {
		if err := m.Put(ctx, r.Kind, r.ID, r.Data); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of stored entities.
func (m *MemoryStore) Len() int {
	return m.entities.Size()
}

// Records returns every entity ordered by kind then id.
func (m *MemoryStore) Records() []Record {
	out := make([]Record, 0, m.entities.Size())
	m.entities.Range(func(k entityKey, v []byte) bool {
		out = append(out, Record{Kind: k.kind, ID: k.id, Data: v})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ListIDs returns the sorted ids of one kind that start with prefix.
func (m *MemoryStore) ListIDs(_ context.Context, kind, prefix string) ([]string, error) {
	var ids []string
	m.entities.Range(func(k entityKey, _ []byte) bool {
		if k.kind == kind && strings.HasPrefix(k.id, prefix) {
			ids = append(ids, k.id)
		}
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

// Dump writes all entities to a JSONL snapshot.
func (m *MemoryStore) Dump(path string) error {
	return WriteJSONL(path, m.Records())
}

// Restore loads a snapshot written by Dump. A missing file is not an error.
func (m *MemoryStore) Restore(path string) error {
	err := ReadJSONL(path, func(line []byte) error {
		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return fmt.Errorf("decode snapshot record: %w", err)
		}
		m.entities.Store(entityKey{kind: r.Kind, id: r.ID}, []byte(r.Data))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
