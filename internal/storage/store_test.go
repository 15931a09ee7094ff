package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/model"
)

func TestLoadOrCreateAndSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	bundle, created, err := LoadOrCreate(ctx, store, model.KindBundle, "1", func() *model.Bundle {
		return &model.Bundle{ID: "1", EthPriceUSD: decimal.Zero}
	})
	require.NoError(t, err)
	assert.True(t, created)

	bundle.EthPriceUSD = decimal.RequireFromString("1834.25")
	require.NoError(t, Save(ctx, store, bundle))

	loaded, ok, err := Load[model.Bundle](ctx, store, model.KindBundle, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, loaded.EthPriceUSD.Equal(bundle.EthPriceUSD))

	_, created, err = LoadOrCreate(ctx, store, model.KindBundle, "1", func() *model.Bundle {
		t.Fatal("create must not be called for an existing entity")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadMissing(t *testing.T) {
	got, ok, err := Load[model.Pool](context.Background(), NewMemoryStore(), model.KindPool, "1-0xabc")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

type failingBackend struct {
	*MemoryStore
	fail bool
}

func (f *failingBackend) PutBatch(ctx context.Context, records []Record) error {
	if f.fail {
		return errors.New("boom")
	}
	return f.MemoryStore.PutBatch(ctx, records)
}

type recordingArchiver struct {
	batches [][]Record
}

func (r *recordingArchiver) Archive(_ context.Context, records []Record) error {
	r.batches = append(r.batches, records)
	return nil
}

func TestBufferedFlush(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryStore: NewMemoryStore()}
	archive := &recordingArchiver{}
	buf := NewBuffered(backend, nil, archive)

	require.NoError(t, Save(ctx, buf, &model.Bundle{ID: "1", EthPriceUSD: decimal.NewFromInt(2000)}))
	require.NoError(t, Save(ctx, buf, &model.Bundle{ID: "1", EthPriceUSD: decimal.NewFromInt(2001)}))
	require.NoError(t, Save(ctx, buf, &model.Cursor{ID: "ledger", BlockNumber: 10, LogIndex: 2}))
	assert.Equal(t, 2, buf.Pending())

	_, ok, err := backend.Get(ctx, model.KindBundle, "1")
	require.NoError(t, err)
	assert.False(t, ok, "backend must not see unflushed writes")

	seen, ok, err := Load[model.Bundle](ctx, buf, model.KindBundle, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, seen.EthPriceUSD.Equal(decimal.NewFromInt(2001)))

	backend.fail = true
	_, err = buf.Flush(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, buf.Pending())
	assert.Empty(t, archive.batches)

	backend.fail = false
	n, err := buf.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, buf.Pending())
	require.Len(t, archive.batches, 1)
	assert.Equal(t, model.KindBundle, archive.batches[0][0].Kind)
	assert.Equal(t, model.KindCursor, archive.batches[0][1].Kind)

	cursor, ok, err := Load[model.Cursor](ctx, backend, model.KindCursor, "ledger")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), cursor.BlockNumber)
}

func TestMemoryStoreDumpRestore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entities.jsonl")

	src := NewMemoryStore()
	require.NoError(t, Save(ctx, src,
		&model.Token{ID: "1-0xb", Symbol: "B", Decimals: 18},
		&model.Token{ID: "1-0xa", Symbol: "A", Decimals: 6},
		&model.Bundle{ID: "1", EthPriceUSD: decimal.NewFromInt(1500)},
	))
	require.NoError(t, src.Dump(path))

	records := src.Records()
	require.Len(t, records, 3)
	assert.Equal(t, model.KindBundle, records[0].Kind)
	assert.Equal(t, "1-0xa", records[1].ID)

	dst := NewMemoryStore()
	require.NoError(t, dst.Restore(path))
	assert.Equal(t, 3, dst.Len())

	token, ok, err := Load[model.Token](ctx, dst, model.KindToken, "1-0xa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint8(6), token.Decimals)

	require.NoError(t, NewMemoryStore().Restore(filepath.Join(t.TempDir(), "missing.jsonl")))

	ids, err := dst.ListIDs(ctx, model.KindToken, "1-")
	require.NoError(t, err)
	assert.Equal(t, []string{"1-0xa", "1-0xb"}, ids)
}

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "logs.jsonl")
	sink := NewJsonlStorage(path)

	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{BlockNumber: 1}, {BlockNumber: 2}}))
	require.NoError(t, sink.PutLogBatch(nil))
	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{BlockNumber: 3}}))

	var lines int
	require.NoError(t, ReadJSONL(path, func([]byte) error {
		lines++
		return nil
	}))
	assert.Equal(t, 3, lines)
}

func TestJSONLWriterAndNumberedRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.jsonl")
	w, err := CreateJSONL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(model.DecodeError{Line: 1, Reason: model.ReasonMalformedLine, Error: "bad"}))
	require.NoError(t, w.Write(model.DecodeError{Line: 3, Reason: model.ReasonDecodeFailed, Error: "short data"}))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	var numbers []int
	require.NoError(t, ReadJSONLNumbered(path, func(n int, _ []byte) error {
		numbers = append(numbers, n)
		return nil
	}))
	assert.Equal(t, []int{1, 2}, numbers)

	// Truncates on reopen.
	w, err = CreateJSONL(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	numbers = nil
	require.NoError(t, ReadJSONLNumbered(path, func(n int, _ []byte) error {
		numbers = append(numbers, n)
		return nil
	}))
	assert.Empty(t, numbers)
}
