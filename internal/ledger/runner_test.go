package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

func writeEventsFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed_events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func eventLine(t *testing.T, event model.TypedEventRecord) string {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return string(raw)
}

func newRunnerFor(t *testing.T, backend storage.Backend, path string) (*Runner, *storage.Buffered) {
	t.Helper()
	reg, err := chains.Defaults()
	require.NoError(t, err)

	buffered := storage.NewBuffered(backend, nil)
	engine, err := NewEngine(Config{
		Store:  buffered,
		Chains: reg,
		Resolver: &fakeResolver{metas: map[string]model.TokenMeta{
			usdcAddr: {Address: usdcAddr, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
			wethAddr: {Address: wethAddr, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
		}},
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return NewRunner(RunnerConfig{InputPath: path, FlushEvery: 2}, engine, buffered, nil), buffered
}

func loadCursor(t *testing.T, backend storage.Backend, chain uint64) model.Cursor {
	t.Helper()
	raw, ok, err := backend.Get(t.Context(), model.KindCursor, model.CursorID(DefaultCursorID, chain))
	require.NoError(t, err)
	require.True(t, ok, "cursor for chain %d", chain)
	var cursor model.Cursor
	require.NoError(t, json.Unmarshal(raw, &cursor))
	return cursor
}

func onChain(event model.TypedEventRecord, chain, block uint64) model.TypedEventRecord {
	event.ChainID = chain
	event.BlockNumber = block
	return event
}

func TestRunnerAppliesAndResumes(t *testing.T) {
	f := newFixture(t)
	lines := []string{
		eventLine(t, f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
			Token0: usdcAddr, Token1: wethAddr, Fee: 3000, TickSpacing: 60, Pool: usdcWeth,
		})),
		eventLine(t, f.event(model.EventMint, usdcWeth, model.MintEventData{
			TickLower: -60, TickUpper: 120, Amount: "1000", Amount0: "1000000", Amount1: "1000000000000000000",
		})),
		"{not json",
		eventLine(t, f.event("Flash", usdcWeth, map[string]string{})),
		eventLine(t, f.event(model.EventCollect, usdcWeth, model.CollectEventData{
			TickLower: -60, TickUpper: 120, Amount0: "1", Amount1: "0",
		})),
	}
	path := writeEventsFile(t, lines...)
	backend := storage.NewMemoryStore()

	var flushes []int
	runner, buffered := newRunnerFor(t, backend, path)
	runner.cfg.OnFlush = func(n int) { flushes = append(flushes, n) }

	summary, err := runner.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 5, Applied: 3, Failed: 2, Flushed: summary.Flushed}, summary)
	assert.Len(t, flushes, 2)
	assert.Positive(t, summary.Flushed)
	assert.Zero(t, buffered.Pending())

	cursor := loadCursor(t, backend, chainID)
	assert.Equal(t, chainID, cursor.ChainID)
	assert.Equal(t, blockNumber, cursor.BlockNumber)
	assert.Equal(t, uint64(4), cursor.LogIndex)
	assert.NotEmpty(t, cursor.UpdatedAt)

	poolRaw, ok, err := backend.Get(f.ctx, model.KindPool, model.PoolID(chainID, usdcWeth))
	require.NoError(t, err)
	require.True(t, ok)
	var pool model.Pool
	require.NoError(t, json.Unmarshal(poolRaw, &pool))
	assert.Equal(t, int64(2), pool.TxCount)
	assert.Equal(t, "1000", pool.Liquidity.String())

	rerun, _ := newRunnerFor(t, backend, path)
	summary, err = rerun.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 5, Resumed: 4, Failed: 1}, summary)
}

const arbitrumID = uint64(42161)

func TestRunnerInterleavedChains(t *testing.T) {
	f := newFixture(t)
	mainnetPool := f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0: usdcAddr, Token1: wethAddr, Fee: 3000, TickSpacing: 60, Pool: usdcWeth,
	})
	arbitrumPool := onChain(f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0: usdcAddr, Token1: wethAddr, Fee: 500, TickSpacing: 10, Pool: fooWeth,
	}), arbitrumID, 100)
	mainnetMint := f.event(model.EventMint, usdcWeth, model.MintEventData{
		TickLower: -60, TickUpper: 120, Amount: "1000", Amount0: "1000000", Amount1: "1000000000000000000",
	})
	arbitrumMint := onChain(f.event(model.EventMint, fooWeth, model.MintEventData{
		TickLower: -10, TickUpper: 10, Amount: "500", Amount0: "1000", Amount1: "1000",
	}), arbitrumID, 101)

	path := writeEventsFile(t,
		eventLine(t, mainnetPool),
		eventLine(t, arbitrumPool),
		eventLine(t, mainnetMint),
		eventLine(t, arbitrumMint),
	)
	backend := storage.NewMemoryStore()

	runner, _ := newRunnerFor(t, backend, path)
	summary, err := runner.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 4, Applied: 4, Flushed: summary.Flushed}, summary)

	for _, id := range []string{model.PoolID(chainID, usdcWeth), model.PoolID(arbitrumID, fooWeth)} {
		raw, ok, err := backend.Get(f.ctx, model.KindPool, id)
		require.NoError(t, err)
		require.True(t, ok, "pool %s", id)
		var pool model.Pool
		require.NoError(t, json.Unmarshal(raw, &pool))
		assert.Equal(t, int64(1), pool.TxCount, "pool %s", id)
	}

	mainnet := loadCursor(t, backend, chainID)
	assert.Equal(t, blockNumber, mainnet.BlockNumber)
	assert.Equal(t, mainnetMint.LogIndex, mainnet.LogIndex)
	arbitrum := loadCursor(t, backend, arbitrumID)
	assert.Equal(t, arbitrumID, arbitrum.ChainID)
	assert.Equal(t, uint64(101), arbitrum.BlockNumber)
	assert.Equal(t, arbitrumMint.LogIndex, arbitrum.LogIndex)

	collect := onChain(f.event(model.EventCollect, fooWeth, model.CollectEventData{
		TickLower: -10, TickUpper: 10, Amount0: "1", Amount1: "0",
	}), arbitrumID, 102)
	rerunPath := writeEventsFile(t,
		eventLine(t, mainnetPool),
		eventLine(t, arbitrumPool),
		eventLine(t, mainnetMint),
		eventLine(t, arbitrumMint),
		eventLine(t, collect),
	)
	rerun, _ := newRunnerFor(t, backend, rerunPath)
	summary, err = rerun.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 5, Applied: 1, Resumed: 4, Flushed: summary.Flushed}, summary)
	assert.Equal(t, uint64(102), loadCursor(t, backend, arbitrumID).BlockNumber)
	assert.Equal(t, blockNumber, loadCursor(t, backend, chainID).BlockNumber)
}

func TestRunnerSeparateRunsPerChain(t *testing.T) {
	f := newFixture(t)
	backend := storage.NewMemoryStore()

	mainnetPath := writeEventsFile(t, eventLine(t, f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0: usdcAddr, Token1: wethAddr, Fee: 3000, TickSpacing: 60, Pool: usdcWeth,
	})))
	runner, _ := newRunnerFor(t, backend, mainnetPath)
	summary, err := runner.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Applied)

	// A lower block on another chain is not behind the mainnet cursor.
	arbitrumPath := writeEventsFile(t, eventLine(t, onChain(f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0: usdcAddr, Token1: wethAddr, Fee: 500, TickSpacing: 10, Pool: fooWeth,
	}), arbitrumID, 100)))
	runner, _ = newRunnerFor(t, backend, arbitrumPath)
	summary, err = runner.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 1, Applied: 1, Flushed: summary.Flushed}, summary)

	_, ok, err := backend.Get(f.ctx, model.KindPool, model.PoolID(arbitrumID, fooWeth))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunnerDoesNotSkipWithinRun(t *testing.T) {
	f := newFixture(t)
	pool := f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0: usdcAddr, Token1: wethAddr, Fee: 3000, TickSpacing: 60, Pool: usdcWeth,
	})
	mint := f.event(model.EventMint, usdcWeth, model.MintEventData{
		TickLower: -60, TickUpper: 120, Amount: "1000", Amount0: "1000000", Amount1: "1000000000000000000",
	})
	// Same position as the mint; a fresh run applies it rather than
	// treating it as already committed.
	collect := f.event(model.EventCollect, usdcWeth, model.CollectEventData{
		TickLower: -60, TickUpper: 120, Amount0: "1", Amount1: "0",
	})
	collect.LogIndex = mint.LogIndex

	path := writeEventsFile(t, eventLine(t, pool), eventLine(t, mint), eventLine(t, collect))
	runner, _ := newRunnerFor(t, storage.NewMemoryStore(), path)
	summary, err := runner.Run(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Total: 3, Applied: 3, Flushed: summary.Flushed}, summary)
}

func TestRunnerRequiresInput(t *testing.T) {
	runner, _ := newRunnerFor(t, storage.NewMemoryStore(), "")
	_, err := runner.Run(t.Context())
	require.Error(t, err)
}
