package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

const (
	chainID     = uint64(1)
	factoryAddr = "0x1f98431c8ad98523631ae4a59f267346ea31f984"
	usdcAddr    = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	wethAddr    = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	fooAddr     = "0x1111111111111111111111111111111111111111"
	usdcWeth    = "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8"
	fooWeth     = "0x2222222222222222222222222222222222222222"
	txHash      = "0x26b168e005a168b28d518675435c9f51816697c086deef7377e0018e4eb65dc9"
	txFrom      = "0xa79d3b28a109f0e3e4919c9715748db6d88f313f"
	timestamp   = uint64(1722420503)
	blockNumber = uint64(17209663)
)

type fakeResolver struct {
	metas map[string]model.TokenMeta
}

func (f *fakeResolver) Resolve(_ context.Context, _ uint64, address string) (model.TokenMeta, error) {
	meta, ok := f.metas[strings.ToLower(address)]
	if !ok {
		return model.TokenMeta{Address: address, Name: model.UnknownName, Symbol: model.UnknownSymbol, Decimals: model.DefaultDecimals}, nil
	}
	return meta, nil
}

type recorder struct {
	mu      sync.Mutex
	applied map[string]int
	skipped map[string]int
	failed  map[string]int
}

func newRecorder() *recorder {
	return &recorder{applied: map[string]int{}, skipped: map[string]int{}, failed: map[string]int{}}
}

func (r *recorder) EventApplied(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[event]++
}

func (r *recorder) EventSkipped(_ string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped[reason]++
}

func (r *recorder) EventFailed(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[event]++
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *storage.MemoryStore
	engine   *Engine
	recorder *recorder
	logIndex uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := chains.Defaults()
	require.NoError(t, err)
	return newFixtureWithChains(t, reg)
}

func newFixtureWithChains(t *testing.T, reg *chains.Registry) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	rec := newRecorder()
	engine, err := NewEngine(Config{
		Store:  store,
		Chains: reg,
		Resolver: &fakeResolver{metas: map[string]model.TokenMeta{
			usdcAddr: {Address: usdcAddr, Name: "USD Coin", Symbol: "USDC", Decimals: 6},
			wethAddr: {Address: wethAddr, Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18},
			fooAddr:  {Address: fooAddr, Name: "Foo", Symbol: "FOO", Decimals: 18},
		}},
		Workers:  4,
		Recorder: rec,
	})
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return &fixture{t: t, ctx: context.Background(), store: store, engine: engine, recorder: rec}
}

func (f *fixture) event(name, address string, payload interface{}) model.TypedEventRecord {
	f.t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(f.t, err)
	f.logIndex++
	return model.TypedEventRecord{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		TxHash:      txHash,
		TxFrom:      txFrom,
		GasPrice:    "10000000",
		LogIndex:    f.logIndex,
		Address:     address,
		EventName:   name,
		Timestamp:   timestamp,
		Decoded:     raw,
	}
}

func (f *fixture) apply(event model.TypedEventRecord) bool {
	f.t.Helper()
	applied, err := f.engine.Apply(f.ctx, event)
	require.NoError(f.t, err)
	return applied
}

func (f *fixture) createPool(token0, token1, pool string, fee uint32) {
	f.t.Helper()
	applied := f.apply(f.event(model.EventPoolCreated, factoryAddr, model.PoolCreatedEventData{
		Token0:      token0,
		Token1:      token1,
		Fee:         fee,
		TickSpacing: 60,
		Pool:        pool,
	}))
	require.True(f.t, applied)
}

// setPrices writes the bundle price and the tokens' derived prices.
func (f *fixture) setPrices(ethPriceUSD string, derived map[string]string) {
	f.t.Helper()
	bundle := f.bundle()
	bundle.EthPriceUSD = decimal.RequireFromString(ethPriceUSD)
	require.NoError(f.t, storage.Save(f.ctx, f.store, bundle))
	for addr, price := range derived {
		token := f.token(addr)
		token.DerivedETH = decimal.RequireFromString(price)
		require.NoError(f.t, storage.Save(f.ctx, f.store, token))
	}
}

func (f *fixture) setPoolTick(pool string, tick int32) {
	f.t.Helper()
	p := f.pool(pool)
	p.Tick = &tick
	require.NoError(f.t, storage.Save(f.ctx, f.store, p))
}

func (f *fixture) pool(addr string) *model.Pool {
	return mustLoad[model.Pool](f, model.KindPool, model.PoolID(chainID, addr))
}

func (f *fixture) token(addr string) *model.Token {
	return mustLoad[model.Token](f, model.KindToken, model.TokenID(chainID, addr))
}

func (f *fixture) bundle() *model.Bundle {
	return mustLoad[model.Bundle](f, model.KindBundle, model.BundleID(chainID))
}

func (f *fixture) factory() *model.Factory {
	return mustLoad[model.Factory](f, model.KindFactory, model.FactoryID(chainID, factoryAddr))
}

func mustLoad[T any](f *fixture, kind, id string) *T {
	f.t.Helper()
	out, ok, err := storage.Load[T](f.ctx, f.store, kind, id)
	require.NoError(f.t, err)
	require.True(f.t, ok, "%s %s not found", kind, id)
	return out
}

func exists(f *fixture, kind, id string) bool {
	f.t.Helper()
	_, ok, err := f.store.Get(f.ctx, kind, id)
	require.NoError(f.t, err)
	return ok
}

func bigInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, s)
	return v
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, d(want).Equal(got), fmt.Sprintf("want %s got %s %v", want, got, msgAndArgs))
}
