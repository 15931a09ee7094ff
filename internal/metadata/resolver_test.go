package metadata

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolLedger/internal/chains"
	"poolLedger/internal/dex"
	"poolLedger/internal/model"
)

const (
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	mkr  = "0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2"
	dgd  = "0xe0b7927c4af23765cb51314a0e0521a9645f0e2a"
)

// fakeCaller answers calls by method selector.
type fakeCaller struct {
	responses map[[4]byte][]byte
	calls     atomic.Int64
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[[4]byte][]byte)}
}

func (f *fakeCaller) on(t *testing.T, parsed abi.ABI, method string, values ...interface{}) *fakeCaller {
	t.Helper()
	m, ok := parsed.Methods[method]
	require.True(t, ok, method)
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)
	var sel [4]byte
	copy(sel[:], m.ID)
	f.responses[sel] = out
	return f
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls.Add(1)
	var sel [4]byte
	copy(sel[:], msg.Data[:4])
	out, ok := f.responses[sel]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

type countingObserver struct {
	mu      sync.Mutex
	sources map[string]int
}

func (c *countingObserver) ObserveMetadata(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sources == nil {
		c.sources = make(map[string]int)
	}
	c.sources[source]++
}

func registry(t *testing.T) *chains.Registry {
	t.Helper()
	reg, err := chains.Defaults()
	require.NoError(t, err)
	return reg
}

func newResolver(t *testing.T, callers []dex.Caller, cache Cache, obs Observer) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{
		Chains:   registry(t),
		Callers:  map[uint64][]dex.Caller{1: callers},
		Cache:    cache,
		Workers:  4,
		Observer: obs,
	})
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func stringABI(t *testing.T) abi.ABI {
	parsed, err := dex.ERC20ABI()
	require.NoError(t, err)
	return parsed
}

func bytesABI(t *testing.T) abi.ABI {
	parsed, err := dex.ERC20Bytes32ABI()
	require.NoError(t, err)
	return parsed
}

func bytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

func TestResolveNativeAndOverride(t *testing.T) {
	obs := &countingObserver{}
	r := newResolver(t, nil, nil, obs)

	native, err := r.Resolve(context.Background(), 1, model.ZeroAddress)
	require.NoError(t, err)
	assert.Equal(t, "ETH", native.Symbol)
	assert.Equal(t, uint8(18), native.Decimals)

	override, err := r.Resolve(context.Background(), 1, "0xE0B7927C4AF23765CB51314A0E0521A9645F0E2A")
	require.NoError(t, err)
	assert.Equal(t, "DGD", override.Symbol)
	assert.Equal(t, uint8(9), override.Decimals)
	assert.Equal(t, dgd, override.Address)

	assert.Equal(t, 1, obs.sources[SourceNative])
	assert.Equal(t, 1, obs.sources[SourceOverride])
}

func TestResolveFetchesAndCaches(t *testing.T) {
	caller := newFakeCaller().
		on(t, stringABI(t), "name", "USD Coin").
		on(t, stringABI(t), "symbol", "USDC").
		on(t, stringABI(t), "decimals", uint8(6))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCacheFromClient(client, 0)

	obs := &countingObserver{}
	r := newResolver(t, []dex.Caller{caller}, cache, obs)

	meta, err := r.Resolve(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, model.TokenMeta{Address: usdc, Name: "USD Coin", Symbol: "USDC", Decimals: 6}, meta)
	assert.True(t, mr.Exists("tokenmeta:1:"+usdc))

	calls := caller.calls.Load()
	again, err := r.Resolve(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, meta, again)
	assert.Equal(t, calls, caller.calls.Load())
	assert.Equal(t, 1, obs.sources[SourceRPC])
	assert.Equal(t, 1, obs.sources[SourceMemory])

	// a fresh resolver finds the persisted entry without calling out
	fresh := newResolver(t, []dex.Caller{newFakeCaller()}, cache, obs)
	cached, err := fresh.Resolve(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, meta, cached)
	assert.Equal(t, 1, obs.sources[SourceCache])
}

func TestResolveBytes32Fallbacks(t *testing.T) {
	caller := newFakeCaller().
		on(t, bytesABI(t), "NAME", bytes32("Maker\x01")).
		on(t, bytesABI(t), "symbol", bytes32("MKR")).
		on(t, stringABI(t), "decimals", uint8(18))

	r := newResolver(t, []dex.Caller{caller}, nil, nil)

	meta, err := r.Resolve(context.Background(), 1, mkr)
	require.NoError(t, err)
	assert.Equal(t, "Maker", meta.Name)
	assert.Equal(t, "MKR", meta.Symbol)
	assert.Equal(t, uint8(18), meta.Decimals)
}

func TestResolveFallsBackAcrossEndpoints(t *testing.T) {
	first := newFakeCaller().on(t, stringABI(t), "symbol", "USDC")
	second := newFakeCaller().
		on(t, stringABI(t), "name", "USD Coin").
		on(t, stringABI(t), "symbol", "WRONG").
		on(t, stringABI(t), "decimals", uint8(6))

	r := newResolver(t, []dex.Caller{first, second}, nil, nil)

	meta, err := r.Resolve(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, "USDC", meta.Symbol)
	assert.Equal(t, "USD Coin", meta.Name)
	assert.Equal(t, uint8(6), meta.Decimals)
}

func TestResolvePlaceholders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	obs := &countingObserver{}
	r := newResolver(t, []dex.Caller{newFakeCaller()}, NewRedisCacheFromClient(client, 0), obs)

	meta, err := r.Resolve(context.Background(), 1, usdc)
	require.NoError(t, err)
	assert.Equal(t, model.UnknownName, meta.Name)
	assert.Equal(t, model.UnknownSymbol, meta.Symbol)
	assert.Equal(t, model.DefaultDecimals, meta.Decimals)
	assert.False(t, mr.Exists("tokenmeta:1:"+usdc))
	assert.Equal(t, 1, obs.sources[SourcePlaceholder])
}

func TestResolveCanceled(t *testing.T) {
	r := newResolver(t, []dex.Caller{newFakeCaller()}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, 1, usdc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "USDT", Sanitize("\x00 USDT\x7f\n"))
	assert.Equal(t, "Ünï", Sanitize("Ünï\u0085"))
	assert.Equal(t, "abc", Sanitize("a\x1fbc"))
}
