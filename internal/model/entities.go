package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Bundle holds the chain's native-asset USD price.
type Bundle struct {
	ID          string          `json:"id"`
	EthPriceUSD decimal.Decimal `json:"eth_price_usd"`
}

func (b *Bundle) EntityKind() string { return KindBundle }
func (b *Bundle) EntityID() string   { return b.ID }

// Factory carries per-chain global counters.
type Factory struct {
	ID                           string          `json:"id"`
	PoolCount                    int64           `json:"pool_count"`
	TxCount                      int64           `json:"tx_count"`
	TotalVolumeETH               decimal.Decimal `json:"total_volume_eth"`
	TotalVolumeUSD               decimal.Decimal `json:"total_volume_usd"`
	UntrackedVolumeUSD           decimal.Decimal `json:"untracked_volume_usd"`
	TotalFeesETH                 decimal.Decimal `json:"total_fees_eth"`
	TotalFeesUSD                 decimal.Decimal `json:"total_fees_usd"`
	TotalValueLockedETH          decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD          decimal.Decimal `json:"total_value_locked_usd"`
	TotalValueLockedETHUntracked decimal.Decimal `json:"total_value_locked_eth_untracked"`
	TotalValueLockedUSDUntracked decimal.Decimal `json:"total_value_locked_usd_untracked"`
	Owner                        string          `json:"owner"`
}

func (f *Factory) EntityKind() string { return KindFactory }
func (f *Factory) EntityID() string   { return f.ID }

// Token is an ERC20 (or the native pseudo token) seen in at least one pool.
type Token struct {
	ID                           string          `json:"id"`
	Symbol                       string          `json:"symbol"`
	Name                         string          `json:"name"`
	Decimals                     uint8           `json:"decimals"`
	Volume                       decimal.Decimal `json:"volume"`
	VolumeUSD                    decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD           decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD                      decimal.Decimal `json:"fees_usd"`
	TxCount                      int64           `json:"tx_count"`
	PoolCount                    int64           `json:"pool_count"`
	TotalValueLocked             decimal.Decimal `json:"total_value_locked"`
	TotalValueLockedUSD          decimal.Decimal `json:"total_value_locked_usd"`
	TotalValueLockedUSDUntracked decimal.Decimal `json:"total_value_locked_usd_untracked"`
	DerivedETH                   decimal.Decimal `json:"derived_eth"`
	WhitelistPools               []string        `json:"whitelist_pools"`
}

func (t *Token) EntityKind() string { return KindToken }
func (t *Token) EntityID() string   { return t.ID }

// Address returns the lower-case token address.
func (t *Token) Address() string { return AddressFromID(t.ID) }

// AddWhitelistPool appends poolID unless it is already present.
func (t *Token) AddWhitelistPool(poolID string) bool {
	for _, id := range t.WhitelistPools {
		if id == poolID {
			return false
		}
	}
	t.WhitelistPools = append(t.WhitelistPools, poolID)
	return true
}

// Pool is a concentrated-liquidity pool.
type Pool struct {
	ID                           string          `json:"id"`
	CreatedAtTimestamp           uint64          `json:"created_at_timestamp"`
	CreatedAtBlockNumber         uint64          `json:"created_at_block_number"`
	Token0                       string          `json:"token0"`
	Token1                       string          `json:"token1"`
	FeeTier                      uint32          `json:"fee_tier"`
	TickSpacing                  int32           `json:"tick_spacing"`
	Liquidity                    *big.Int        `json:"liquidity"`
	SqrtPrice                    *big.Int        `json:"sqrt_price"`
	Token0Price                  decimal.Decimal `json:"token0_price"`
	Token1Price                  decimal.Decimal `json:"token1_price"`
	Tick                         *int32          `json:"tick"`
	ObservationIndex             int64           `json:"observation_index"`
	VolumeToken0                 decimal.Decimal `json:"volume_token0"`
	VolumeToken1                 decimal.Decimal `json:"volume_token1"`
	VolumeUSD                    decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD           decimal.Decimal `json:"untracked_volume_usd"`
	FeesUSD                      decimal.Decimal `json:"fees_usd"`
	TxCount                      int64           `json:"tx_count"`
	CollectedFeesToken0          decimal.Decimal `json:"collected_fees_token0"`
	CollectedFeesToken1          decimal.Decimal `json:"collected_fees_token1"`
	CollectedFeesUSD             decimal.Decimal `json:"collected_fees_usd"`
	TotalValueLockedToken0       decimal.Decimal `json:"total_value_locked_token0"`
	TotalValueLockedToken1       decimal.Decimal `json:"total_value_locked_token1"`
	TotalValueLockedETH          decimal.Decimal `json:"total_value_locked_eth"`
	TotalValueLockedUSD          decimal.Decimal `json:"total_value_locked_usd"`
	TotalValueLockedUSDUntracked decimal.Decimal `json:"total_value_locked_usd_untracked"`
	LiquidityProviderCount       int64           `json:"liquidity_provider_count"`
}

func (p *Pool) EntityKind() string { return KindPool }
func (p *Pool) EntityID() string   { return p.ID }

// Address returns the lower-case pool address.
func (p *Pool) Address() string { return AddressFromID(p.ID) }

// TickInRange reports whether the pool's current tick lies in [lower, upper).
func (p *Pool) TickInRange(lower, upper int32) bool {
	if p.Tick == nil {
		return false
	}
	return lower <= *p.Tick && upper > *p.Tick
}

// Tick tracks liquidity referenced at one tick index of a pool.
type Tick struct {
	ID                   string          `json:"id"`
	PoolAddress          string          `json:"pool_address"`
	Pool                 string          `json:"pool"`
	TickIdx              int32           `json:"tick_idx"`
	LiquidityGross       *big.Int        `json:"liquidity_gross"`
	LiquidityNet         *big.Int        `json:"liquidity_net"`
	Price0               decimal.Decimal `json:"price0"`
	Price1               decimal.Decimal `json:"price1"`
	CreatedAtTimestamp   uint64          `json:"created_at_timestamp"`
	CreatedAtBlockNumber uint64          `json:"created_at_block_number"`
}

func (t *Tick) EntityKind() string { return KindTick }
func (t *Tick) EntityID() string   { return t.ID }

// Transaction is the transaction that emitted one or more ledger events.
type Transaction struct {
	ID          string   `json:"id"`
	BlockNumber uint64   `json:"block_number"`
	Timestamp   uint64   `json:"timestamp"`
	GasUsed     *big.Int `json:"gas_used"`
	GasPrice    *big.Int `json:"gas_price"`
}

func (t *Transaction) EntityKind() string { return KindTransaction }
func (t *Transaction) EntityID() string   { return t.ID }

// Cursor marks the last event of one chain applied to the store.
type Cursor struct {
	ID          string `json:"id"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	UpdatedAt   string `json:"updated_at"`
}

func (c *Cursor) EntityKind() string { return KindCursor }
func (c *Cursor) EntityID() string   { return c.ID }

// After reports whether (block, logIndex) comes strictly after the cursor.
func (c *Cursor) After(block, logIndex uint64) bool {
	if block != c.BlockNumber {
		return block > c.BlockNumber
	}
	return logIndex > c.LogIndex
}
