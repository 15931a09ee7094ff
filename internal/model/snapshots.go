package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// UniswapDayData is the per-chain daily snapshot.
type UniswapDayData struct {
	ID                 string          `json:"id"`
	Date               int64           `json:"date"`
	VolumeETH          decimal.Decimal `json:"volume_eth"`
	VolumeUSD          decimal.Decimal `json:"volume_usd"`
	VolumeUSDUntracked decimal.Decimal `json:"volume_usd_untracked"`
	FeesUSD            decimal.Decimal `json:"fees_usd"`
	TxCount            int64           `json:"tx_count"`
	TvlUSD             decimal.Decimal `json:"tvl_usd"`
}

func (d *UniswapDayData) EntityKind() string { return KindUniswapDayData }
func (d *UniswapDayData) EntityID() string   { return d.ID }

// PoolSnapshot is shared by the day and hour pool buckets.
type PoolSnapshot struct {
	ID           string          `json:"id"`
	Pool         string          `json:"pool"`
	Liquidity    *big.Int        `json:"liquidity"`
	SqrtPrice    *big.Int        `json:"sqrt_price"`
	Token0Price  decimal.Decimal `json:"token0_price"`
	Token1Price  decimal.Decimal `json:"token1_price"`
	Tick         *int32          `json:"tick"`
	TvlUSD       decimal.Decimal `json:"tvl_usd"`
	VolumeToken0 decimal.Decimal `json:"volume_token0"`
	VolumeToken1 decimal.Decimal `json:"volume_token1"`
	VolumeUSD    decimal.Decimal `json:"volume_usd"`
	FeesUSD      decimal.Decimal `json:"fees_usd"`
	TxCount      int64           `json:"tx_count"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
}

// PoolDayData is the daily pool bucket.
type PoolDayData struct {
	PoolSnapshot
	Date int64 `json:"date"`
}

func (d *PoolDayData) EntityKind() string { return KindPoolDayData }
func (d *PoolDayData) EntityID() string   { return d.ID }

// PoolHourData is the hourly pool bucket.
type PoolHourData struct {
	PoolSnapshot
	PeriodStartUnix int64 `json:"period_start_unix"`
}

func (d *PoolHourData) EntityKind() string { return KindPoolHourData }
func (d *PoolHourData) EntityID() string   { return d.ID }

// TokenSnapshot is shared by the day and hour token buckets.
type TokenSnapshot struct {
	ID                  string          `json:"id"`
	Token               string          `json:"token"`
	Volume              decimal.Decimal `json:"volume"`
	VolumeUSD           decimal.Decimal `json:"volume_usd"`
	UntrackedVolumeUSD  decimal.Decimal `json:"untracked_volume_usd"`
	TotalValueLocked    decimal.Decimal `json:"total_value_locked"`
	TotalValueLockedUSD decimal.Decimal `json:"total_value_locked_usd"`
	PriceUSD            decimal.Decimal `json:"price_usd"`
	FeesUSD             decimal.Decimal `json:"fees_usd"`
	TxCount             int64           `json:"tx_count"`
	Open                decimal.Decimal `json:"open"`
	High                decimal.Decimal `json:"high"`
	Low                 decimal.Decimal `json:"low"`
	Close               decimal.Decimal `json:"close"`
}

// TokenDayData is the daily token bucket.
type TokenDayData struct {
	TokenSnapshot
	Date int64 `json:"date"`
}

func (d *TokenDayData) EntityKind() string { return KindTokenDayData }
func (d *TokenDayData) EntityID() string   { return d.ID }

// TokenHourData is the hourly token bucket.
type TokenHourData struct {
	TokenSnapshot
	PeriodStartUnix int64 `json:"period_start_unix"`
}

func (d *TokenHourData) EntityKind() string { return KindTokenHourData }
func (d *TokenHourData) EntityID() string   { return d.ID }
