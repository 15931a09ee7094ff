package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Mint is the write-once record of a liquidity mint.
type Mint struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pool        string          `json:"pool"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Owner       string          `json:"owner"`
	Sender      string          `json:"sender"`
	Origin      string          `json:"origin"`
	Amount      *big.Int        `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
}

func (m *Mint) EntityKind() string { return KindMint }
func (m *Mint) EntityID() string   { return m.ID }

// Burn is the write-once record of a liquidity burn.
type Burn struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pool        string          `json:"pool"`
	Token0      string          `json:"token0"`
	Token1      string          `json:"token1"`
	Owner       string          `json:"owner"`
	Origin      string          `json:"origin"`
	Amount      *big.Int        `json:"amount"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
}

func (b *Burn) EntityKind() string { return KindBurn }
func (b *Burn) EntityID() string   { return b.ID }

// Swap is the write-once record of a swap.
type Swap struct {
	ID           string          `json:"id"`
	Transaction  string          `json:"transaction"`
	Timestamp    uint64          `json:"timestamp"`
	Pool         string          `json:"pool"`
	Token0       string          `json:"token0"`
	Token1       string          `json:"token1"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Origin       string          `json:"origin"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	SqrtPriceX96 *big.Int        `json:"sqrt_price_x96"`
	Tick         int32           `json:"tick"`
	LogIndex     uint64          `json:"log_index"`
}

func (s *Swap) EntityKind() string { return KindSwap }
func (s *Swap) EntityID() string   { return s.ID }

// Collect is the write-once record of a fee collection.
type Collect struct {
	ID          string          `json:"id"`
	Transaction string          `json:"transaction"`
	Timestamp   uint64          `json:"timestamp"`
	Pool        string          `json:"pool"`
	Owner       string          `json:"owner"`
	Amount0     decimal.Decimal `json:"amount0"`
	Amount1     decimal.Decimal `json:"amount1"`
	AmountUSD   decimal.Decimal `json:"amount_usd"`
	TickLower   int32           `json:"tick_lower"`
	TickUpper   int32           `json:"tick_upper"`
	LogIndex    uint64          `json:"log_index"`
}

func (c *Collect) EntityKind() string { return KindCollect }
func (c *Collect) EntityID() string   { return c.ID }
