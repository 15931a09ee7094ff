package rollup

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

const (
	DaySeconds  int64 = 86400
	HourSeconds int64 = 3600
)

// Bucket returns floor(ts / period) and the bucket's start time.
func Bucket(ts uint64, period int64) (index int64, start int64) {
	index = int64(ts) / period
	return index, index * period
}

// Updater maintains day and hour snapshots. Each method reads or seeds the
// bucket, refreshes price and point-in-time fields, increments txCount and
// writes the snapshot. Volume and fee fields are left to the caller.
type Updater struct {
	store storage.Store
}

func NewUpdater(store storage.Store) *Updater {
	return &Updater{store: store}
}

// UniswapDay updates the chain-wide daily snapshot from the factory.
func (u *Updater) UniswapDay(ctx context.Context, ts uint64, chainID uint64, factory *model.Factory) (*model.UniswapDayData, error) {
	day, start := Bucket(ts, DaySeconds)
	id := model.BucketID(model.BundleID(chainID), day)

	data, _, err := storage.LoadOrCreate(ctx, u.store, model.KindUniswapDayData, id, func() *model.UniswapDayData {
		return &model.UniswapDayData{ID: id, Date: start}
	})
	if err != nil {
		return nil, err
	}
	data.TvlUSD = factory.TotalValueLockedUSD
	data.TxCount = factory.TxCount

	if err := storage.Save(ctx, u.store, data); err != nil {
		return nil, err
	}
	return data, nil
}

// PoolDay updates the pool's daily snapshot.
func (u *Updater) PoolDay(ctx context.Context, ts uint64, pool *model.Pool) (*model.PoolDayData, error) {
	day, start := Bucket(ts, DaySeconds)
	id := model.BucketID(pool.ID, day)

	data, _, err := storage.LoadOrCreate(ctx, u.store, model.KindPoolDayData, id, func() *model.PoolDayData {
		snap := seedPoolSnapshot(id, pool)
		snap.Liquidity = copyInt(pool.Liquidity)
		snap.SqrtPrice = copyInt(pool.SqrtPrice)
		snap.Token0Price = pool.Token0Price
		snap.Token1Price = pool.Token1Price
		snap.Tick = copyTick(pool.Tick)
		snap.TvlUSD = pool.TotalValueLockedUSD
		return &model.PoolDayData{PoolSnapshot: snap, Date: start}
	})
	if err != nil {
		return nil, err
	}
	refreshPoolSnapshot(&data.PoolSnapshot, pool)

	if err := storage.Save(ctx, u.store, data); err != nil {
		return nil, err
	}
	return data, nil
}

// PoolHour updates the pool's hourly snapshot.
func (u *Updater) PoolHour(ctx context.Context, ts uint64, pool *model.Pool) (*model.PoolHourData, error) {
	hour, start := Bucket(ts, HourSeconds)
	id := model.BucketID(pool.ID, hour)

	data, _, err := storage.LoadOrCreate(ctx, u.store, model.KindPoolHourData, id, func() *model.PoolHourData {
		snap := seedPoolSnapshot(id, pool)
		snap.Liquidity = new(big.Int)
		snap.SqrtPrice = new(big.Int)
		return &model.PoolHourData{PoolSnapshot: snap, PeriodStartUnix: start}
	})
	if err != nil {
		return nil, err
	}
	refreshPoolSnapshot(&data.PoolSnapshot, pool)

	if err := storage.Save(ctx, u.store, data); err != nil {
		return nil, err
	}
	return data, nil
}

// TokenDay updates the token's daily snapshot.
func (u *Updater) TokenDay(ctx context.Context, ts uint64, token *model.Token, ethPriceUSD decimal.Decimal) (*model.TokenDayData, error) {
	day, start := Bucket(ts, DaySeconds)
	id := model.BucketID(token.ID, day)
	price := token.DerivedETH.Mul(ethPriceUSD)

	data, _, err := storage.LoadOrCreate(ctx, u.store, model.KindTokenDayData, id, func() *model.TokenDayData {
		return &model.TokenDayData{TokenSnapshot: seedTokenSnapshot(id, token.ID, price), Date: start}
	})
	if err != nil {
		return nil, err
	}
	refreshTokenSnapshot(&data.TokenSnapshot, token, price)

	if err := storage.Save(ctx, u.store, data); err != nil {
		return nil, err
	}
	return data, nil
}

// TokenHour updates the token's hourly snapshot.
func (u *Updater) TokenHour(ctx context.Context, ts uint64, token *model.Token, ethPriceUSD decimal.Decimal) (*model.TokenHourData, error) {
	hour, start := Bucket(ts, HourSeconds)
	id := model.BucketID(token.ID, hour)
	price := token.DerivedETH.Mul(ethPriceUSD)

	data, _, err := storage.LoadOrCreate(ctx, u.store, model.KindTokenHourData, id, func() *model.TokenHourData {
		return &model.TokenHourData{TokenSnapshot: seedTokenSnapshot(id, token.ID, price), PeriodStartUnix: start}
	})
	if err != nil {
		return nil, err
	}
	refreshTokenSnapshot(&data.TokenSnapshot, token, price)

	if err := storage.Save(ctx, u.store, data); err != nil {
		return nil, err
	}
	return data, nil
}

func seedPoolSnapshot(id string, pool *model.Pool) model.PoolSnapshot {
	return model.PoolSnapshot{
		ID:    id,
		Pool:  pool.ID,
		Open:  pool.Token0Price,
		High:  pool.Token0Price,
		Low:   pool.Token0Price,
		Close: pool.Token0Price,
	}
}

func refreshPoolSnapshot(snap *model.PoolSnapshot, pool *model.Pool) {
	price := pool.Token0Price
	if price.GreaterThan(snap.High) {
		snap.High = price
	}
	if price.LessThan(snap.Low) {
		snap.Low = price
	}
	snap.Close = price
	snap.Liquidity = copyInt(pool.Liquidity)
	snap.SqrtPrice = copyInt(pool.SqrtPrice)
	snap.Token0Price = pool.Token0Price
	snap.Token1Price = pool.Token1Price
	snap.Tick = copyTick(pool.Tick)
	snap.TvlUSD = pool.TotalValueLockedUSD
	snap.TxCount++
}

func seedTokenSnapshot(id, tokenID string, price decimal.Decimal) model.TokenSnapshot {
	return model.TokenSnapshot{
		ID:    id,
		Token: tokenID,
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	}
}

func refreshTokenSnapshot(snap *model.TokenSnapshot, token *model.Token, price decimal.Decimal) {
	if price.GreaterThan(snap.High) {
		snap.High = price
	}
	if price.LessThan(snap.Low) {
		snap.Low = price
	}
	snap.Close = price
	snap.PriceUSD = price
	snap.TotalValueLocked = token.TotalValueLocked
	snap.TotalValueLockedUSD = token.TotalValueLockedUSD
	snap.TxCount++
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func copyTick(t *int32) *int32 {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
