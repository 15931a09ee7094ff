package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolState is the live on-chain state of a pool at one block.
type PoolState struct {
	Liquidity    *big.Int
	SqrtPriceX96 *big.Int
	Tick         int32
}

// FetchPoolState reads liquidity() and slot0() at blockNumber (latest when zero).
func FetchPoolState(ctx context.Context, caller Caller, pool common.Address, blockNumber uint64) (PoolState, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}

	values, err := CallMethod(ctx, caller, pool, poolABI, "liquidity", blockPtr)
	if err != nil {
		return PoolState{}, err
	}
	liquidity, err := AsBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	values, err = CallMethod(ctx, caller, pool, poolABI, "slot0", blockPtr)
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 2 {
		return PoolState{}, fmt.Errorf("slot0: unexpected values %d", len(values))
	}
	sqrt, err := AsBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickInt, err := AsBigInt(values[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return PoolState{}, err
	}

	return PoolState{Liquidity: liquidity, SqrtPriceX96: sqrt, Tick: tick}, nil
}

// BalanceOf reads an ERC20 balance at blockNumber (latest when zero).
func BalanceOf(ctx context.Context, caller Caller, token, account common.Address, blockNumber uint64) (*big.Int, error) {
	erc20, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}
	values, err := CallMethod(ctx, caller, token, erc20, "balanceOf", blockPtr, account)
	if err != nil {
		return nil, err
	}
	return AsBigInt(values[0])
}
