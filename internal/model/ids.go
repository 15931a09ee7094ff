package model

import (
	"fmt"
	"strings"
)

// Entity kinds as stored by the entity store.
const (
	KindBundle         = "Bundle"
	KindFactory        = "Factory"
	KindToken          = "Token"
	KindPool           = "Pool"
	KindTick           = "Tick"
	KindTransaction    = "Transaction"
	KindMint           = "Mint"
	KindBurn           = "Burn"
	KindSwap           = "Swap"
	KindCollect        = "Collect"
	KindUniswapDayData = "UniswapDayData"
	KindPoolDayData    = "PoolDayData"
	KindPoolHourData   = "PoolHourData"
	KindTokenDayData   = "TokenDayData"
	KindTokenHourData  = "TokenHourData"
	KindCursor         = "Cursor"
)

// Entity is anything the ledger persists.
type Entity interface {
	EntityKind() string
	EntityID() string
}

// ZeroAddress is the native-asset pseudo token.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

func BundleID(chainID uint64) string {
	return fmt.Sprintf("%d", chainID)
}

func FactoryID(chainID uint64, factory string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(factory))
}

func TokenID(chainID uint64, token string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(token))
}

func PoolID(chainID uint64, pool string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(pool))
}

func TickID(poolID string, tickIdx int32) string {
	return fmt.Sprintf("%s#%d", poolID, tickIdx)
}

// CursorID scopes a named cursor to one chain.
func CursorID(name string, chainID uint64) string {
	return fmt.Sprintf("%s-%d", name, chainID)
}

func TransactionID(txHash string) string {
	return strings.ToLower(txHash)
}

// EventID keys the write-once event records.
func EventID(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(txHash), logIndex)
}

func BucketID(entityID string, bucket int64) string {
	return fmt.Sprintf("%s-%d", entityID, bucket)
}

// AddressFromID strips the chain prefix from a token or pool id.
func AddressFromID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}
