package metadata

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"poolLedger/internal/dex"
	"poolLedger/internal/model"
)

type partialMeta struct {
	mu       sync.Mutex
	name     *string
	symbol   *string
	decimals *uint8
}

func (p *partialMeta) complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name != nil && p.symbol != nil && p.decimals != nil
}

func (p *partialMeta) finish(address string) (model.TokenMeta, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	meta := model.TokenMeta{
		Address:  address,
		Name:     model.UnknownName,
		Symbol:   model.UnknownSymbol,
		Decimals: model.DefaultDecimals,
	}
	complete := true
	if p.name != nil {
		meta.Name = *p.name
	} else {
		complete = false
	}
	if p.symbol != nil {
		meta.Symbol = *p.symbol
	} else {
		complete = false
	}
	if p.decimals != nil {
		meta.Decimals = *p.decimals
	} else {
		complete = false
	}
	return meta, complete
}

// fetch walks the chain's endpoints in order, asking each only for the
// fields still missing, and stops once all three are known.
func (r *Resolver) fetch(ctx context.Context, chainID uint64, address string) *partialMeta {
	out := &partialMeta{}
	callers := r.callers[chainID]
	if len(callers) == 0 || !common.IsHexAddress(address) {
		return out
	}

	stringABI, err := dex.ERC20ABI()
	if err != nil {
		r.logger.Error("erc20 abi", zap.Error(err))
		return out
	}
	bytesABI, err := dex.ERC20Bytes32ABI()
	if err != nil {
		r.logger.Error("erc20 bytes32 abi", zap.Error(err))
		return out
	}
	token := common.HexToAddress(address)

	for i, caller := range callers {
		if ctx.Err() != nil || out.complete() {
			break
		}

		group := r.pool.NewGroupContext(ctx)
		out.mu.Lock()
		needName, needSymbol, needDecimals := out.name == nil, out.symbol == nil, out.decimals == nil
		out.mu.Unlock()

		if needName {
			group.Submit(func() {
				if v, ok := readText(ctx, caller, token, stringABI, bytesABI, "name", "NAME"); ok {
					out.mu.Lock()
					out.name = &v
					out.mu.Unlock()
				}
			})
		}
		if needSymbol {
			group.Submit(func() {
				if v, ok := readText(ctx, caller, token, stringABI, bytesABI, "symbol", "SYMBOL"); ok {
					out.mu.Lock()
					out.symbol = &v
					out.mu.Unlock()
				}
			})
		}
		if needDecimals {
			group.Submit(func() {
				values, err := dex.CallMethod(ctx, caller, token, stringABI, "decimals", nil)
				if err != nil {
					return
				}
				if v, err := dex.AsUint8(values[0]); err == nil {
					out.mu.Lock()
					out.decimals = &v
					out.mu.Unlock()
				}
			})
		}

		if err := group.Wait(); err != nil {
			r.logger.Debug("metadata endpoint group", zap.Int("endpoint", i), zap.Error(err))
		}
	}
	return out
}

// readText tries the string getter, then the bytes32 variant of the same
// name, then the upper-case bytes32 getter.
func readText(ctx context.Context, caller dex.Caller, token common.Address, stringABI, bytesABI abi.ABI, method, upper string) (string, bool) {
	if values, err := dex.CallMethod(ctx, caller, token, stringABI, method, nil); err == nil {
		if s, ok := values[0].(string); ok {
			return Sanitize(s), true
		}
	}
	for _, m := range []string{method, upper} {
		values, err := dex.CallMethod(ctx, caller, token, bytesABI, m, nil)
		if err != nil {
			continue
		}
		if s, ok := dex.Bytes32ToString(values[0]); ok {
			return Sanitize(strings.ReplaceAll(s, "\x00", "")), true
		}
	}
	return "", false
}

// Sanitize strips C0 and C1 control characters and surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r <= 0x1f || (r >= 0x7f && r <= 0x9f) {
			return -1
		}
		return r
	}, s))
}
