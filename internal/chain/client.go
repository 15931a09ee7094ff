package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// TxInfo is the sender and gas price of a transaction.
type TxInfo struct {
	From     string
	GasPrice *big.Int
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	url       string
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.RWMutex
	tsCache map[uint64]uint64
	txCache map[common.Hash]TxInfo
	chainID *big.Int
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		url:       rpcURL,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
		txCache:   make(map[common.Hash]TxInfo),
	}, nil
}

// Dial connects to the first endpoint in urls that answers eth_chainId.
func Dial(ctx context.Context, urls []string) (*Client, error) {
	var errs []error
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		client, err := NewClient(ctx, url)
		if err == nil {
			if _, err = client.GetChainID(ctx); err == nil {
				return client, nil
			}
			client.Close()
		}
		errs = append(errs, fmt.Errorf("%s: %w", url, err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no rpc url configured")
	}
	return nil, errors.Join(errs...)
}

// DialAll connects to every endpoint in urls, keeping the order. Endpoints
// that cannot be dialed are reported through onError and skipped.
func DialAll(ctx context.Context, urls []string, onError func(url string, err error)) []*Client {
	out := make([]*Client, 0, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		client, err := NewClient(ctx, url)
		if err != nil {
			if onError != nil {
				onError(url, err)
			}
			continue
		}
		out = append(out, client)
	}
	return out
}

// URL returns the endpoint the client was dialed with.
func (c *Client) URL() string {
	return c.url
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	id := c.chainID
	c.mu.RUnlock()
	if id != nil {
		return new(big.Int).Set(id), nil
	}

	id, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.chainID = id
	c.mu.Unlock()
	return new(big.Int).Set(id), nil
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// Transaction returns the sender and gas price of a transaction, using an
// in-memory cache. The sender is recovered from the signature.
func (c *Client) Transaction(ctx context.Context, hash common.Hash) (TxInfo, error) {
	c.mu.RLock()
	info, ok := c.txCache[hash]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	tx, _, err := c.ethClient.TransactionByHash(ctx, hash)
	if err != nil {
		return TxInfo{}, err
	}
	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return TxInfo{}, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return TxInfo{}, fmt.Errorf("recover sender %s: %w", hash.Hex(), err)
	}

	info = TxInfo{From: strings.ToLower(from.Hex()), GasPrice: tx.GasPrice()}
	c.mu.Lock()
	c.txCache[hash] = info
	c.mu.Unlock()
	return info, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
