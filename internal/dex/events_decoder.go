package dex

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolLedger/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for forks that rename events.
	Topic0Map map[string]string
}

// EventDecoder decodes V3 factory PoolCreated and pool
// Initialize/Mint/Burn/Swap/Collect logs.
type EventDecoder struct {
	poolABI     abi.ABI
	factoryABI  abi.ABI
	topicToName map[string]string
}

// NewEventDecoder builds a decoder for factory and pool events.
func NewEventDecoder(cfg DecoderConfig) (*EventDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(factoryABI.Events[model.EventPoolCreated].ID.Hex()): model.EventPoolCreated,
	}
	for _, name := range []string{model.EventInitialize, model.EventSwap, model.EventMint, model.EventBurn, model.EventCollect} {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}

	for topic0, name := range cfg.Topic0Map {
		requested := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", requested)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &EventDecoder{
		poolABI:     poolABI,
		factoryABI:  factoryABI,
		topicToName: topicToName,
	}, nil
}

// Topics returns every topic0 the decoder understands.
func (d *EventDecoder) Topics() []string {
	out := make([]string, 0, len(d.topicToName))
	for topic := range d.topicToName {
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// TopicFor returns the canonical topic0 of a supported event name.
func (d *EventDecoder) TopicFor(name string) (string, bool) {
	switch event := normalizeEventName(name); event {
	case "":
		return "", false
	case model.EventPoolCreated:
		return strings.ToLower(d.factoryABI.Events[event].ID.Hex()), true
	default:
		return strings.ToLower(d.poolABI.Events[event].ID.Hex()), true
	}
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *EventDecoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventPoolCreated:
		decoded, err = d.decodePoolCreated(log)
	case model.EventInitialize:
		decoded, err = d.decodeInitialize(log)
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventMint:
		decoded, err = d.decodeMint(log)
	case model.EventBurn:
		decoded, err = d.decodeBurn(log)
	case model.EventCollect:
		decoded, err = d.decodeCollect(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "poolcreated":
		return model.EventPoolCreated
	case "initialize":
		return model.EventInitialize
	case "swap":
		return model.EventSwap
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	case "collect":
		return model.EventCollect
	default:
		return ""
	}
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxFrom:      log.TxFrom,
		GasPrice:    log.GasPrice,
		LogIndex:    log.LogIndex,
		Address:     strings.ToLower(log.Address),
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         raw,
	}
}

func (d *EventDecoder) decodePoolCreated(log model.LogRecord) (model.PoolCreatedEventData, error) {
	event := d.factoryABI.Events[model.EventPoolCreated]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Fee    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.PoolCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.PoolCreatedEventData{}, fmt.Errorf("unexpected pool created values: %d", len(values))
	}

	spacingInt, err := AsBigInt(values[0])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	tickSpacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	pool, err := asAddress(values[1])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	return model.PoolCreatedEventData{
		Token0:      strings.ToLower(indexed.Token0.Hex()),
		Token1:      strings.ToLower(indexed.Token1.Hex()),
		Fee:         uint32(indexed.Fee.Uint64()),
		TickSpacing: tickSpacing,
		Pool:        strings.ToLower(pool.Hex()),
	}, nil
}

func (d *EventDecoder) decodeInitialize(log model.LogRecord) (model.InitializeEventData, error) {
	event := d.poolABI.Events[model.EventInitialize]
	if len(log.Topics) != 1 {
		return model.InitializeEventData{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.InitializeEventData{}, err
	}
	if len(values) != 2 {
		return model.InitializeEventData{}, fmt.Errorf("unexpected initialize values: %d", len(values))
	}

	sqrtPrice, err := AsBigInt(values[0])
	if err != nil {
		return model.InitializeEventData{}, err
	}
	tickInt, err := AsBigInt(values[1])
	if err != nil {
		return model.InitializeEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.InitializeEventData{}, err
	}

	return model.InitializeEventData{
		SqrtPriceX96: sqrtPrice.String(),
		Tick:         tick,
	}, nil
}

func (d *EventDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.poolABI.Events[model.EventSwap]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := AsBigInt(values[0])
	if err != nil {
		return model.SwapEventData{}, err
	}
	amount1, err := AsBigInt(values[1])
	if err != nil {
		return model.SwapEventData{}, err
	}
	sqrtPrice, err := AsBigInt(values[2])
	if err != nil {
		return model.SwapEventData{}, err
	}
	liquidity, err := AsBigInt(values[3])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tickInt, err := AsBigInt(values[4])
	if err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       strings.ToLower(indexed.Sender.Hex()),
		Recipient:    strings.ToLower(indexed.Recipient.Hex()),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
	}, nil
}

func (d *EventDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	event := d.poolABI.Events[model.EventMint]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.MintEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.MintEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.MintEventData{}, err
	}
	if len(values) != 4 {
		return model.MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount, err := AsBigInt(values[1])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount0, err := AsBigInt(values[2])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount1, err := AsBigInt(values[3])
	if err != nil {
		return model.MintEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.MintEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.MintEventData{}, err
	}

	return model.MintEventData{
		Sender:    strings.ToLower(sender.Hex()),
		Owner:     strings.ToLower(indexed.Owner.Hex()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *EventDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	event := d.poolABI.Events[model.EventBurn]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.BurnEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.BurnEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.BurnEventData{}, err
	}
	if len(values) != 3 {
		return model.BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	amount, err := AsBigInt(values[0])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount0, err := AsBigInt(values[1])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount1, err := AsBigInt(values[2])
	if err != nil {
		return model.BurnEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.BurnEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.BurnEventData{}, err
	}

	return model.BurnEventData{
		Owner:     strings.ToLower(indexed.Owner.Hex()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func (d *EventDecoder) decodeCollect(log model.LogRecord) (model.CollectEventData, error) {
	event := d.poolABI.Events[model.EventCollect]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.CollectEventData{}, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.CollectEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.CollectEventData{}, err
	}
	if len(values) != 3 {
		return model.CollectEventData{}, fmt.Errorf("unexpected collect values: %d", len(values))
	}

	recipient, err := asAddress(values[0])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount0, err := AsBigInt(values[1])
	if err != nil {
		return model.CollectEventData{}, err
	}
	amount1, err := AsBigInt(values[2])
	if err != nil {
		return model.CollectEventData{}, err
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return model.CollectEventData{}, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return model.CollectEventData{}, err
	}

	return model.CollectEventData{
		Owner:     strings.ToLower(indexed.Owner.Hex()),
		Recipient: strings.ToLower(recipient.Hex()),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount0:   amount0.String(),
		Amount1:   amount1.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
