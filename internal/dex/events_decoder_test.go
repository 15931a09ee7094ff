package dex

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolLedger/internal/model"
)

func TestEventDecoderSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewEventDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})
	logRecord.TxFrom = "0x4444444444444444444444444444444444444444"
	logRecord.GasPrice = "30000000000"

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	swap, ok := event.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}

	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != strings.ToLower(sender.Hex()) || swap.Recipient != strings.ToLower(recipient.Hex()) {
		t.Fatalf("address mismatch")
	}
	if event.TxFrom != logRecord.TxFrom || event.GasPrice != "30000000000" {
		t.Fatalf("tx enrichment not carried: %+v", event)
	}
	if event.Address != strings.ToLower(pool.Hex()) {
		t.Fatalf("address not normalized: %s", event.Address)
	}
}

func TestEventDecoderMintBurnCollect(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewEventDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recipient := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	mintLog := buildLogRecord(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	})

	mintEvent, err := decoder.Decode(mintLog)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}

	mint, ok := mintEvent.Decoded.(model.MintEventData)
	if !ok {
		t.Fatalf("mint type mismatch")
	}
	if mint.TickLower != -120 || mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %+v", mint)
	}
	if mint.Sender != strings.ToLower(sender.Hex()) || mint.Amount != "5000" {
		t.Fatalf("mint payload mismatch: %+v", mint)
	}

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}

	burnLog := buildLogRecord(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	})

	burnEvent, err := decoder.Decode(burnLog)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}

	burn, ok := burnEvent.Decoded.(model.BurnEventData)
	if !ok {
		t.Fatalf("burn type mismatch")
	}
	if burn.Amount != "7000" {
		t.Fatalf("burn amount mismatch: %+v", burn)
	}

	collectData, err := poolABI.Events["Collect"].Inputs.NonIndexed().Pack(
		recipient,
		big.NewInt(900),
		big.NewInt(1000),
	)
	if err != nil {
		t.Fatalf("pack collect: %v", err)
	}

	collectLog := buildLogRecord(pool, poolABI.Events["Collect"].ID, collectData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-10),
		topicFromInt24(10),
	})

	collectEvent, err := decoder.Decode(collectLog)
	if err != nil {
		t.Fatalf("decode collect: %v", err)
	}

	collect, ok := collectEvent.Decoded.(model.CollectEventData)
	if !ok {
		t.Fatalf("collect type mismatch")
	}
	if collect.Amount0 != "900" || collect.Amount1 != "1000" {
		t.Fatalf("collect amount mismatch: %+v", collect)
	}
	if collect.Recipient != strings.ToLower(recipient.Hex()) {
		t.Fatalf("collect recipient mismatch")
	}
}

func TestEventDecoderPoolCreatedAndInitialize(t *testing.T) {
	factoryABI, err := V3FactoryABI()
	if err != nil {
		t.Fatalf("factory abi parse: %v", err)
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewEventDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	factory := common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984")
	usdc := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	pool := common.HexToAddress("0x8ad599c3A0ff1De082011EFDDc58f1908eb6e6D8")

	createdData, err := factoryABI.Events["PoolCreated"].Inputs.NonIndexed().Pack(big.NewInt(60), pool)
	if err != nil {
		t.Fatalf("pack pool created: %v", err)
	}
	createdLog := buildLogRecord(factory, factoryABI.Events["PoolCreated"].ID, createdData, []common.Hash{
		topicFromAddress(usdc),
		topicFromAddress(weth),
		common.BigToHash(big.NewInt(3000)),
	})

	createdEvent, err := decoder.Decode(createdLog)
	if err != nil {
		t.Fatalf("decode pool created: %v", err)
	}
	created, ok := createdEvent.Decoded.(model.PoolCreatedEventData)
	if !ok {
		t.Fatalf("pool created type mismatch")
	}
	if created.Fee != 3000 || created.TickSpacing != 60 {
		t.Fatalf("pool created fee/spacing mismatch: %+v", created)
	}
	if created.Pool != "0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8" {
		t.Fatalf("pool address mismatch: %s", created.Pool)
	}
	if created.Token0 != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" || created.Token1 != "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2" {
		t.Fatalf("token mismatch: %+v", created)
	}

	sqrt, _ := new(big.Int).SetString("1350174849792634181862360983626536", 10)
	initData, err := poolABI.Events["Initialize"].Inputs.NonIndexed().Pack(sqrt, big.NewInt(194939))
	if err != nil {
		t.Fatalf("pack initialize: %v", err)
	}
	initLog := buildLogRecord(pool, poolABI.Events["Initialize"].ID, initData, nil)

	initEvent, err := decoder.Decode(initLog)
	if err != nil {
		t.Fatalf("decode initialize: %v", err)
	}
	init, ok := initEvent.Decoded.(model.InitializeEventData)
	if !ok {
		t.Fatalf("initialize type mismatch")
	}
	if init.SqrtPriceX96 != sqrt.String() || init.Tick != 194939 {
		t.Fatalf("initialize payload mismatch: %+v", init)
	}
}

func TestEventDecoderTopicAliases(t *testing.T) {
	alias := "0x00000000000000000000000000000000000000000000000000000000deadbeef"
	decoder, err := NewEventDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "swap"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode("0x" + strings.ToUpper(alias[2:])) {
		t.Fatalf("alias not registered")
	}
	if len(decoder.Topics()) != 7 {
		t.Fatalf("expected 7 topics, got %d", len(decoder.Topics()))
	}

	if _, err := NewEventDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "flash"}}); err == nil {
		t.Fatalf("expected unsupported event name error")
	}
}

func TestEventDecoderTopicFor(t *testing.T) {
	decoder, err := NewEventDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	cases := map[string]string{
		"Swap":         "0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67",
		" poolcreated": "0x783cca1c0412dd0d695e784568c96da2e9c22ff989357a2e8b1d9b2b4e6b7118",
	}
	for name, want := range cases {
		got, ok := decoder.TopicFor(name)
		if !ok || got != want {
			t.Fatalf("TopicFor(%q) = %s, %v", name, got, ok)
		}
		if !decoder.CanDecode(got) {
			t.Fatalf("topic for %q not decodable", name)
		}
	}
	if _, ok := decoder.TopicFor("Flash"); ok {
		t.Fatalf("expected Flash to be unsupported")
	}
}

func buildLogRecord(contract common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12376729,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     contract.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1620158974,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
