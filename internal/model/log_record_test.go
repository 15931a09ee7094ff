package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	want := LogRecord{
		ChainID:     1,
		BlockNumber: 12376729,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     7,
		LogIndex:    12,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xaaa", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1620158974,
		TxFrom:      "0x3333333333333333333333333333333333333333",
		GasPrice:    "120000000000",
		IngestedAt:  "2021-05-04T20:09:34Z",
	}

	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal map failed: %v", err)
	}
	for _, key := range []string{"chain_id", "block_number", "tx_hash", "log_index", "topics", "tx_from", "gas_price"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %q in %s", key, b)
		}
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(want, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", want, decoded)
	}
}

func TestLogRecordTopic0AndDecodeError(t *testing.T) {
	record := LogRecord{ChainID: 1, BlockNumber: 10, TxHash: "0xdef", LogIndex: 4, Topics: []string{"0xaaa", "0xbbb"}}
	if record.Topic0() != "0xaaa" {
		t.Fatalf("unexpected topic0 %q", record.Topic0())
	}
	if (LogRecord{}).Topic0() != "" {
		t.Fatalf("expected empty topic0")
	}

	rejected := NewDecodeError(9, record, ReasonDecodeFailed, errTest("short data"))
	if rejected.Line != 9 || rejected.Topic0 != "0xaaa" || rejected.LogIndex != 4 || rejected.Error != "short data" {
		t.Fatalf("unexpected decode error %+v", rejected)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
