package model

import "encoding/json"

// TypedEventRecord is the JSON form of TypedEvent read back by the ledger.
// Decoded stays raw until the event name selects its payload type.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	TxFrom      string          `json:"tx_from,omitempty"`
	GasPrice    string          `json:"gas_price,omitempty"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}
