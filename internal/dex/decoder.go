package dex

import "poolLedger/internal/model"

// Decoder turns raw logs into typed events. EventDecoder implements it.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord) (*model.TypedEvent, error)
}

var _ Decoder = (*EventDecoder)(nil)
