package model

// Decode failure reasons.
const (
	ReasonMalformedLine = "malformed_line"
	ReasonMissingTopic0 = "missing_topic0"
	ReasonDecodeFailed  = "decode_failed"
)

// DecodeError is one rejected line of the raw log file. Raw is kept only
// when the line could not be parsed as a LogRecord.
type DecodeError struct {
	Line        int    `json:"line"`
	Reason      string `json:"reason"`
	ChainID     uint64 `json:"chain_id,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint64 `json:"log_index,omitempty"`
	Address     string `json:"address,omitempty"`
	Topic0      string `json:"topic0,omitempty"`
	Error       string `json:"error"`
	Raw         string `json:"raw,omitempty"`
}

// NewDecodeError describes why record, read from line, was rejected.
func NewDecodeError(line int, record LogRecord, reason string, err error) DecodeError {
	return DecodeError{
		Line:        line,
		Reason:      reason,
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
