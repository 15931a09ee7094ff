package model

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Placeholder metadata used when nothing can be resolved.
const (
	UnknownName     = "unknown"
	UnknownSymbol   = "UNKNOWN"
	DefaultDecimals = uint8(18)
)
