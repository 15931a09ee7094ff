package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TopicResolver maps an event name such as "Swap" to its topic0.
type TopicResolver interface {
	TopicFor(name string) (string, bool)
}

// ParseAddresses converts contract addresses, dropping blanks and repeats.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	seen := make(map[common.Address]struct{}, len(inputs))
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseTopic0 converts topic0 filters. Each input is either a 32-byte hex
// hash or, when names is non-nil, an event name it can resolve.
func ParseTopic0(inputs []string, names TopicResolver) ([]common.Hash, error) {
	seen := make(map[common.Hash]struct{}, len(inputs))
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "0x") && !strings.HasPrefix(input, "0X") && names != nil {
			resolved, ok := names.TopicFor(input)
			if !ok {
				return nil, fmt.Errorf("unknown event name: %s", input)
			}
			input = resolved
		}

		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != common.HashLength {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topic := common.BytesToHash(data)
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics, nil
}
