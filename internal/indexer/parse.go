package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Target is one monitored contract.
type Target struct {
	Name    string
	Address common.Address
	Type    string
}

// NewTarget validates address and builds a Target. The type defaults to name.
func NewTarget(name, address, contractType string) (Target, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	if name == "" {
		return Target{}, fmt.Errorf("contract name is required")
	}
	if !common.IsHexAddress(address) {
		return Target{}, fmt.Errorf("invalid address: %s", address)
	}
	if contractType == "" {
		contractType = name
	}
	return Target{Name: name, Address: common.HexToAddress(address), Type: contractType}, nil
}

// Key is the lower-cased hex address used for checkpoints and partition keys.
func (t Target) Key() string {
	return strings.ToLower(t.Address.Hex())
}
