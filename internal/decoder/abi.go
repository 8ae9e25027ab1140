package decoder

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Events whose payload carries dynamic types. Only the non-indexed inputs are
// used; topic0 for these comes from the registry.
const payloadABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "commenter", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "commentId", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "comment", "type": "string"},
      {"indexed": false, "internalType": "uint8", "name": "contentType", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "ContentCommented",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "follower", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "followed", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "followerUsername", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "followedUsername", "type": "string"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "Followed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "username", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "profileHash", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "bio", "type": "string"},
      {"indexed": false, "internalType": "string", "name": "website", "type": "string"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "ProfileUpdatedExtended",
    "type": "event"
  }
]`

var (
	payloadABI     abi.ABI
	payloadABIOnce sync.Once
	payloadABIErr  error
)

// PayloadABI returns the parsed ABI of events with dynamic payloads.
func PayloadABI() (abi.ABI, error) {
	payloadABIOnce.Do(func() {
		payloadABI, payloadABIErr = abi.JSON(strings.NewReader(payloadABIJSON))
	})
	return payloadABI, payloadABIErr
}

func unpackPayload(eventName string, data []byte) ([]interface{}, error) {
	parsed, err := PayloadABI()
	if err != nil {
		return nil, fmt.Errorf("parse payload abi: %w", err)
	}
	event, ok := parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("no payload abi for %s", eventName)
	}
	args := event.Inputs.NonIndexed()
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", eventName, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("unexpected %s values: %d", eventName, len(values))
	}
	return values, nil
}

func asString(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected string type %T", value)
	}
	return s, nil
}

// asDecimal renders any unpacked unsigned integer as a decimal string.
func asDecimal(value interface{}) (string, error) {
	switch v := value.(type) {
	case *big.Int:
		return v.String(), nil
	case uint8:
		return fmt.Sprintf("%d", v), nil
	case uint16:
		return fmt.Sprintf("%d", v), nil
	case uint32:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	default:
		return "", fmt.Errorf("unexpected integer type %T", value)
	}
}

func decodeStrings(values []interface{}, out ...*string) error {
	for i, target := range out {
		s, err := asString(values[i])
		if err != nil {
			return err
		}
		*target = s
	}
	return nil
}
