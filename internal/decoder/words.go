package decoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const wordSize = 32

// DecodeUint256 reads the big-endian word starting at offset.
func DecodeUint256(data []byte, offset int) (*big.Int, error) {
	if offset < 0 || len(data) < offset+wordSize {
		return nil, fmt.Errorf("uint256 at %d: payload has %d bytes", offset, len(data))
	}
	return new(big.Int).SetBytes(data[offset : offset+wordSize]), nil
}

// DecodeAddress reads the right-aligned address in the word starting at offset.
func DecodeAddress(data []byte, offset int) (common.Address, error) {
	if offset < 0 || len(data) < offset+wordSize {
		return common.Address{}, fmt.Errorf("address at %d: payload has %d bytes", offset, len(data))
	}
	return common.BytesToAddress(data[offset+wordSize-common.AddressLength : offset+wordSize]), nil
}

// word returns the decimal value of word i, or "" when the payload is too short.
func word(data []byte, i int) string {
	v, err := DecodeUint256(data, i*wordSize)
	if err != nil {
		return ""
	}
	return v.String()
}

func wordAddress(data []byte, i int) string {
	addr, err := DecodeAddress(data, i*wordSize)
	if err != nil {
		return ""
	}
	return hexutil.Encode(addr.Bytes())
}

func rawHex(data []byte) string {
	return hexutil.Encode(data)
}
