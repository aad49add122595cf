package secrets

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var referenceArgs = func() abi.Arguments {
	uint8Type, _ := abi.NewType("uint8", "", nil)
	uint64Type, _ := abi.NewType("uint64", "", nil)
	return abi.Arguments{{Type: uint8Type}, {Type: uint64Type}}
}()

// DONHostedReference is the 0x-hex ABI encoding of (uint8 slotId, uint64 version)
// passed as the encrypted secrets reference of a request.
func DONHostedReference(slotID uint8, version uint64) (string, error) {
	packed, err := referenceArgs.Pack(slotID, version)
	if err != nil {
		return "", fmt.Errorf("encode secrets reference: %w", err)
	}
	return hexutil.Encode(packed), nil
}

// ParseDONHostedReference decodes a reference produced by DONHostedReference.
func ParseDONHostedReference(ref string) (uint8, uint64, error) {
	raw, err := hexutil.Decode(ref)
	if err != nil {
		return 0, 0, fmt.Errorf("decode secrets reference: %w", err)
	}
	values, err := referenceArgs.Unpack(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("decode secrets reference: %w", err)
	}
	return values[0].(uint8), values[1].(uint64), nil
}
