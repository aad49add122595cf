// Package response ABI-encodes the tuples returned to the requesting contract.
package response

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const (
	StringUint256Type = "(string,uint256)"
	StringStringType  = "(string,string)"
)

var (
	stringType  = mustType("string")
	uint256Type = mustType("uint256")

	stringUint256Args = abi.Arguments{{Type: stringType}, {Type: uint256Type}}
	stringStringArgs  = abi.Arguments{{Type: stringType}, {Type: stringType}}

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", t, err))
	}
	return typ
}

// EncodeResult packs (name, price) as (string, uint256).
func EncodeResult(name string, price *big.Int) ([]byte, error) {
	if price == nil {
		return nil, fmt.Errorf("price is required")
	}
	if price.Sign() < 0 || price.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("price %s out of uint256 range", price)
	}
	return stringUint256Args.Pack(name, price)
}

// EncodeFailure packs (JSON(payload), 0). It cannot fail: a payload that does
// not marshal is replaced by an error object describing why.
func EncodeFailure(payload interface{}) []byte {
	text, err := json.Marshal(payload)
	if err != nil {
		text, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	out, err := stringUint256Args.Pack(string(text), new(big.Int))
	if err != nil {
		// (string, uint256) with a valid string and zero always packs
		panic(err)
	}
	return out
}

// EncodeError packs the {"error": message} failure payload.
func EncodeError(err error) []byte {
	return EncodeFailure(map[string]string{"error": err.Error()})
}

// EncodeStrings packs (a, b) as (string, string).
func EncodeStrings(a, b string) ([]byte, error) {
	return stringStringArgs.Pack(a, b)
}

func DecodeResult(data []byte) (string, *big.Int, error) {
	values, err := stringUint256Args.Unpack(data)
	if err != nil {
		return "", nil, fmt.Errorf("decode %s: %w", StringUint256Type, err)
	}
	name, ok := values[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("decode %s: unexpected %T", StringUint256Type, values[0])
	}
	price, ok := values[1].(*big.Int)
	if !ok {
		return "", nil, fmt.Errorf("decode %s: unexpected %T", StringUint256Type, values[1])
	}
	return name, price, nil
}

func DecodeStrings(data []byte) (string, string, error) {
	values, err := stringStringArgs.Unpack(data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", StringStringType, err)
	}
	a, okA := values[0].(string)
	b, okB := values[1].(string)
	if !okA || !okB {
		return "", "", fmt.Errorf("decode %s: unexpected element types", StringStringType)
	}
	return a, b, nil
}

// Hex renders encoded bytes the way they travel in job variables.
func Hex(data []byte) string {
	return hexutil.Encode(data)
}

func FromHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

// ToUint256 converts a JSON value into a uint256. It accepts integers, integral
// floats, and decimal or 0x-prefixed hex strings. Negative, fractional and
// out-of-range values are rejected.
func ToUint256(v interface{}) (*big.Int, error) {
	var d decimal.Decimal

	switch n := v.(type) {
	case nil:
		return nil, fmt.Errorf("invalid BigNumberish value: null")
	case *big.Int:
		d = decimal.NewFromBigInt(n, 0)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int64:
		d = decimal.NewFromInt(n)
	case uint64:
		d = decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
	case float64:
		d = decimal.NewFromFloat(n)
	case json.Number:
		parsed, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, fmt.Errorf("invalid BigNumberish value %q", n)
		}
		d = parsed
	case string:
		s := strings.TrimSpace(n)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			b, ok := new(big.Int).SetString(s[2:], 16)
			if !ok {
				return nil, fmt.Errorf("invalid BigNumberish string %q", n)
			}
			d = decimal.NewFromBigInt(b, 0)
			break
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid BigNumberish string %q", n)
		}
		d = parsed
	default:
		return nil, fmt.Errorf("invalid BigNumberish value of type %T", v)
	}

	if !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("value %s is not an integer", d)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("value %s is negative", d)
	}
	out := d.BigInt()
	if out.Cmp(maxUint256) > 0 {
		return nil, fmt.Errorf("value %s overflows uint256", d)
	}
	return out, nil
}
