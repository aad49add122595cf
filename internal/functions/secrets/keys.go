// Package secrets encrypts request secrets for a Functions DON and uploads
// them to the DON gateways as DON-hosted secrets.
package secrets

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/smartcontractkit/tdh2/go/tdh2/tdh2easy"
)

const (
	DefaultRouterAddress = "0xf9B8fc078197181C841c296C876945aaa425B278"
	DefaultDonID         = "fun-base-sepolia-1"
)

const contractsABI = `[
	{"type":"function","name":"getContractById","stateMutability":"view",
	 "inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getDONPublicKey","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"getThresholdPublicKey","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"bytes"}]}
]`

var parsedABI = mustParseABI(contractsABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// DONKeys are the public keys secrets are encrypted to.
type DONKeys struct {
	DONPublicKey       *ecdsa.PublicKey
	ThresholdPublicKey *tdh2easy.PublicKey
}

// KeyFetcher reads the DON keys from the Functions coordinator the router
// currently points at.
type KeyFetcher struct {
	caller ethereum.ContractCaller
	router common.Address
	donID  [32]byte
}

func NewKeyFetcher(caller ethereum.ContractCaller, routerAddress, donID string) (*KeyFetcher, error) {
	if !common.IsHexAddress(routerAddress) {
		return nil, fmt.Errorf("invalid router address %q", routerAddress)
	}
	id, err := DonIDBytes32(donID)
	if err != nil {
		return nil, err
	}
	return &KeyFetcher{caller: caller, router: common.HexToAddress(routerAddress), donID: id}, nil
}

// DonIDBytes32 right-pads the UTF-8 bytes of a DON id to 32 bytes.
func DonIDBytes32(donID string) ([32]byte, error) {
	var out [32]byte
	if donID == "" || len(donID) > 31 {
		return out, fmt.Errorf("don id %q must be 1 to 31 bytes", donID)
	}
	copy(out[:], donID)
	return out, nil
}

func (f *KeyFetcher) Coordinator(ctx context.Context) (common.Address, error) {
	out, err := f.call(ctx, f.router, "getContractById", f.donID)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("router has no coordinator for don %q", string(bytes.TrimRight(f.donID[:], "\x00")))
	}
	return addr, nil
}

func (f *KeyFetcher) FetchKeys(ctx context.Context) (*DONKeys, error) {
	coordinator, err := f.Coordinator(ctx)
	if err != nil {
		return nil, err
	}

	out, err := f.call(ctx, coordinator, "getDONPublicKey")
	if err != nil {
		return nil, err
	}
	donKey, err := parseDONPublicKey(out[0].([]byte))
	if err != nil {
		return nil, err
	}

	out, err = f.call(ctx, coordinator, "getThresholdPublicKey")
	if err != nil {
		return nil, err
	}
	thresholdKey := &tdh2easy.PublicKey{}
	if err := thresholdKey.Unmarshal(out[0].([]byte)); err != nil {
		return nil, fmt.Errorf("threshold public key: %w", err)
	}

	return &DONKeys{DONPublicKey: donKey, ThresholdPublicKey: thresholdKey}, nil
}

func (f *KeyFetcher) call(ctx context.Context, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := parsedABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s returned %d values", method, len(out))
	}
	return out, nil
}

// parseDONPublicKey accepts a raw 64-byte X||Y key or a 65-byte uncompressed key.
func parseDONPublicKey(raw []byte) (*ecdsa.PublicKey, error) {
	if len(raw) == 64 {
		raw = append([]byte{0x04}, raw...)
	}
	key, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("don public key: %w", err)
	}
	return key, nil
}
