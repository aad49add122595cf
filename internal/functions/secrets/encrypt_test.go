package secrets

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/smartcontractkit/tdh2/go/tdh2/tdh2easy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func testSigner(t *testing.T) *Signer {
	t.Helper()
	signer, err := ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)
	return signer
}

type donFixture struct {
	donKey *ecdsa.PrivateKey
	pub    *tdh2easy.PublicKey
	shares []*tdh2easy.PrivateShare
	keys   *DONKeys
	k, n   int
}

func newDONFixture(t *testing.T) *donFixture {
	t.Helper()
	donKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, pub, shares, err := tdh2easy.GenerateKeys(2, 3)
	require.NoError(t, err)
	return &donFixture{
		donKey: donKey,
		pub:    pub,
		shares: shares,
		keys:   &DONKeys{DONPublicKey: &donKey.PublicKey, ThresholdPublicKey: pub},
		k:      2,
		n:      3,
	}
}

// open reverses Encrypt the way the DON does: threshold decryption, then the
// DON key, then signature recovery.
func (f *donFixture) open(t *testing.T, encrypted string) (map[string]string, common.Address) {
	t.Helper()
	raw, err := hexutil.Decode(encrypted)
	require.NoError(t, err)

	ctxt := &tdh2easy.Ciphertext{}
	require.NoError(t, ctxt.UnmarshalVerify(raw, f.pub))

	var decShares []*tdh2easy.DecryptionShare
	for _, share := range f.shares[:f.k] {
		ds, err := tdh2easy.Decrypt(ctxt, share)
		require.NoError(t, err)
		decShares = append(decShares, ds)
	}
	donEncrypted, err := tdh2easy.Aggregate(ctxt, decShares, f.n)
	require.NoError(t, err)

	var slots map[string]string
	require.NoError(t, json.Unmarshal(donEncrypted, &slots))
	sealed, err := base64.StdEncoding.DecodeString(slots["0x0"])
	require.NoError(t, err)

	plain, err := eciesDecrypt(f.donKey, sealed)
	require.NoError(t, err)

	var signed signedSecrets
	require.NoError(t, json.Unmarshal(plain, &signed))
	sig, err := hexutil.Decode(signed.Signature)
	require.NoError(t, err)
	signer, err := RecoverSigner([]byte(signed.Message), sig)
	require.NoError(t, err)

	var values map[string]string
	require.NoError(t, json.Unmarshal([]byte(signed.Message), &values))
	return values, signer
}

func TestEncrypt_RoundTrip(t *testing.T) {
	signer := testSigner(t)
	don := newDONFixture(t)

	encrypted, err := Encrypt(signer, don.keys, map[string]string{"openaiApiKey": "sk-live-123"})
	require.NoError(t, err)
	assert.Regexp(t, "^0x[0-9a-f]+$", encrypted)

	values, recovered := don.open(t, encrypted)
	assert.Equal(t, map[string]string{"openaiApiKey": "sk-live-123"}, values)
	assert.Equal(t, signer.Address(), recovered)
}

func TestEncrypt_RejectsEmptySecrets(t *testing.T) {
	signer := testSigner(t)
	don := newDONFixture(t)

	_, err := Encrypt(signer, don.keys, nil)
	assert.Error(t, err)

	_, err = Encrypt(signer, don.keys, map[string]string{"openaiApiKey": ""})
	assert.EqualError(t, err, `secret "openaiApiKey" is empty`)
}

func TestECIES_DetectsTampering(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sealed, err := eciesEncrypt(rand.Reader, &key.PublicKey, []byte(`{"message":"m"}`))
	require.NoError(t, err)
	assert.Equal(t, 0, (len(sealed)-16-33-32)%16)

	plain, err := eciesDecrypt(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"message":"m"}`, string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = eciesDecrypt(key, sealed)
	assert.EqualError(t, err, "bad mac")

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff
	_, err = eciesDecrypt(other, sealed)
	assert.Error(t, err)
}

func TestSigner(t *testing.T) {
	signer := testSigner(t)
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", signer.Address().Hex())

	sig, err := signer.SignMessage([]byte("hello"))
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	recovered, err := RecoverSigner([]byte("hello"), sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)

	_, err = ParsePrivateKey("")
	assert.Error(t, err)
	_, err = ParsePrivateKey("0xzz")
	assert.Error(t, err)
}

type fakeChain struct {
	router      common.Address
	coordinator common.Address
	donID       [32]byte
	donPub      []byte
	threshold   []byte
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := parsedABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch {
	case *msg.To == f.router && method.Name == "getContractById":
		args, err := method.Inputs.Unpack(msg.Data[4:])
		if err != nil {
			return nil, err
		}
		if args[0].([32]byte) != f.donID {
			return method.Outputs.Pack(common.Address{})
		}
		return method.Outputs.Pack(f.coordinator)
	case *msg.To == f.coordinator && method.Name == "getDONPublicKey":
		return method.Outputs.Pack(f.donPub)
	case *msg.To == f.coordinator && method.Name == "getThresholdPublicKey":
		return method.Outputs.Pack(f.threshold)
	}
	return nil, fmt.Errorf("execution reverted")
}

func TestKeyFetcher_FetchKeys(t *testing.T) {
	don := newDONFixture(t)
	threshold, err := don.pub.Marshal()
	require.NoError(t, err)
	donID, err := DonIDBytes32(DefaultDonID)
	require.NoError(t, err)

	chain := &fakeChain{
		router:      common.HexToAddress(DefaultRouterAddress),
		coordinator: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		donID:       donID,
		donPub:      crypto.FromECDSAPub(&don.donKey.PublicKey)[1:],
		threshold:   threshold,
	}

	fetcher, err := NewKeyFetcher(chain, DefaultRouterAddress, DefaultDonID)
	require.NoError(t, err)

	keys, err := fetcher.FetchKeys(context.Background())
	require.NoError(t, err)
	assert.True(t, keys.DONPublicKey.Equal(&don.donKey.PublicKey))

	encrypted, err := Encrypt(testSigner(t), keys, map[string]string{"openaiApiKey": "sk"})
	require.NoError(t, err)
	values, _ := don.open(t, encrypted)
	assert.Equal(t, "sk", values["openaiApiKey"])

	unknown, err := NewKeyFetcher(chain, DefaultRouterAddress, "fun-unknown-1")
	require.NoError(t, err)
	_, err = unknown.FetchKeys(context.Background())
	assert.EqualError(t, err, `router has no coordinator for don "fun-unknown-1"`)
}

func TestDonIDBytes32(t *testing.T) {
	id, err := DonIDBytes32("fun-base-sepolia-1")
	require.NoError(t, err)
	assert.Equal(t, "0x66756e2d626173652d7365706f6c69612d310000000000000000000000000000", hexutil.Encode(id[:]))

	_, err = DonIDBytes32("")
	assert.Error(t, err)
	_, err = NewKeyFetcher(nil, "not-an-address", DefaultDonID)
	assert.Error(t, err)
}
