package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/smartcontractkit/tdh2/go/tdh2/tdh2easy"
)

// donKeySlot is the member key the DON-encrypted envelope is stored under.
const donKeySlot = "0x0"

type signedSecrets struct {
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Encrypt seals secrets for the DON: the JSON object is signed by the wallet,
// the signed envelope is ECIES-encrypted to the DON key, and the result is
// TDH2-encrypted to the threshold key. The return value is 0x-hex.
func Encrypt(signer *Signer, keys *DONKeys, values map[string]string) (string, error) {
	return encrypt(rand.Reader, signer, keys, values)
}

func encrypt(random io.Reader, signer *Signer, keys *DONKeys, values map[string]string) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("no secrets to encrypt")
	}
	for name, value := range values {
		if value == "" {
			return "", fmt.Errorf("secret %q is empty", name)
		}
	}

	message, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	sig, err := signer.SignMessage(message)
	if err != nil {
		return "", fmt.Errorf("sign secrets: %w", err)
	}
	envelope, err := json.Marshal(signedSecrets{Message: string(message), Signature: hexutil.Encode(sig)})
	if err != nil {
		return "", err
	}

	sealed, err := eciesEncrypt(random, keys.DONPublicKey, envelope)
	if err != nil {
		return "", fmt.Errorf("encrypt to don key: %w", err)
	}
	donEncrypted, err := json.Marshal(map[string]string{donKeySlot: base64.StdEncoding.EncodeToString(sealed)})
	if err != nil {
		return "", err
	}

	ctxt, err := tdh2easy.Encrypt(keys.ThresholdPublicKey, donEncrypted)
	if err != nil {
		return "", fmt.Errorf("threshold encrypt: %w", err)
	}
	raw, err := ctxt.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal ciphertext: %w", err)
	}
	return hexutil.Encode(raw), nil
}

// eciesEncrypt produces iv(16) || compressed ephemeral key(33) || mac(32) || ciphertext,
// using SHA-512 of the shared X coordinate for the AES-256-CBC and HMAC-SHA256 keys.
func eciesEncrypt(random io.Reader, pub *ecdsa.PublicKey, plaintext []byte) ([]byte, error) {
	ephemeral, err := ecdsa.GenerateKey(crypto.S256(), random)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, err
	}

	encKey, macKey := deriveKeys(pub, ephemeral)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	ephemeralPub := crypto.FromECDSAPub(&ephemeral.PublicKey)
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(ephemeralPub)
	mac.Write(ciphertext)

	var out bytes.Buffer
	out.Write(iv)
	out.Write(crypto.CompressPubkey(&ephemeral.PublicKey))
	out.Write(mac.Sum(nil))
	out.Write(ciphertext)
	return out.Bytes(), nil
}

// eciesDecrypt reverses eciesEncrypt.
func eciesDecrypt(priv *ecdsa.PrivateKey, sealed []byte) ([]byte, error) {
	const header = aes.BlockSize + 33 + sha256.Size
	if len(sealed) < header+aes.BlockSize {
		return nil, fmt.Errorf("sealed message too short")
	}
	iv := sealed[:aes.BlockSize]
	ephemeralPub, err := crypto.DecompressPubkey(sealed[aes.BlockSize : aes.BlockSize+33])
	if err != nil {
		return nil, err
	}
	tag := sealed[aes.BlockSize+33 : header]
	ciphertext := sealed[header:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a whole number of blocks")
	}

	encKey, macKey := deriveKeys(ephemeralPub, priv)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)
	mac.Write(crypto.FromECDSAPub(ephemeralPub))
	mac.Write(ciphertext)
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return nil, fmt.Errorf("bad mac")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func deriveKeys(pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey) (encKey, macKey []byte) {
	x, _ := crypto.S256().ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	shared := make([]byte, 32)
	x.FillBytes(shared)
	hash := sha512.Sum512(shared)
	return hash[:32], hash[32:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
