// pkg/requestconfig/requestconfig.go
package requestconfig

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, rejecting unknown keys, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse request config: %w", err)
	}
	if cfg.ExpectedReturnType == "" {
		cfg.ExpectedReturnType = ReturnBytes
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.CodeLocation != LocationInline && c.CodeLocation != LocationRemote {
		return fmt.Errorf("codeLocation must be inline or remote, got %s", c.CodeLocation)
	}
	if c.CodeLanguage != LanguageJavaScript {
		return fmt.Errorf("unsupported codeLanguage %d", c.CodeLanguage)
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("source is required")
	}
	switch c.SecretsLocation {
	case LocationInline, LocationRemote, LocationDONHosted:
	default:
		return fmt.Errorf("unknown secretsLocation %s", c.SecretsLocation)
	}
	if c.SecretsReference != "" {
		if _, err := hexutil.Decode(c.SecretsReference); err != nil {
			return fmt.Errorf("secretsReference must be 0x-hex: %w", err)
		}
	} else if c.SecretsLocation == LocationDONHosted {
		return fmt.Errorf("secretsReference is required for donHosted secrets")
	}
	for i, arg := range c.BytesArgs {
		if _, err := hexutil.Decode(arg); err != nil {
			return fmt.Errorf("bytesArgs[%d] must be 0x-hex: %w", i, err)
		}
	}
	return nil
}

// request is the CBOR request payload. Field order is the encoded key order.
type request struct {
	CodeLocation    Location `cbor:"codeLocation"`
	Language        int      `cbor:"language"`
	Source          string   `cbor:"source"`
	SecretsLocation *int     `cbor:"secretsLocation,omitempty"`
	Secrets         []byte   `cbor:"secrets,omitempty"`
	Args            []string `cbor:"args,omitempty"`
	BytesArgs       [][]byte `cbor:"bytesArgs,omitempty"`
}

// Encode returns the CBOR request payload sent to the router.
func (c *Config) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	req := request{
		CodeLocation: c.CodeLocation,
		Language:     int(c.CodeLanguage),
		Source:       c.Source,
		Args:         c.Args,
	}
	if c.SecretsReference != "" {
		loc := int(c.SecretsLocation)
		req.SecretsLocation = &loc
		req.Secrets, _ = hexutil.Decode(c.SecretsReference)
	}
	for _, arg := range c.BytesArgs {
		b, _ := hexutil.Decode(arg)
		req.BytesArgs = append(req.BytesArgs, b)
	}

	return cbor.Marshal(req)
}
