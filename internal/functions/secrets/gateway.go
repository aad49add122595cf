package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	commonhttp "mosaic-functions/internal/common/http"
)

const (
	MethodSecretsSet  = "secrets_set"
	MethodSecretsList = "secrets_list"

	messageIDMaxLen   = 128
	methodMaxLen      = 64
	donIDMaxLen       = 64
	receiverLen       = 2 + 2*20
	jsonRPCVersion    = "2.0"
	signatureHexBytes = 65
)

type MessageBody struct {
	MessageID string          `json:"message_id"`
	Method    string          `json:"method"`
	DonID     string          `json:"don_id"`
	Receiver  string          `json:"receiver"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sender    string          `json:"sender"`
}

// Message is a signed gateway message.
type Message struct {
	Signature string      `json:"signature"`
	Body      MessageBody `json:"body"`
}

type rpcRequest struct {
	Version string   `json:"jsonrpc"`
	ID      string   `json:"id"`
	Method  string   `json:"method"`
	Params  *Message `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Version string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Result  *Message  `json:"result"`
	Error   *rpcError `json:"error"`
}

// NodeResponse is one DON member's answer inside a gateway result.
type NodeResponse struct {
	Body struct {
		Sender  string `json:"sender"`
		Payload struct {
			Success      bool            `json:"success"`
			ErrorMessage string          `json:"error_message"`
			Rows         json.RawMessage `json:"rows,omitempty"`
		} `json:"payload"`
	} `json:"body"`
}

// GatewayResult is the aggregated payload the gateway returns.
type GatewayResult struct {
	Success       bool           `json:"success"`
	ErrorMessage  string         `json:"error_message"`
	NodeResponses []NodeResponse `json:"node_responses"`
}

// NewMessage builds an unsigned message with a fresh id.
func NewMessage(method, donID string, payload interface{}) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{Body: MessageBody{
		MessageID: uuid.NewString(),
		Method:    method,
		DonID:     donID,
		Payload:   raw,
	}}, nil
}

func (m *Message) Validate() error {
	if m.Body.MessageID == "" || len(m.Body.MessageID) > messageIDMaxLen {
		return fmt.Errorf("message id must be 1 to %d characters", messageIDMaxLen)
	}
	if m.Body.Method == "" || len(m.Body.Method) > methodMaxLen {
		return fmt.Errorf("method must be 1 to %d characters", methodMaxLen)
	}
	if m.Body.DonID == "" || len(m.Body.DonID) > donIDMaxLen {
		return fmt.Errorf("don id must be 1 to %d characters", donIDMaxLen)
	}
	if m.Body.Receiver != "" && len(m.Body.Receiver) != receiverLen {
		return fmt.Errorf("receiver must be a hex address")
	}
	return nil
}

// Sign sets the sender and signature. The signed bytes are the body fields,
// each zero-padded to its fixed width, followed by the raw payload.
func (m *Message) Sign(signer *Signer) error {
	if err := m.Validate(); err != nil {
		return err
	}
	sig, err := signer.SignMessage(m.signingBytes())
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}
	m.Body.Sender = strings.ToLower(signer.Address().Hex())
	m.Signature = hexutil.Encode(sig)
	return nil
}

// Signer recovers the address that signed the message.
func (m *Message) Signer() (string, error) {
	sig, err := hexutil.Decode(m.Signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != signatureHexBytes {
		return "", fmt.Errorf("signature must be %d bytes", signatureHexBytes)
	}
	addr, err := RecoverSigner(m.signingBytes(), sig)
	if err != nil {
		return "", err
	}
	return strings.ToLower(addr.Hex()), nil
}

func (m *Message) signingBytes() []byte {
	var buf bytes.Buffer
	buf.Write(padded(m.Body.MessageID, messageIDMaxLen))
	buf.Write(padded(m.Body.Method, methodMaxLen))
	buf.Write(padded(m.Body.DonID, donIDMaxLen))
	buf.Write(padded(m.Body.Receiver, receiverLen))
	buf.Write(m.Body.Payload)
	return buf.Bytes()
}

func padded(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	return out
}

// gatewayClient posts JSON-RPC envelopes to a single gateway.
type gatewayClient struct {
	url  string
	http *commonhttp.Client
}

func (g *gatewayClient) send(ctx context.Context, msg *Message) (*GatewayResult, error) {
	req := rpcRequest{Version: jsonRPCVersion, ID: msg.Body.MessageID, Method: msg.Body.Method, Params: msg}

	var resp rpcResponse
	if err := g.http.PostJSON(ctx, g.url, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("gateway error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("gateway returned no result")
	}
	if resp.ID != msg.Body.MessageID {
		return nil, fmt.Errorf("gateway answered message %q, sent %q", resp.ID, msg.Body.MessageID)
	}

	var result GatewayResult
	if err := json.Unmarshal(resp.Result.Body.Payload, &result); err != nil {
		return nil, fmt.Errorf("decode gateway payload: %w", err)
	}
	return &result, nil
}
