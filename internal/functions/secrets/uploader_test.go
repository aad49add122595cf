package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []rpcRequest
	reply    func(req rpcRequest) (int, interface{})
}

func (g *fakeGateway) serve(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.requests = append(g.requests, req)
		g.mu.Unlock()

		status, body := g.reply(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func (g *fakeGateway) calls() []rpcRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]rpcRequest(nil), g.requests...)
}

func accepted(nodeSuccess ...bool) func(rpcRequest) (int, interface{}) {
	return func(req rpcRequest) (int, interface{}) {
		nodes := make([]map[string]interface{}, 0, len(nodeSuccess))
		for i, ok := range nodeSuccess {
			payload := map[string]interface{}{"success": ok}
			if !ok {
				payload["error_message"] = "version too old"
			}
			nodes = append(nodes, map[string]interface{}{
				"body": map[string]interface{}{"sender": "0xnode" + string(rune('a'+i)), "payload": payload},
			})
		}
		return http.StatusOK, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"signature": "0x",
				"body": map[string]interface{}{
					"message_id": req.ID,
					"method":     req.Method,
					"don_id":     req.Params.Body.DonID,
					"payload":    map[string]interface{}{"success": true, "node_responses": nodes},
				},
			},
		}
	}
}

func newTestUploader(t *testing.T, urls ...string) *Uploader {
	t.Helper()
	u, err := NewUploader(UploaderConfig{GatewayURLs: urls, Timeout: 2 * time.Second}, testSigner(t), logger.NewTestLogger(t))
	require.NoError(t, err)
	u.now = func() time.Time { return time.Unix(1700000000, 0) }
	return u
}

func TestUpload_SendsSignedRequestToEveryGateway(t *testing.T) {
	gw1 := &fakeGateway{reply: accepted(true, true)}
	gw2 := &fakeGateway{reply: accepted(true, false)}
	u := newTestUploader(t, gw1.serve(t).URL, gw2.serve(t).URL)

	result, err := u.Upload(context.Background(), UploadRequest{EncryptedSecrets: "0xdeadbeef"})
	require.NoError(t, err)

	assert.Equal(t, uint8(0), result.SlotID)
	assert.Equal(t, uint64(1700000000), result.Version)
	assert.Equal(t, 1, result.NodeFailures)
	ref, err := DONHostedReference(0, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, ref, result.Reference)

	signer := testSigner(t)
	for _, gw := range []*fakeGateway{gw1, gw2} {
		calls := gw.calls()
		require.Len(t, calls, 1)
		req := calls[0]

		assert.Equal(t, "2.0", req.Version)
		assert.Equal(t, MethodSecretsSet, req.Method)
		assert.Equal(t, req.ID, req.Params.Body.MessageID)
		assert.Equal(t, DefaultDonID, req.Params.Body.DonID)
		assert.Equal(t, strings.ToLower(signer.Address().Hex()), req.Params.Body.Sender)

		sender, err := req.Params.Signer()
		require.NoError(t, err)
		assert.Equal(t, req.Params.Body.Sender, sender)

		var payload setPayload
		require.NoError(t, json.Unmarshal(req.Params.Body.Payload, &payload))
		assert.Equal(t, uint(0), payload.SlotID)
		assert.Equal(t, uint64(1700000000), payload.Version)
		assert.Equal(t, "3q2+7w==", payload.Payload)
		assert.Equal(t, int64(1700000000000+DefaultExpirationMinutes*60*1000), payload.Expiration)

		envelope, err := json.Marshal(Envelope{
			Address:    signer.Address().Bytes(),
			SlotID:     payload.SlotID,
			Payload:    []byte{0xde, 0xad, 0xbe, 0xef},
			Version:    payload.Version,
			Expiration: payload.Expiration,
		})
		require.NoError(t, err)
		sig, err := base64.StdEncoding.DecodeString(payload.Signature)
		require.NoError(t, err)
		storageSigner, err := RecoverSigner(envelope, sig)
		require.NoError(t, err)
		assert.Equal(t, signer.Address(), storageSigner)
	}
	assert.NotEqual(t, gw1.calls()[0].ID, gw2.calls()[0].ID)
}

func TestUpload_AggregatesGatewayFailures(t *testing.T) {
	ok := &fakeGateway{reply: accepted(true)}
	down := &fakeGateway{reply: func(rpcRequest) (int, interface{}) {
		return http.StatusBadGateway, map[string]string{"error": "upstream"}
	}}
	rejecting := &fakeGateway{reply: func(req rpcRequest) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32600, "message": "sender not allowlisted"},
		}
	}}
	downURL := down.serve(t).URL
	rejectingURL := rejecting.serve(t).URL
	u := newTestUploader(t, ok.serve(t).URL, downURL, rejectingURL)

	_, err := u.Upload(context.Background(), UploadRequest{EncryptedSecrets: "0x01", SlotID: 2, Version: 7})
	require.Error(t, err)

	stdErr := errors.AsStandardError(err)
	assert.Equal(t, errors.ErrCodeSecretsUploadFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, downURL)
	assert.Contains(t, stdErr.Details, rejectingURL)
	assert.Contains(t, stdErr.Details, "sender not allowlisted")
	assert.Len(t, ok.calls(), 1)
}

func TestUpload_RejectsNonHexSecrets(t *testing.T) {
	u := newTestUploader(t, "http://127.0.0.1:1")
	_, err := u.Upload(context.Background(), UploadRequest{EncryptedSecrets: "not-hex"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.AsStandardError(err).Code)
}

func TestNewUploader_RequiresSigner(t *testing.T) {
	_, err := NewUploader(UploaderConfig{}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMissingSecret, errors.AsStandardError(err).Code)
}

func TestList(t *testing.T) {
	gw := &fakeGateway{reply: accepted(true)}
	url := gw.serve(t).URL
	u := newTestUploader(t, url)

	results, err := u.List(context.Background())
	require.NoError(t, err)
	require.Contains(t, results, url)
	assert.True(t, results[url].Success)
	calls := gw.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, MethodSecretsList, calls[0].Method)
	assert.JSONEq(t, `{}`, string(calls[0].Params.Body.Payload))
}

func TestMessage_SigningLayout(t *testing.T) {
	msg := &Message{Body: MessageBody{
		MessageID: "42",
		Method:    MethodSecretsSet,
		DonID:     DefaultDonID,
		Payload:   json.RawMessage(`{"a":1}`),
	}}
	raw := msg.signingBytes()
	assert.Len(t, raw, 128+64+64+42+len(`{"a":1}`))
	assert.Equal(t, "42", strings.TrimRight(string(raw[:128]), "\x00"))
	assert.Equal(t, MethodSecretsSet, strings.TrimRight(string(raw[128:192]), "\x00"))
	assert.Equal(t, `{"a":1}`, string(raw[128+64+64+42:]))

	require.NoError(t, msg.Sign(testSigner(t)))
	sender, err := msg.Signer()
	require.NoError(t, err)
	assert.Equal(t, msg.Body.Sender, sender)

	msg.Body.Payload = json.RawMessage(`{"a":2}`)
	tampered, err := msg.Signer()
	require.NoError(t, err)
	assert.NotEqual(t, msg.Body.Sender, tampered)

	long := &Message{Body: MessageBody{MessageID: "1", Method: strings.Repeat("m", 65), DonID: "d"}}
	assert.Error(t, long.Sign(testSigner(t)))
}

func TestDONHostedReference(t *testing.T) {
	ref, err := DONHostedReference(0, 1700000000)
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("0", 64)+strings.Repeat("0", 56)+"6553f100", ref)

	slot, version, err := ParseDONHostedReference(ref)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), slot)
	assert.Equal(t, uint64(1700000000), version)

	ref, err = DONHostedReference(255, 1)
	require.NoError(t, err)
	_, err = hexutil.Decode(ref)
	require.NoError(t, err)
	slot, version, err = ParseDONHostedReference(ref)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), slot)
	assert.Equal(t, uint64(1), version)
}
