package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"mosaic-functions/internal/common/errors"
	commonhttp "mosaic-functions/internal/common/http"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/metrics"
)

const (
	DefaultSlotID            = 0
	DefaultExpirationMinutes = 2880
)

var DefaultGatewayURLs = []string{
	"https://01.functions-gateway.testnet.chain.link/",
	"https://02.functions-gateway.testnet.chain.link/",
}

// Envelope is the storage record the DON nodes verify before accepting a slot
// write. Byte fields marshal as base64.
type Envelope struct {
	Address    []byte `json:"address"`
	SlotID     uint   `json:"slotid"`
	Payload    []byte `json:"payload"`
	Version    uint64 `json:"version"`
	Expiration int64  `json:"expiration"`
}

type setPayload struct {
	SlotID     uint   `json:"slot_id"`
	Version    uint64 `json:"version"`
	Payload    string `json:"payload"`
	Expiration int64  `json:"expiration"`
	Signature  string `json:"signature"`
}

type UploadRequest struct {
	// EncryptedSecrets is the 0x-hex output of Encrypt.
	EncryptedSecrets  string
	SlotID            uint8
	Version           uint64
	ExpirationMinutes int
}

type UploadResult struct {
	SlotID    uint8
	Version   uint64
	Reference string
	// NodeFailures counts DON members that rejected the write on gateways
	// that still reported overall success.
	NodeFailures int
}

type UploaderConfig struct {
	DonID       string
	GatewayURLs []string
	Timeout     time.Duration
}

// Uploader stores encrypted secrets on every configured gateway.
type Uploader struct {
	donID    string
	gateways []*gatewayClient
	signer   *Signer
	now      func() time.Time
	logger   logger.Logger
}

func NewUploader(cfg UploaderConfig, signer *Signer, log logger.Logger) (*Uploader, error) {
	if signer == nil {
		return nil, errors.NewMissingSecretError("privateKey")
	}
	if cfg.DonID == "" {
		cfg.DonID = DefaultDonID
	}
	if len(cfg.GatewayURLs) == 0 {
		cfg.GatewayURLs = DefaultGatewayURLs
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	httpClient := commonhttp.NewClient(cfg.Timeout)
	gateways := make([]*gatewayClient, 0, len(cfg.GatewayURLs))
	for _, url := range cfg.GatewayURLs {
		gateways = append(gateways, &gatewayClient{url: url, http: httpClient})
	}

	return &Uploader{
		donID:    cfg.DonID,
		gateways: gateways,
		signer:   signer,
		now:      time.Now,
		logger:   log.Named("secrets"),
	}, nil
}

// Upload writes the secrets to the slot on every gateway concurrently. It
// succeeds only when every gateway accepts the write.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	payload, err := hexutil.Decode(req.EncryptedSecrets)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("encrypted secrets must be 0x-hex: %v", err))
	}
	if req.Version == 0 {
		req.Version = uint64(u.now().Unix())
	}
	if req.ExpirationMinutes <= 0 {
		req.ExpirationMinutes = DefaultExpirationMinutes
	}
	expiration := u.now().Add(time.Duration(req.ExpirationMinutes) * time.Minute).UnixMilli()

	envelope := Envelope{
		Address:    u.signer.Address().Bytes(),
		SlotID:     uint(req.SlotID),
		Payload:    payload,
		Version:    req.Version,
		Expiration: expiration,
	}
	signed, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.NewSecretsUploadError(err)
	}
	sig, err := u.signer.SignMessage(signed)
	if err != nil {
		return nil, errors.NewSecretsUploadError(err)
	}

	body := setPayload{
		SlotID:     envelope.SlotID,
		Version:    envelope.Version,
		Payload:    base64.StdEncoding.EncodeToString(payload),
		Expiration: expiration,
		Signature:  base64.StdEncoding.EncodeToString(sig),
	}

	results, err := u.broadcast(ctx, MethodSecretsSet, body)
	if err != nil {
		return nil, err
	}

	nodeFailures := 0
	for url, result := range results {
		for _, node := range result.NodeResponses {
			if !node.Body.Payload.Success {
				nodeFailures++
				u.logger.Warn("DON member rejected secrets", map[string]interface{}{
					"gateway": url,
					"node":    node.Body.Sender,
					"error":   node.Body.Payload.ErrorMessage,
				})
			}
		}
	}

	reference, err := DONHostedReference(req.SlotID, req.Version)
	if err != nil {
		return nil, errors.NewEncodingError(err)
	}

	u.logger.Info("Secrets uploaded", map[string]interface{}{
		"slotId":   req.SlotID,
		"version":  req.Version,
		"gateways": len(results),
	})
	return &UploadResult{SlotID: req.SlotID, Version: req.Version, Reference: reference, NodeFailures: nodeFailures}, nil
}

// List asks every gateway for the secrets the signer has stored.
func (u *Uploader) List(ctx context.Context) (map[string]*GatewayResult, error) {
	return u.broadcast(ctx, MethodSecretsList, struct{}{})
}

// broadcast sends one signed message per gateway and joins every failure.
func (u *Uploader) broadcast(ctx context.Context, method string, payload interface{}) (map[string]*GatewayResult, error) {
	var (
		mu      sync.Mutex
		errs    error
		results = make(map[string]*GatewayResult, len(u.gateways))
	)

	var g errgroup.Group
	for _, gw := range u.gateways {
		g.Go(func() error {
			result, err := u.sendSigned(ctx, gw, method, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", gw.url, err))
				return nil
			}
			results[gw.url] = result
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		u.logger.Error("Gateway request failed", map[string]interface{}{
			"method":   method,
			"failures": len(multierr.Errors(errs)),
			"error":    errs.Error(),
		})
		return nil, errors.NewSecretsUploadError(errs)
	}
	return results, nil
}

func (u *Uploader) sendSigned(ctx context.Context, gw *gatewayClient, method string, payload interface{}) (*GatewayResult, error) {
	msg, err := NewMessage(method, u.donID, payload)
	if err != nil {
		return nil, err
	}
	if err := msg.Sign(u.signer); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := gw.send(ctx, msg)
	status := "ok"
	if err == nil && !result.Success {
		err = fmt.Errorf("gateway rejected %s: %s", method, strings.TrimSpace(result.ErrorMessage))
	}
	if err != nil {
		status = "error"
	}
	metrics.SourceRequestDuration.WithLabelValues("gateway", status).Observe(time.Since(start).Seconds())
	return result, err
}
