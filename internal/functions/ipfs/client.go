// Package ipfs fetches JSON documents from an IPFS HTTP gateway by content hash.
package ipfs

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"mosaic-functions/internal/common/database"
	"mosaic-functions/internal/common/errors"
	commonhttp "mosaic-functions/internal/common/http"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/metrics"
	"mosaic-functions/internal/common/observability"

	"go.opentelemetry.io/otel/attribute"
)

const DefaultBaseURL = "https://peach-genuine-lamprey-766.mypinata.cloud/ipfs"

// maxDocumentSize bounds a fetched document.
const maxDocumentSize = 4 << 20

var (
	cidV0 = regexp.MustCompile(`^Qm[1-9A-HJ-NP-Za-km-z]{44}$`)
	cidV1 = regexp.MustCompile(`^b[a-z2-7]{58,}$`)
)

// ValidateContentHash accepts CIDv0 (base58 "Qm…") and base32 CIDv1 ("b…") hashes.
func ValidateContentHash(hash string) error {
	if cidV0.MatchString(hash) || cidV1.MatchString(hash) {
		return nil
	}
	return fmt.Errorf("invalid content hash %q", hash)
}

// Cache is the subset of the Redis client the fetcher needs.
type Cache interface {
	Key(parts ...string) string
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Client struct {
	http     *commonhttp.Client
	baseURL  string
	cache    Cache
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewClient builds a fetcher. cache may be nil.
func NewClient(cfg Config, cache Cache, log logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		http:     commonhttp.NewClient(cfg.Timeout),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		cache:    cache,
		cacheTTL: cfg.CacheTTL,
		logger:   log.Named("ipfs"),
	}
}

// URL is the gateway address of a content hash.
func (c *Client) URL(contentHash string) string {
	return c.baseURL + "/" + contentHash
}

// Fetch returns the JSON document stored under contentHash. Documents are
// immutable, so cached copies are served without revalidation.
func (c *Client) Fetch(ctx context.Context, contentHash string) (doc json.RawMessage, err error) {
	if err := ValidateContentHash(contentHash); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	ctx, span := observability.StartSpan(ctx, "ipfs.fetch", attribute.String("content_hash", contentHash))
	defer func() { observability.EndSpan(span, err) }()

	if cached, ok := c.fromCache(ctx, contentHash); ok {
		return cached, nil
	}

	start := time.Now()
	doc, err = c.get(ctx, contentHash)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SourceRequestDuration.WithLabelValues("ipfs", status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, errors.NewIPFSFetchError(contentHash, err)
	}

	c.toCache(ctx, contentHash, doc)
	return doc, nil
}

func (c *Client) get(ctx context.Context, contentHash string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(contentHash), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &commonhttp.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("document is not valid JSON")
	}
	return json.RawMessage(body), nil
}

func (c *Client) fromCache(ctx context.Context, contentHash string) (json.RawMessage, bool) {
	if c.cache == nil {
		return nil, false
	}

	var doc json.RawMessage
	err := c.cache.GetJSON(ctx, c.cache.Key("ipfs", contentHash), &doc)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return doc, true
	case stderrors.Is(err, database.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("Cache lookup failed, fetching from gateway", map[string]interface{}{
			"contentHash": contentHash,
			"error":       err.Error(),
		})
	}
	return nil, false
}

func (c *Client) toCache(ctx context.Context, contentHash string, doc json.RawMessage) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetJSON(ctx, c.cache.Key("ipfs", contentHash), doc, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache document", map[string]interface{}{
			"contentHash": contentHash,
			"error":       err.Error(),
		})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
