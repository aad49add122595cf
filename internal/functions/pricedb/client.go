// Package pricedb queries the artwork pricing GraphQL API.
package pricedb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mosaic-functions/internal/common/errors"
	commonhttp "mosaic-functions/internal/common/http"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/metrics"
	"mosaic-functions/internal/common/observability"

	graphql "github.com/hasura/go-graphql-client"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultURL = "https://pricedb.ms.masterworks.io/graphql"

type Config struct {
	URL     string
	Timeout time.Duration
}

type Client struct {
	gql    *graphql.Client
	logger logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	httpClient := commonhttp.NewClient(cfg.Timeout)
	return &Client{
		gql:    graphql.NewClient(cfg.URL, httpClient.HTTPClient()),
		logger: log.Named("pricedb"),
	}
}

// FormatArtistID turns a display name into the API's artist id:
// lower-cased, every space replaced by "-".
func FormatArtistID(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// StripTitleQuotes removes one leading and one trailing double quote.
func StripTitleQuotes(title string) string {
	title = strings.TrimPrefix(title, `"`)
	return strings.TrimSuffix(title, `"`)
}

func (c *Client) ArtistDetails(ctx context.Context, artistID string) (*Artist, error) {
	var q artistDetailsQuery
	vars := map[string]interface{}{"artistId": artistID}

	if err := c.query(ctx, "artistDetails", &q, vars); err != nil {
		return nil, fmt.Errorf("fetch artist %q: %w", artistID, err)
	}
	if q.Artist == nil {
		return nil, fmt.Errorf("artist %q not found", artistID)
	}
	return q.Artist, nil
}

func (c *Client) WorkDetails(ctx context.Context, permalink string) (*WorkDetails, error) {
	var q artworkQuery
	vars := map[string]interface{}{"permalink": permalink}

	if err := c.query(ctx, "ArtworkForAdmin", &q, vars); err != nil {
		return nil, fmt.Errorf("fetch work %q: %w", permalink, err)
	}
	if q.Artwork == nil {
		return nil, fmt.Errorf("work %q not found", permalink)
	}
	return q.Artwork, nil
}

func (c *Client) query(ctx context.Context, operation string, q interface{}, vars map[string]interface{}) (err error) {
	ctx, span := observability.StartSpan(ctx, "pricedb."+operation, attribute.String("operation", operation))
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.SourceRequestDuration.WithLabelValues("pricedb", status).Observe(time.Since(start).Seconds())
		observability.EndSpan(span, err)
	}()

	return c.gql.Query(ctx, q, vars, graphql.OperationName(operation))
}

// MarketRecord looks up the submitted work's artist, finds the work whose
// unquoted title equals the submission title exactly, and returns its sale data.
// Every failure carries the message "error fetching work market data".
func (c *Client) MarketRecord(ctx context.Context, submission json.RawMessage) (*MarketRecord, error) {
	var work struct {
		Artist interface{} `json:"artist"`
		Title  interface{} `json:"title"`
	}
	if err := json.Unmarshal(submission, &work); err != nil {
		return nil, errors.NewMarketDataError(fmt.Errorf("decode submission: %w", err))
	}
	artistName, ok := work.Artist.(string)
	if !ok {
		return nil, errors.NewMarketDataError(fmt.Errorf("submission has no artist name"))
	}
	title, _ := work.Title.(string)

	artistID := FormatArtistID(artistName)
	artist, err := c.ArtistDetails(ctx, artistID)
	if err != nil {
		return nil, errors.NewMarketDataError(err)
	}

	var permalink string
	for _, w := range artist.Works {
		if StripTitleQuotes(w.WorkTitle) == title {
			permalink = w.Permalink
			break
		}
	}
	if permalink == "" {
		return nil, errors.NewWorkNotFoundError(artistID, title)
	}

	details, err := c.WorkDetails(ctx, permalink)
	if err != nil {
		return nil, errors.NewMarketDataError(err)
	}

	c.logger.Debug("Matched market record", map[string]interface{}{
		"artistId":  artistID,
		"permalink": permalink,
	})

	return &MarketRecord{
		Title:         StripTitleQuotes(details.WorkTitle),
		Artist:        artist.ArtistName,
		LastSaleDate:  details.LastSaleDate,
		LastSalePrice: details.LastSalePrice,
	}, nil
}
