package workverification

import (
	"context"
	"encoding/json"

	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/observability"
	"mosaic-functions/internal/functions/pricedb"
	"mosaic-functions/internal/functions/reconcile"
)

// Input mirrors the request args: submission hash, report hash and the
// optional certificate artist and title.
type Input struct {
	Args []string `json:"args"`
}

func (i *Input) CustomerSubmissionHash() string { return i.arg(0) }
func (i *Input) ReportHash() string             { return i.arg(1) }
func (i *Input) CertificateArtist() string      { return i.arg(2) }
func (i *Input) CertificateTitle() string       { return i.arg(3) }

func (i *Input) arg(n int) string {
	if n < len(i.Args) {
		return i.Args[n]
	}
	return ""
}

// Outcome names the branch that produced the response.
type Outcome string

const (
	OutcomeResult        Outcome = "result"
	OutcomeDiscrepancies Outcome = "discrepancies"
	OutcomeError         Outcome = "error"
)

type Output struct {
	Response      []byte                  `json:"-"`
	Outcome       Outcome                 `json:"outcome"`
	OwnerName     string                  `json:"ownerName,omitempty"`
	Price         string                  `json:"price,omitempty"`
	Discrepancies []reconcile.Discrepancy `json:"discrepancies,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// Fetcher loads a JSON document by content hash.
type Fetcher interface {
	Fetch(ctx context.Context, contentHash string) (json.RawMessage, error)
}

// MarketSource resolves the sale record of a submitted work.
type MarketSource interface {
	MarketRecord(ctx context.Context, submission json.RawMessage) (*pricedb.MarketRecord, error)
}

type ServiceDependencies struct {
	Fetcher       Fetcher
	Market        MarketSource
	Organizer     reconcile.Organizer
	Observability *observability.Observability
	Logger        logger.Logger
}
