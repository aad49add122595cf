package workverification

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/common/observability"
	"mosaic-functions/internal/functions/reconcile"
	"mosaic-functions/internal/functions/response"
)

type Service struct {
	config    *Config
	fetcher   Fetcher
	market    MarketSource
	organizer reconcile.Organizer
	obs       *observability.Observability
	logger    logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config:    config,
		fetcher:   deps.Fetcher,
		market:    deps.Market,
		organizer: deps.Organizer,
		obs:       deps.Observability,
		logger:    log,
	}
}

// Execute runs fetch, organize, reconcile and encode. Failures past input
// checks are encoded into the response instead of being returned.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || len(input.Args) < 2 {
		return nil, errors.NewValidationError("args must hold the submission and report hashes")
	}
	if s.fetcher == nil || s.market == nil || s.organizer == nil {
		return nil, errors.NewInternalError(fmt.Errorf("work verification service is not fully wired"))
	}

	s.logger.Info("Executing work verification", map[string]interface{}{
		"customerSubmissionHash": input.CustomerSubmissionHash(),
		"reportHash":             input.ReportHash(),
	})

	organized, err := s.organize(ctx, input)
	if err != nil {
		return s.failure(err), nil
	}

	discrepancies := reconcile.GetDiscrepancies(organized)
	if len(discrepancies) > 0 {
		keys := reconcile.DiscrepantKeys(discrepancies)
		s.obs.RecordDiscrepancies(ctx, keys)
		s.logger.Warn("Sources disagree", map[string]interface{}{
			"categories": keys,
		})
		return &Output{
			Response:      response.EncodeFailure(discrepancies),
			Outcome:       OutcomeDiscrepancies,
			Discrepancies: discrepancies,
		}, nil
	}

	out, err := encodeResult(organized)
	if err != nil {
		return s.failure(err), nil
	}
	return out, nil
}

// organize gathers the three sources in order and returns the sanitized
// collections.
func (s *Service) organize(ctx context.Context, input *Input) (*reconcile.OrganizedData, error) {
	submission, err := s.fetcher.Fetch(ctx, input.CustomerSubmissionHash())
	if err != nil {
		return nil, err
	}

	market, err := s.market.MarketRecord(ctx, submission)
	if err != nil {
		return nil, err
	}

	report, err := s.fetcher.Fetch(ctx, input.ReportHash())
	if err != nil {
		return nil, err
	}

	organized, err := s.organizer.Organize(ctx, reconcile.AggregatedData{
		CustomerSubmission: submission,
		Market:             market,
		Report:             report,
	})
	if err != nil {
		return nil, err
	}
	return reconcile.Sanitize(organized), nil
}

func (s *Service) failure(err error) *Output {
	message := errors.MessageOf(err)
	s.logger.Error("Work verification failed, encoding error response", map[string]interface{}{
		"errorCode": errors.CodeOf(err),
		"error":     err.Error(),
	})
	return &Output{
		Response: response.EncodeFailure(map[string]string{"error": message}),
		Outcome:  OutcomeError,
		Error:    message,
	}
}

// encodeResult packs the first owner name and the first price.
func encodeResult(organized *reconcile.OrganizedData) (*Output, error) {
	rawName, ok := organized.First(reconcile.CategoryOwner)
	if !ok {
		return nil, errors.NewEncodingError(fmt.Errorf("no %s value to report", reconcile.CategoryOwner))
	}
	name, err := cast.ToStringE(rawName)
	if err != nil {
		return nil, errors.NewEncodingError(fmt.Errorf("%s: %w", reconcile.CategoryOwner, err))
	}

	rawPrice, ok := organized.First(reconcile.CategoryPrice)
	if !ok {
		return nil, errors.NewEncodingError(fmt.Errorf("no %s value to report", reconcile.CategoryPrice))
	}
	price, err := response.ToUint256(rawPrice)
	if err != nil {
		return nil, errors.NewEncodingError(fmt.Errorf("%s: %w", reconcile.CategoryPrice, err))
	}

	encoded, err := response.EncodeResult(name, price)
	if err != nil {
		return nil, errors.NewEncodingError(err)
	}
	return &Output{
		Response:  encoded,
		Outcome:   OutcomeResult,
		OwnerName: name,
		Price:     price.String(),
	}, nil
}
