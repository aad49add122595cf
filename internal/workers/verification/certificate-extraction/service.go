package certificateextraction

import (
	"context"
	"encoding/json"
	"fmt"

	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/functions/openai"
	"mosaic-functions/internal/functions/reconcile"
	"mosaic-functions/internal/functions/response"
)

// ExtractionSeed keeps the vision model's sampling stable across oracle nodes.
const ExtractionSeed = 10

const extractionPrompt = "The image is an artwork certificate of authenticity. " +
	"Read it and answer in JSON shaped like { artist: 'value', title: 'value' }. " +
	"When a value cannot be found, still return the object with that value empty."

type Service struct {
	config *Config
	chat   ChatCompleter
	images ImageLocator
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config: config,
		chat:   deps.Chat,
		images: deps.Images,
		logger: log,
	}
}

// Execute reads artist and title off the certificate image. Any failure, and
// any certificate missing either value, yields ("", "").
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.CertificateImageHash == "" {
		return nil, errors.NewValidationError("certificate image hash is required")
	}
	if s.chat == nil || s.images == nil {
		return nil, errors.NewInternalError(fmt.Errorf("certificate extraction service is not fully wired"))
	}

	imageURL := s.images.URL(input.CertificateImageHash)
	s.logger.Info("Executing certificate extraction", map[string]interface{}{
		"certificateImageHash": input.CertificateImageHash,
		"imageURL":             imageURL,
	})

	info, err := s.extract(ctx, imageURL)
	if err != nil {
		s.logger.Error("Certificate extraction failed, encoding empty response", map[string]interface{}{
			"errorCode": errors.CodeOf(err),
			"error":     err.Error(),
		})
		return emptyOutput(errors.MessageOf(err)), nil
	}
	if info.Artist == "" || info.Title == "" {
		s.logger.Info("Certificate is missing artist or title", map[string]interface{}{
			"artist": info.Artist,
			"title":  info.Title,
		})
		return emptyOutput(""), nil
	}

	encoded, err := response.EncodeStrings(info.Artist, info.Title)
	if err != nil {
		return emptyOutput(errors.NewEncodingError(err).Message), nil
	}
	return &Output{Response: encoded, CertificateInfo: *info}, nil
}

func (s *Service) extract(ctx context.Context, imageURL string) (*CertificateInfo, error) {
	content, err := s.chat.CompleteJSON(ctx, []openai.Message{
		openai.VisionMessage(extractionPrompt, imageURL),
	}, ExtractionSeed)
	if err != nil {
		return nil, err
	}
	return parseCertificateInfo(content)
}

// parseCertificateInfo reads artist and title. Missing and falsy values are
// left empty; any other non-string value is unusable output.
func parseCertificateInfo(content string) (*CertificateInfo, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, errors.NewAIInvalidOutputError(fmt.Errorf("decode certificate info: %w", err))
	}

	var info CertificateInfo
	for field, dst := range map[string]*string{"artist": &info.Artist, "title": &info.Title} {
		v, ok := raw[field]
		if !ok || reconcile.IsFalsy(v) {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, errors.NewAIInvalidOutputError(fmt.Errorf("%s is %T, not a string", field, v))
		}
		*dst = str
	}
	return &info, nil
}

func emptyOutput(reason string) *Output {
	encoded, err := response.EncodeStrings("", "")
	if err != nil {
		// two empty strings always pack
		panic(err)
	}
	return &Output{Response: encoded, Error: reason}
}
