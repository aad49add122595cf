package certificateextraction

import (
	"context"

	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/functions/openai"
)

type Input struct {
	CertificateImageHash string `json:"certificateImageHash"`
}

// CertificateInfo is what the model reads off a certificate of authenticity.
type CertificateInfo struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

type Output struct {
	Response []byte `json:"-"`
	CertificateInfo
	// Error is set when extraction failed; the response then holds ("", "").
	Error string `json:"error,omitempty"`
}

type ChatCompleter interface {
	CompleteJSON(ctx context.Context, messages []openai.Message, seed int) (string, error)
}

// ImageLocator turns a content hash into a fetchable image URL.
type ImageLocator interface {
	URL(contentHash string) string
}

type ServiceDependencies struct {
	Chat   ChatCompleter
	Images ImageLocator
	Logger logger.Logger
}
