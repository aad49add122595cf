// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingSecret      ErrorCode = "MISSING_SECRET"
	ErrCodeWorkerDisabled     ErrorCode = "WORKER_DISABLED"

	ErrCodeIPFSFetchFailed       ErrorCode = "IPFS_FETCH_FAILED"
	ErrCodeMarketDataFetchFailed ErrorCode = "MARKET_DATA_FETCH_FAILED"
	ErrCodeWorkNotFound          ErrorCode = "WORK_NOT_FOUND"

	ErrCodeAIRequestFailed ErrorCode = "AI_REQUEST_FAILED"
	ErrCodeAITimeout       ErrorCode = "AI_TIMEOUT"
	ErrCodeAIInvalidOutput ErrorCode = "AI_INVALID_OUTPUT"

	ErrCodeEncodingFailed      ErrorCode = "ENCODING_FAILED"
	ErrCodeSecretsUploadFailed ErrorCode = "SECRETS_UPLOAD_FAILED"
	ErrCodeCacheUnavailable    ErrorCode = "CACHE_UNAVAILABLE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewInputParsingError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err, false)
}

func NewValidationError(details string) *StandardError {
	e := newError(ErrCodeValidationFailed, "Input validation failed", nil, false)
	e.Details = details
	return e
}

func NewMissingSecretError(name string) *StandardError {
	e := newError(ErrCodeMissingSecret, "Required secret is not configured", nil, false)
	e.Details = fmt.Sprintf("secret: %s", name)
	return e
}

func NewIPFSFetchError(contentHash string, err error) *StandardError {
	return newError(ErrCodeIPFSFetchFailed, "Failed to fetch content from IPFS", err, true).
		WithMetadata("contentHash", contentHash)
}

// NewMarketDataError carries the fixed message the verification response reports.
func NewMarketDataError(err error) *StandardError {
	return newError(ErrCodeMarketDataFetchFailed, "error fetching work market data", err, true)
}

func NewWorkNotFoundError(artistID, title string) *StandardError {
	e := newError(ErrCodeWorkNotFound, "error fetching work market data", nil, false)
	e.Details = fmt.Sprintf("no work titled %q for artist %q", title, artistID)
	return e
}

func NewAIRequestError(err error) *StandardError {
	return newError(ErrCodeAIRequestFailed, "AI request failed", err, true)
}

func NewAITimeoutError(err error) *StandardError {
	return newError(ErrCodeAITimeout, "AI request timed out", err, false)
}

func NewAIInvalidOutputError(err error) *StandardError {
	return newError(ErrCodeAIInvalidOutput, "AI returned an unusable response", err, false)
}

func NewEncodingError(err error) *StandardError {
	return newError(ErrCodeEncodingFailed, "Failed to ABI-encode response", err, false)
}

func NewSecretsUploadError(err error) *StandardError {
	return newError(ErrCodeSecretsUploadFailed, "Failed to upload DON-hosted secrets", err, true)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", err, true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 4. Mapping and Helpers
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInputParsingFailed:    "INPUT_PARSING_FAILED",
	ErrCodeValidationFailed:      "VALIDATION_FAILED",
	ErrCodeMissingSecret:         "MISSING_SECRET",
	ErrCodeWorkerDisabled:        "WORKER_DISABLED",
	ErrCodeIPFSFetchFailed:       "IPFS_FETCH_FAILED",
	ErrCodeMarketDataFetchFailed: "MARKET_DATA_FETCH_FAILED",
	ErrCodeWorkNotFound:          "WORK_NOT_FOUND",
	ErrCodeAIRequestFailed:       "AI_REQUEST_FAILED",
	ErrCodeAITimeout:             "AI_TIMEOUT",
	ErrCodeAIInvalidOutput:       "AI_INVALID_OUTPUT",
	ErrCodeEncodingFailed:        "ENCODING_FAILED",
	ErrCodeSecretsUploadFailed:   "SECRETS_UPLOAD_FAILED",
	ErrCodeCacheUnavailable:      "CACHE_UNAVAILABLE",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeIPFSFetchFailed,
		ErrCodeMarketDataFetchFailed,
		ErrCodeSecretsUploadFailed:
		return 3

	case ErrCodeAIRequestFailed,
		ErrCodeCacheUnavailable:
		return 1

	default:
		// AI timeouts are not retried.
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// AsStandardError finds a StandardError in err's chain, or wraps err as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code used for metric labels.
func CodeOf(err error) string {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

// MessageOf returns the StandardError message in err's chain, or err's text.
func MessageOf(err error) string {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Message
	}
	return err.Error()
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "IPFS") || strings.Contains(codeStr, "MARKET") || strings.Contains(codeStr, "WORK_NOT_FOUND"):
		return "SOURCE"
	case strings.HasPrefix(codeStr, "AI_"):
		return "AI"
	case strings.Contains(codeStr, "ENCODING"):
		return "ENCODING"
	case strings.Contains(codeStr, "SECRET"):
		return "SECRETS"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
