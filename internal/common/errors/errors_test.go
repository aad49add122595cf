package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "ipfs fetch is retried",
			err:         NewIPFSFetchError("QmHash", fmt.Errorf("status 502")),
			wantCode:    "IPFS_FETCH_FAILED",
			wantRetries: 3,
		},
		{
			name:        "ai timeout is not retried",
			err:         NewAITimeoutError(fmt.Errorf("deadline exceeded")),
			wantCode:    "AI_TIMEOUT",
			wantRetries: 0,
		},
		{
			name:        "validation is not retried",
			err:         NewValidationError("args: Array must have at least 2 items"),
			wantCode:    "VALIDATION_FAILED",
			wantRetries: 0,
		},
		{
			name:        "unmapped code falls back to its own name",
			err:         &StandardError{Code: "SOMETHING_NEW", Message: "x"},
			wantCode:    "SOMETHING_NEW",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmnErr := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmnErr.Code)
			assert.Equal(t, tt.wantRetries, bpmnErr.Retries)

			vars := bpmnErr.ToErrorVariables()
			assert.Equal(t, tt.wantCode, vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestAsStandardError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := fmt.Errorf("organize: %w", NewAIRequestError(cause))

	stdErr := AsStandardError(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeAIRequestFailed, stdErr.Code)
	assert.ErrorIs(t, stdErr, cause)
	assert.Equal(t, "AI_REQUEST_FAILED", CodeOf(wrapped))

	plain := AsStandardError(cause)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "connection refused", plain.Details)
	assert.Equal(t, "UNKNOWN_ERROR", CodeOf(cause))
}

func TestMarketDataMessage(t *testing.T) {
	assert.Equal(t, "error fetching work market data", NewMarketDataError(fmt.Errorf("x")).Message)
	assert.Equal(t, "error fetching work market data", NewWorkNotFoundError("pablo-picasso", "Untitled").Message)
}

func TestMessageOf(t *testing.T) {
	wrapped := fmt.Errorf("verify: %w", NewMarketDataError(fmt.Errorf("status 500")))
	assert.Equal(t, "error fetching work market data", MessageOf(wrapped))
	assert.Equal(t, "boom", MessageOf(fmt.Errorf("boom")))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeIPFSFetchFailed))
	assert.Equal(t, "SOURCE", GetErrorCategory(ErrCodeWorkNotFound))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeAITimeout))
	assert.Equal(t, "ENCODING", GetErrorCategory(ErrCodeEncodingFailed))
	assert.Equal(t, "SECRETS", GetErrorCategory(ErrCodeSecretsUploadFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, int32(2), remainingRetries(3, 3))
	assert.Equal(t, int32(1), remainingRetries(5, 1))
	assert.Equal(t, int32(0), remainingRetries(0, 3))
}
