package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/functions/openai"
)

type MockChat struct {
	mock.Mock
}

func (m *MockChat) CompleteJSON(ctx context.Context, messages []openai.Message, seed int) (string, error) {
	args := m.Called(ctx, messages, seed)
	return args.String(0), args.Error(1)
}

func sampleAggregate() AggregatedData {
	return AggregatedData{
		CustomerSubmission: json.RawMessage(`{"title": "Le Rêve", "artist": "Pablo Picasso", "ownerName": "Jane"}`),
		Market: map[string]interface{}{
			"title":         "Le Rêve",
			"artist":        "Pablo Picasso",
			"lastSalePrice": 155000000,
		},
		Report: json.RawMessage(`{"appraisal":{"value":179400000}}`),
	}
}

func TestBuildOrganizePrompt(t *testing.T) {
	prompt, err := BuildOrganizePrompt(sampleAggregate())
	require.NoError(t, err)

	assert.Contains(t, prompt, `{ "artist": [], "title": [], "price": [], "customerAndOwnerName": [] }`)
	assert.Contains(t, prompt, `Source 1: {"title":"Le Rêve","artist":"Pablo Picasso","ownerName":"Jane"}`)
	assert.Contains(t, prompt, `Source 2: {"appraisal":{"value":179400000}}`)
	assert.Contains(t, prompt, `Source 3: {"artist":"Pablo Picasso"`)
	assert.Less(t, strings.Index(prompt, "Source 1"), strings.Index(prompt, "Source 2"))
	assert.Less(t, strings.Index(prompt, "Source 2"), strings.Index(prompt, "Source 3"))
}

func TestBuildOrganizePrompt_InvalidSource(t *testing.T) {
	data := sampleAggregate()
	data.Report = json.RawMessage(`{broken`)

	_, err := BuildOrganizePrompt(data)
	assert.Error(t, err)
}

func TestAIOrganizer_Organize(t *testing.T) {
	chat := new(MockChat)
	chat.On("CompleteJSON", mock.Anything, mock.MatchedBy(func(msgs []openai.Message) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == "system" && msgs[0].Content == openai.SystemJSONPrompt &&
			msgs[1].Role == "user"
	}), OrganizeSeed).Return(`{"artist":["Pablo Picasso","Pablo Picasso"],"price":[179400000]}`, nil)

	organized, err := NewAIOrganizer(chat).Organize(context.Background(), sampleAggregate())
	require.NoError(t, err)
	assert.Equal(t, []string{"artist", "price"}, organized.Keys())
	chat.AssertExpectations(t)
}

func TestAIOrganizer_Errors(t *testing.T) {
	t.Run("chat failure passes through", func(t *testing.T) {
		chat := new(MockChat)
		chat.On("CompleteJSON", mock.Anything, mock.Anything, OrganizeSeed).
			Return("", errors.NewAITimeoutError(fmt.Errorf("deadline")))

		_, err := NewAIOrganizer(chat).Organize(context.Background(), sampleAggregate())
		assert.Equal(t, errors.ErrCodeAITimeout, errors.AsStandardError(err).Code)
	})

	t.Run("non-object answer is invalid output", func(t *testing.T) {
		chat := new(MockChat)
		chat.On("CompleteJSON", mock.Anything, mock.Anything, OrganizeSeed).Return(`"sorry"`, nil)

		_, err := NewAIOrganizer(chat).Organize(context.Background(), sampleAggregate())
		assert.Equal(t, errors.ErrCodeAIInvalidOutput, errors.AsStandardError(err).Code)
	})
}
