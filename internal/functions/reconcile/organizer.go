package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/functions/openai"
)

// OrganizeSeed keeps the organizer's sampling stable across oracle nodes.
const OrganizeSeed = 1996

// AggregatedData is everything fetched for one verification request.
// Submission and report are kept as raw JSON so their key order reaches the
// prompt unchanged.
type AggregatedData struct {
	CustomerSubmission json.RawMessage `json:"customerSubmission"`
	Market             interface{}     `json:"market"`
	Report             json.RawMessage `json:"report"`
}

// Organizer sorts aggregated source data into named collections.
type Organizer interface {
	Organize(ctx context.Context, data AggregatedData) (*OrganizedData, error)
}

type ChatCompleter interface {
	CompleteJSON(ctx context.Context, messages []openai.Message, seed int) (string, error)
}

// AIOrganizer asks a chat model to do the sorting.
type AIOrganizer struct {
	chat ChatCompleter
	seed int
}

func NewAIOrganizer(chat ChatCompleter) *AIOrganizer {
	return &AIOrganizer{chat: chat, seed: OrganizeSeed}
}

func (o *AIOrganizer) Organize(ctx context.Context, data AggregatedData) (*OrganizedData, error) {
	prompt, err := BuildOrganizePrompt(data)
	if err != nil {
		return nil, err
	}

	content, err := o.chat.CompleteJSON(ctx, []openai.Message{
		openai.TextMessage("system", openai.SystemJSONPrompt),
		openai.TextMessage("user", prompt),
	}, o.seed)
	if err != nil {
		return nil, err
	}

	organized, err := ParseOrganizedData(content)
	if err != nil {
		return nil, errors.NewAIInvalidOutputError(err)
	}
	return organized, nil
}

// BuildOrganizePrompt lists the sources in a fixed order: submission, report, market.
func BuildOrganizePrompt(data AggregatedData) (string, error) {
	submission, err := compactJSON(data.CustomerSubmission)
	if err != nil {
		return "", fmt.Errorf("customer submission: %w", err)
	}
	report, err := compactJSON(data.Report)
	if err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	market, err := json.Marshal(data.Market)
	if err != nil {
		return "", fmt.Errorf("market record: %w", err)
	}

	var b strings.Builder
	b.WriteString("Sort the relevant values from the three JSON sources below into categorized arrays. ")
	b.WriteString("Fill exactly four arrays, artist, title, price and customerAndOwnerName, and answer with JSON shaped like ")
	b.WriteString(`{ "artist": [], "title": [], "price": [], "customerAndOwnerName": [] }. `)
	b.WriteString("The sources may use different key names for the same meaning; put those values in the matching category. ")
	b.WriteString("Sources:\n")
	fmt.Fprintf(&b, "Source 1: %s\n", submission)
	fmt.Fprintf(&b, "Source 2: %s\n", report)
	fmt.Fprintf(&b, "Source 3: %s", market)
	return b.String(), nil
}

func compactJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}
