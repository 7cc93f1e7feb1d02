package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"sheettrack/internal/sheet"
)

const (
	DefaultAnalystPrompt = "You are a professional data analyst. Summarize the provided JSON data concisely in a few bullet points. Focus on user activity, value trends, and status distributions."

	insightsRequest = "Analyze these new spreadsheet entries and provide a brief summary of trends or anomalies: "

	NoRowsMessage   = "No new rows to analyze."
	FallbackMessage = "Unable to generate insights at this time."
)

// Summary is the text produced for a batch of records.
type Summary struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Insights asks an LLM for a short trend summary of sheet rows.
type Insights struct {
	client       Client
	systemPrompt string
}

// NewInsights uses DefaultAnalystPrompt when systemPrompt is blank.
func NewInsights(client Client, systemPrompt string) *Insights {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultAnalystPrompt
	}
	return &Insights{client: client, systemPrompt: systemPrompt}
}

// Summarize makes exactly one call to the client. An empty completion is
// reported as FallbackMessage; transport errors are returned.
func (s *Insights) Summarize(ctx context.Context, rows []sheet.Record) (Summary, error) {
	if len(rows) == 0 {
		return Summary{Text: NoRowsMessage}, nil
	}

	messages, err := BuildInsightsPrompt(s.systemPrompt, rows)
	if err != nil {
		return Summary{}, err
	}

	resp, err := s.client.Generate(ctx, messages)
	if err != nil {
		return Summary{}, fmt.Errorf("generate insights: %w", err)
	}

	log.Printf("LLM insights [model=%s, rows=%d, tokens: prompt=%d, completion=%d, total=%d]",
		resp.Model, len(rows), resp.PromptTokens, resp.CompletionTokens, resp.TotalTokens)

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		text = FallbackMessage
	}
	return Summary{
		Text:             text,
		Model:            resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
	}, nil
}

// BuildInsightsPrompt embeds rows as JSON in the analyst request.
func BuildInsightsPrompt(systemPrompt string, rows []sheet.Record) ([]Message, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return []Message{
		{Role: RoleSystem, Content: systemPrompt},
		{Role: RoleUser, Content: insightsRequest + string(data)},
	}, nil
}
