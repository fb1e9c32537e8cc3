// Package summarize hands extracted text to an LLM backend with staged
// degradation, so the pipeline never blocks on summarizer availability.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/metrics"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// TruncationMarker is appended whenever input text is hard-cut to the
// configured budget.
const TruncationMarker = " [truncated]"

// Chain stage names recorded for diagnostics.
const (
	StageStructured = "structured"
	StagePlain      = "plain"
	StageDegraded   = "degraded"
)

// ChatClient is the slice of the OpenAI client the chain depends on.
// *openai.Client satisfies it; tests substitute fakes.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config controls chain behavior.
type Config struct {
	// Model used for the structured first stage.
	Model string
	// FallbackModel used for the plain-text second stage; usually cheaper.
	FallbackModel string
	// MaxInputChars bounds the text sent to any stage.
	MaxInputChars int
	// MaxTokens for the structured stage; the plain stage uses half.
	MaxTokens int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	if c.FallbackModel == "" {
		c.FallbackModel = c.Model
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 12000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return c
}

// Chain implements scrape.Summarizer with three tiers: a structured call, a
// plain extraction call, then the truncated raw text flagged degraded.
type Chain struct {
	client ChatClient
	cfg    Config
	logger *zap.Logger
}

// NewChain builds a Chain. A nil client is the explicit no-op configuration:
// every call degrades immediately to truncated raw text.
func NewChain(client ChatClient, cfg Config, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// structuredPayload mirrors the JSON shape requested from the model.
type structuredPayload struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics"`
	Sentiment string   `json:"sentiment"`
	Entities  []string `json:"entities"`
}

// Summarize runs the fallback chain. It never returns an error: backend
// failure surfaces only as Degraded=true on the result.
func (c *Chain) Summarize(ctx context.Context, text string, keywords []string) scrape.Summary {
	truncated := Truncate(text, c.cfg.MaxInputChars)

	if c.client != nil {
		if summary, err := c.structured(ctx, truncated, keywords); err == nil {
			metrics.SummarizerStage(StageStructured)
			return summary
		} else {
			c.logger.Warn("structured summarization failed", zap.Error(err))
		}

		if summary, err := c.plain(ctx, truncated, keywords); err == nil {
			metrics.SummarizerStage(StagePlain)
			return summary
		} else {
			c.logger.Warn("plain summarization failed", zap.Error(err))
		}
	}

	metrics.SummarizerStage(StageDegraded)
	return scrape.Summary{Text: truncated, Degraded: true}
}

func (c *Chain) structured(ctx context.Context, text string, keywords []string) (scrape.Summary, error) {
	prompt := "Summarize the following web page text. Respond with a JSON object " +
		"containing: summary (string), key_points (array of strings), topics " +
		"(array of strings), sentiment (string), entities (array of strings)."
	if len(keywords) > 0 {
		prompt += " Give extra weight to these keywords: " + strings.Join(keywords, ", ") + "."
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("structured completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return scrape.Summary{}, fmt.Errorf("structured completion: empty choices")
	}

	var payload structuredPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return scrape.Summary{}, fmt.Errorf("parse structured response: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return scrape.Summary{}, fmt.Errorf("structured response missing summary")
	}

	return scrape.Summary{
		Text:      payload.Summary,
		KeyPoints: payload.KeyPoints,
		Topics:    payload.Topics,
		Sentiment: payload.Sentiment,
		Entities:  payload.Entities,
	}, nil
}

func (c *Chain) plain(ctx context.Context, text string, keywords []string) (scrape.Summary, error) {
	prompt := "Extract the key information from the following web page text as a " +
		"short plain-text summary."
	if len(keywords) > 0 {
		prompt += " Focus on: " + strings.Join(keywords, ", ") + "."
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.FallbackModel,
		MaxTokens: c.cfg.MaxTokens / 2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("plain completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return scrape.Summary{}, fmt.Errorf("plain completion: empty choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return scrape.Summary{}, fmt.Errorf("plain completion: empty content")
	}

	return scrape.Summary{Text: content}, nil
}

// Truncate hard-cuts text to maxChars, appending the truncation marker when
// a cut happens.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + TruncationMarker
}
