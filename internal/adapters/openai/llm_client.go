package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the Analyzer interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// TriageResponse represents the structured response from the LLM
type TriageResponse struct {
	Category    string  `json:"category"`
	Urgency     float64 `json:"urgency"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are an email triage system. Classify the following email and rate its urgency.
Respond with a JSON object containing:
- category: one of "work", "personal", "finance", "shopping", "travel", "newsletter", "marketing", "social", "notification", "opportunity", "other"
- urgency: number between 1 and 10 (higher means the user should see it sooner)
- confidence: number between 0 and 1 (how confident you are in the classification)
- explanation: string (brief explanation of the classification)

Known correspondents of the user:
%s

Email:
From: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// AnalyzeMessage runs the expensive classification pass for one message
func (c *OpenAIClient) AnalyzeMessage(ctx context.Context, msg *core.Message, userCtx *core.UserContext) (*core.AnalysisOutcome, error) {
	processedBody := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, FormatUserContext(userCtx), msg.Sender, msg.Subject, processedBody)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email triage system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI API")
	}

	responseText := resp.Choices[0].Message.Content

	var triageResponse TriageResponse
	if err := json.Unmarshal([]byte(ExtractJSON(responseText)), &triageResponse); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	outcome := &core.AnalysisOutcome{
		Category:    core.Category(triageResponse.Category),
		Urgency:     core.ClampScore(triageResponse.Urgency),
		Confidence:  triageResponse.Confidence,
		Explanation: triageResponse.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   c.modelName,
	}

	c.logger.Debug("OpenAI analysis complete",
		zap.String("message_id", msg.ID),
		zap.String("category", triageResponse.Category),
		zap.Float64("urgency", outcome.Urgency),
		zap.Float64("confidence", triageResponse.Confidence))

	return outcome, nil
}

// FormatUserContext renders the relationship context block for the
// prompt. Returns a placeholder line when the user has no tracked
// relationships.
func FormatUserContext(userCtx *core.UserContext) string {
	if userCtx == nil || len(userCtx.Relationships) == 0 {
		return "(none on record)"
	}
	var b strings.Builder
	for _, rel := range userCtx.Relationships {
		fmt.Fprintf(&b, "- %s <%s> (priority: %s)\n", rel.Name, rel.Email, rel.Tier)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExtractJSON trims any prose surrounding the first JSON object in the
// response text.
func ExtractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
