package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	openaiadapter "github.com/inboxkit/mail-triage/internal/adapters/openai"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is an implementation of the Analyzer interface using Google Gemini
type GeminiClient struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:        client,
		model:         model,
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
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AnalyzeMessage runs the expensive classification pass for one message
func (c *GeminiClient) AnalyzeMessage(ctx context.Context, msg *core.Message, userCtx *core.UserContext) (*core.AnalysisOutcome, error) {
	processedBody := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, openaiadapter.FormatUserContext(userCtx), msg.Sender, msg.Subject, processedBody)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to call Gemini API: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	var responseText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText += string(text)
		}
	}

	var triageResponse openaiadapter.TriageResponse
	if err := json.Unmarshal([]byte(openaiadapter.ExtractJSON(responseText)), &triageResponse); err != nil {
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

	c.logger.Debug("Gemini analysis complete",
		zap.String("message_id", msg.ID),
		zap.String("category", triageResponse.Category),
		zap.Float64("urgency", outcome.Urgency),
		zap.Float64("confidence", triageResponse.Confidence))

	return outcome, nil
}
