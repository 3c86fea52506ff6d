package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/inboxkit/mail-triage/internal/adapters/openai"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// BedrockClient is an implementation of the Analyzer interface using Amazon Bedrock
type BedrockClient struct {
	client        *bedrockruntime.Client
	modelID       string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client *bedrockruntime.Client,
	modelID string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:        client,
		modelID:       modelID,
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
func (c *BedrockClient) AnalyzeMessage(ctx context.Context, msg *core.Message, userCtx *core.UserContext) (*core.AnalysisOutcome, error) {
	processedBody := c.textProcessor.ProcessText(msg.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat, openai.FormatUserContext(userCtx), msg.Sender, msg.Subject, processedBody)

	// Create the request based on the model
	var payload []byte
	var err error

	if c.isAnthropicModel() {
		// Anthropic Claude models
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               prompt,
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		// Amazon Titan models
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": prompt,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		// Default to a generic format
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      prompt,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	// Call Bedrock API
	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	responseText, err := c.extractResponseText(resp.Body)
	if err != nil {
		return nil, err
	}

	// Parse the LLM's JSON response
	var triageResponse openai.TriageResponse
	if err := json.Unmarshal([]byte(openai.ExtractJSON(responseText)), &triageResponse); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
	}

	return &core.AnalysisOutcome{
		Category:    core.Category(triageResponse.Category),
		Urgency:     core.ClampScore(triageResponse.Urgency),
		Confidence:  triageResponse.Confidence,
		Explanation: triageResponse.Explanation,
		AnalyzedAt:  time.Now(),
		ModelUsed:   c.modelID,
	}, nil
}

// extractResponseText pulls the generated text out of the
// model-specific response envelope
func (c *BedrockClient) extractResponseText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		// Anthropic Claude models
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		// Amazon Titan models
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	// Try a generic approach
	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}
	if genericResp.Output != "" {
		return genericResp.Output, nil
	}
	if genericResp.Text != "" {
		return genericResp.Text, nil
	}
	if genericResp.Response != "" {
		return genericResp.Response, nil
	}
	// Just use the raw response as a string
	return string(body), nil
}

// isAnthropicModel checks if the model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.modelID, "anthropic.claude")
}

// isAmazonTitanModel checks if the model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.modelID, "amazon.titan")
}
