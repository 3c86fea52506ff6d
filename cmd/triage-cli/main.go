package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/inboxkit/mail-triage/internal/config"
	"github.com/inboxkit/mail-triage/internal/core"
	"github.com/inboxkit/mail-triage/internal/factory"
	"github.com/inboxkit/mail-triage/internal/logging"
	"github.com/inboxkit/mail-triage/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4", "OpenAI model name")

	// Triage flags
	analyze       = flag.Bool("analyze", false, "Run the LLM analyzer when the pre-filter does not skip")
	skipThreshold = flag.Float64("skip-threshold", 0.95, "Confidence threshold for learned-pattern skips")

	// Scoring preview flags
	baseUrgency = flag.Float64("base-urgency", 0, "Preview priority scoring with this base urgency (0 disables)")
	deadlineIn  = flag.Duration("deadline-in", 0, "Deadline offset from now for the scoring preview (0 means none)")
	tier        = flag.String("tier", "normal", "Relationship tier for the scoring preview (normal, high, vip)")
	ageDays     = flag.Int("age-days", 0, "Item age in days for the scoring preview")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var cfg *config.Config
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		cfg = createConfigFromFlags()
	}

	msg := readMessage(logger)

	// Run the cheap path
	preFilter := core.NewPreFilter(*skipThreshold, logger)
	detector := core.NewSenderTypeDetector(logger)

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", msg.Sender)
	fmt.Printf("Subject: %s\n", msg.Subject)
	fmt.Printf("Body length: %d bytes\n", len(msg.Body))

	startTime := time.Now()
	triage := &core.Triage{
		PreFilter:  preFilter.Classify(msg, nil),
		SenderType: detector.Detect(msg),
	}

	// Run the expensive path when requested and not skipped
	if *analyze && !triage.PreFilter.Skip() {
		triage.Analysis = runAnalyzer(cfg, logger, msg)
	}

	fmt.Printf("\n=== Triage ===\n")
	printJSON(map[string]interface{}{
		"decision":    triage.PreFilter.Decision,
		"category":    triage.PreFilter.Category,
		"confidence":  triage.PreFilter.Confidence,
		"provenance":  triage.PreFilter.Provenance,
		"signals":     triage.PreFilter.Signals,
		"sender_type": triage.SenderType,
	})
	if triage.Analysis != nil {
		fmt.Printf("\n=== Analysis ===\n")
		printJSON(triage.Analysis)
	}

	if *baseUrgency > 0 {
		printScorePreview()
	}

	fmt.Printf("\nProcessing time: %v\n", time.Since(startTime))
}

// readMessage parses an RFC 822 message from the input file or stdin
func readMessage(logger *zap.Logger) *core.Message {
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	parsed, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}
	bodyBytes, err := io.ReadAll(parsed.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}

	msg := &core.Message{
		ID:         "cli",
		Sender:     parsed.Header.Get("From"),
		Subject:    parsed.Header.Get("Subject"),
		Body:       string(bodyBytes),
		Headers:    map[string][]string(parsed.Header),
		ReceivedAt: time.Now(),
	}
	if from, err := mail.ParseAddress(msg.Sender); err == nil {
		msg.Sender = from.Address
		msg.SenderName = from.Name
	}
	return msg
}

// runAnalyzer builds the configured LLM client and classifies the
// message without any stored user context
func runAnalyzer(cfg *config.Config, logger *zap.Logger, msg *core.Message) *core.AnalysisOutcome {
	llmFactory := factory.NewLLMFactory(cfg, logger, utils.NewTextProcessor(logger))
	analyzer, err := llmFactory.CreateAnalyzer()
	if err != nil {
		logger.Fatal("Failed to create analyzer", zap.Error(err))
	}
	defer func() {
		if closer, ok := analyzer.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close analyzer", zap.Error(err))
			}
		}
	}()

	outcome, err := analyzer.AnalyzeMessage(context.Background(), msg, &core.UserContext{})
	if err != nil {
		logger.Fatal("Failed to analyze email", zap.Error(err))
	}
	return outcome
}

// printScorePreview computes a priority score from the preview flags
func printScorePreview() {
	scorer := core.NewScorer(core.DefaultScoringConfig())
	now := time.Now()

	var deadline *time.Time
	if *deadlineIn != 0 {
		d := now.Add(*deadlineIn)
		deadline = &d
	}
	createdAt := now.AddDate(0, 0, -*ageDays)
	multiplier := core.RelationshipTier(*tier).Multiplier()

	score := scorer.Score(*baseUrgency, deadline, createdAt, multiplier, now)

	fmt.Printf("\n=== Score Preview ===\n")
	fmt.Printf("Base urgency: %.2f\n", *baseUrgency)
	fmt.Printf("Deadline factor: %.2f\n", scorer.DeadlineFactor(deadline, now))
	fmt.Printf("Relationship multiplier: %.2f\n", multiplier)
	fmt.Printf("Staleness factor: %.2f\n", scorer.StalenessFactor(createdAt, now))
	fmt.Printf("Score: %.2f\n", score)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(out))
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)
	v.Set("triage.skip_confidence_threshold", *skipThreshold)

	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	return config.NewFromViper(v)
}
