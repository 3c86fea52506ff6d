package config

import (
	"time"
)

// LLMConfig represents the configuration for the analyzer provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// StoreConfig represents the configuration for the triage store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// ReassessConfig represents the configuration for the reassessment job
type ReassessConfig struct {
	Lookback   time.Duration
	BatchSize  int
	WriteDelta float64
}

// RetryConfig represents the configuration for the retry job
type RetryConfig struct {
	Cooldown    time.Duration
	MaxErrorAge time.Duration
	MaxPerRun   int
	ItemDelay   time.Duration
}

// ActionsConfig represents the configuration for action suggestions
type ActionsConfig struct {
	ArchiveMinCount       int
	RelationshipMinEmails int
	MaxSuggestions        int
}

// GateConfig represents the configuration for the SMTP tagging gate
type GateConfig struct {
	Enabled       bool
	ListenAddress string
	RelayAddress  string
	RelayPort     int
	RelayEnabled  bool
}

// SchedulerConfig represents the configuration for the interval scheduler
type SchedulerConfig struct {
	Enabled          bool
	ReassessInterval time.Duration
	RetryInterval    time.Duration
}

// GetLLM returns the analyzer provider configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetStore returns the triage store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetReassess returns the reassessment job configuration
func (c *Config) GetReassess() (ReassessConfig, error) {
	lookback, err := c.GetDuration("reassess.lookback")
	if err != nil {
		return ReassessConfig{}, err
	}
	return ReassessConfig{
		Lookback:   lookback,
		BatchSize:  c.GetInt("reassess.batch_size"),
		WriteDelta: c.GetFloat64("reassess.write_delta"),
	}, nil
}

// GetRetry returns the retry job configuration
func (c *Config) GetRetry() (RetryConfig, error) {
	cooldown, err := c.GetDuration("retry.cooldown")
	if err != nil {
		return RetryConfig{}, err
	}
	maxAge, err := c.GetDuration("retry.max_error_age")
	if err != nil {
		return RetryConfig{}, err
	}
	delay, err := c.GetDuration("retry.item_delay")
	if err != nil {
		return RetryConfig{}, err
	}
	return RetryConfig{
		Cooldown:    cooldown,
		MaxErrorAge: maxAge,
		MaxPerRun:   c.GetInt("retry.max_per_run"),
		ItemDelay:   delay,
	}, nil
}

// GetActions returns the action suggestion configuration
func (c *Config) GetActions() ActionsConfig {
	return ActionsConfig{
		ArchiveMinCount:       c.GetInt("actions.archive_min_count"),
		RelationshipMinEmails: c.GetInt("actions.relationship_min_emails"),
		MaxSuggestions:        c.GetInt("actions.max_suggestions"),
	}
}

// GetGate returns the SMTP gate configuration
func (c *Config) GetGate() GateConfig {
	return GateConfig{
		Enabled:       c.GetBool("gate.enabled"),
		ListenAddress: c.GetString("gate.listen_address"),
		RelayAddress:  c.GetString("gate.relay_address"),
		RelayPort:     c.GetInt("gate.relay_port"),
		RelayEnabled:  c.GetBool("gate.relay_enabled"),
	}
}

// GetScheduler returns the interval scheduler configuration
func (c *Config) GetScheduler() (SchedulerConfig, error) {
	reassess, err := c.GetDuration("scheduler.reassess_interval")
	if err != nil {
		return SchedulerConfig{}, err
	}
	retry, err := c.GetDuration("scheduler.retry_interval")
	if err != nil {
		return SchedulerConfig{}, err
	}
	return SchedulerConfig{
		Enabled:          c.GetBool("scheduler.enabled"),
		ReassessInterval: reassess,
		RetryInterval:    retry,
	}, nil
}
