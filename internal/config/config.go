package config

import (
	"fmt"
	"time"
)

const (
	TranscriptionProviderGemini      = "gemini"
	TranscriptionProviderCloudSpeech = "cloud_speech"
)

type Config struct {
	Env             string
	LogLevel        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64

	DatabaseURL string

	// AuthTokens maps a bearer token to the user id it authenticates.
	AuthTokens map[string]string

	GeminiAPIKeys    []string
	GeminiModel      string
	AIRequestTimeout time.Duration

	TranscriptionProvider      string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string

	BulkInterFileDelay time.Duration

	KafkaBrokers             []string
	KafkaTopicFileCompleted  string
	KafkaTopicBatchCompleted string

	BatchWebhookURL  string
	DiscordToken     string
	DiscordChannelID string

	ReaperSchedule   string
	ReaperStaleAfter time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if len(c.AuthTokens) == 0 {
		return fmt.Errorf("AUTH_TOKENS must contain at least one token=user pair")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("at least one Gemini API key is required (GEMINI_API_KEY, GEMINI_API_KEYS or GEMINI_API_KEY_1..9)")
	}
	switch c.TranscriptionProvider {
	case TranscriptionProviderGemini:
	case TranscriptionProviderCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when TRANSCRIPTION_PROVIDER=%s", TranscriptionProviderCloudSpeech)
		}
	default:
		return fmt.Errorf("TRANSCRIPTION_PROVIDER must be %q or %q, got %q", TranscriptionProviderGemini, TranscriptionProviderCloudSpeech, c.TranscriptionProvider)
	}
	if c.AIRequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT must be positive, got %s", c.AIRequestTimeout)
	}
	if c.BulkInterFileDelay < 0 {
		return fmt.Errorf("BULK_INTER_FILE_DELAY must not be negative, got %s", c.BulkInterFileDelay)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if c.ReaperStaleAfter <= 0 {
		return fmt.Errorf("REAPER_STALE_AFTER must be positive, got %s", c.ReaperStaleAfter)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "GEMINI_MODEL", value: c.GeminiModel},
		{name: "REAPER_SCHEDULE", value: c.ReaperSchedule},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}
