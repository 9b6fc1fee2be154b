package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/callinsight/internal/config"
	"github.com/joho/godotenv"
)

const numberedGeminiKeySlots = 9

type envConfig struct {
	Env             string        `env:"ENV" envDefault:"production"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB" envDefault:"50"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	AuthTokens map[string]string `env:"AUTH_TOKENS,required" envSeparator:"," envKeyValSeparator:"="`

	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiAPIKeys    []string      `env:"GEMINI_API_KEYS" envSeparator:","`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	AIRequestTimeout time.Duration `env:"AI_REQUEST_TIMEOUT" envDefault:"2m"`

	TranscriptionProvider      string `env:"TRANSCRIPTION_PROVIDER" envDefault:"gemini"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`

	BulkInterFileDelay time.Duration `env:"BULK_INTER_FILE_DELAY" envDefault:"1s"`

	KafkaBrokers             []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopicFileCompleted  string   `env:"KAFKA_TOPIC_FILE_COMPLETED" envDefault:"callinsight.bulk.file-completed"`
	KafkaTopicBatchCompleted string   `env:"KAFKA_TOPIC_BATCH_COMPLETED" envDefault:"callinsight.bulk.batch-completed"`

	BatchWebhookURL  string `env:"BATCH_WEBHOOK_URL"`
	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`

	ReaperSchedule   string        `env:"REAPER_SCHEDULE" envDefault:"@every 15m"`
	ReaperStaleAfter time.Duration `env:"REAPER_STALE_AFTER" envDefault:"6h"`
}

func Load() (*internalconfig.Config, error) {
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		LogLevel:                   raw.LogLevel,
		HTTPAddr:                   raw.HTTPAddr,
		ShutdownTimeout:            raw.ShutdownTimeout,
		MaxUploadBytes:             raw.MaxUploadMB << 20,
		DatabaseURL:                raw.DatabaseURL,
		AuthTokens:                 raw.AuthTokens,
		GeminiAPIKeys:              collectGeminiKeys(raw.GeminiAPIKey, raw.GeminiAPIKeys, os.Getenv),
		GeminiModel:                raw.GeminiModel,
		AIRequestTimeout:           raw.AIRequestTimeout,
		TranscriptionProvider:      raw.TranscriptionProvider,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		BulkInterFileDelay:         raw.BulkInterFileDelay,
		KafkaBrokers:               raw.KafkaBrokers,
		KafkaTopicFileCompleted:    raw.KafkaTopicFileCompleted,
		KafkaTopicBatchCompleted:   raw.KafkaTopicBatchCompleted,
		BatchWebhookURL:            raw.BatchWebhookURL,
		DiscordToken:               raw.DiscordToken,
		DiscordChannelID:           raw.DiscordChannelID,
		ReaperSchedule:             raw.ReaperSchedule,
		ReaperStaleAfter:           raw.ReaperStaleAfter,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// collectGeminiKeys gathers keys in priority order: the primary key, the comma
// separated list, then the numbered slots. Duplicates are removed later by the
// key pool, so order is all that matters here.
func collectGeminiKeys(primary string, list []string, getenv func(string) string) []string {
	var keys []string
	add := func(k string) {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	add(primary)
	for _, k := range list {
		add(k)
	}
	for i := 1; i <= numberedGeminiKeySlots; i++ {
		add(getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)))
	}
	return keys
}
