package ai

import (
	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/foxseedlab/callinsight/internal/config"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Gemini, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewGemini(GeminiConfig{
			APIKeys:        c.GeminiAPIKeys,
			Model:          c.GeminiModel,
			RequestTimeout: c.AIRequestTimeout,
		},
			do.MustInvoke[*language.Catalog](i),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*logger.Logger](i),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (ai.TextAnalyzer, error) {
		return do.MustInvoke[*Gemini](i), nil
	})

	do.Provide(injector, func(i do.Injector) (ai.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.TranscriptionProvider == config.TranscriptionProviderCloudSpeech {
			return NewCloudSpeechTranscriber(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
			},
				do.MustInvoke[*language.Catalog](i),
				do.MustInvoke[*metrics.Metrics](i),
				do.MustInvoke[*logger.Logger](i),
			), nil
		}
		return do.MustInvoke[*Gemini](i), nil
	})
}
