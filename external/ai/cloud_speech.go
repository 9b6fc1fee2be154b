package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

// CloudSpeechTranscriber transcribes uploads with the synchronous Speech v2
// Recognize call. Container formats are decoded by the service.
type CloudSpeechTranscriber struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
	catalog         *language.Catalog
	metrics         *metrics.Metrics
	log             *logger.Logger
}

func NewCloudSpeechTranscriber(cfg CloudSpeechConfig, catalog *language.Catalog, m *metrics.Metrics, log *logger.Logger) ai.Transcriber {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	return &CloudSpeechTranscriber{
		projectID:       cfg.ProjectID,
		credentialsJSON: cfg.CredentialsJSON,
		location:        location,
		model:           strings.TrimSpace(cfg.Model),
		catalog:         catalog,
		metrics:         m,
		log:             log.Component("cloud_speech"),
	}
}

func (t *CloudSpeechTranscriber) speechLocale(code string) string {
	if l, ok := t.catalog.Lookup(code); ok {
		return l.SpeechLocale
	}
	return code
}

func (t *CloudSpeechTranscriber) Transcribe(ctx context.Context, audio ai.Audio, languageCode string) (text string, err error) {
	if len(audio.Data) == 0 {
		return "", fmt.Errorf("audio %q is empty", audio.FileName)
	}
	locale := t.speechLocale(languageCode)
	t.log.WithFields(logrus.Fields{
		"file":     audio.FileName,
		"location": t.location,
		"language": locale,
		"model":    t.model,
	}).Info("starting cloud speech recognition")

	start := time.Now()
	defer func() {
		t.metrics.RecordAICall("transcribe", err, time.Since(start).Seconds())
	}()

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(t.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return "", fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if t.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", t.location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = client.Close()
	}()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", t.projectID, t.location),
		Config: &speechpb.RecognitionConfig{
			Model:         t.model,
			LanguageCodes: []string{locale},
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Features: &speechpb.RecognitionFeatures{
				EnableAutomaticPunctuation: true,
			},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: audio.Data},
	})
	if err != nil {
		return "", describeSpeechError(err)
	}

	text = joinRecognitionResults(resp.GetResults())
	if text == "" {
		return "", fmt.Errorf("cloud speech returned no transcript for %q", audio.FileName)
	}
	return text, nil
}

func joinRecognitionResults(results []*speechpb.SpeechRecognitionResult) string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		if line := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func describeSpeechError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("cloud speech recognize: %w", err)
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("cloud speech rejected the audio: %s: %w", st.Message(), err)
	case codes.ResourceExhausted:
		return fmt.Errorf("cloud speech quota exhausted: %w", err)
	default:
		return fmt.Errorf("cloud speech recognize (%s): %w", st.Code(), err)
	}
}
