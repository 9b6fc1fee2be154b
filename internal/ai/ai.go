// Package ai declares the generative AI operations the analysis pipeline
// depends on, plus the key rotation and response parsing shared by every
// provider.
package ai

import "context"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Audio is an uploaded recording passed inline to the provider.
type Audio struct {
	FileName string
	MIMEType string
	Data     []byte
}

// CallAnalysis is the structured evaluation of an English transcript.
// Scores are on a 0..10 scale; SentimentScore is in -1..1.
type CallAnalysis struct {
	Sentiment            Sentiment `json:"sentiment"`
	SentimentScore       float64   `json:"sentimentScore"`
	Summary              string    `json:"summary"`
	CoachingFeedback     string    `json:"coachingFeedback"`
	OpeningScore         float64   `json:"openingScore"`
	ClosingScore         float64   `json:"closingScore"`
	SpeakingQualityScore float64   `json:"speakingQualityScore"`
	Strengths            []string  `json:"strengths"`
	Improvements         []string  `json:"improvements"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, languageCode string) (string, error)
}

type TextAnalyzer interface {
	Translate(ctx context.Context, text, sourceLanguage string) (string, error)
	Analyze(ctx context.Context, englishTranscript string) (*CallAnalysis, error)
	ExtractKeywords(ctx context.Context, englishTranscript string) ([]string, error)
}
