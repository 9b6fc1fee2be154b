package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

var errEmptyResponse = errors.New("empty response from model")

type GeminiConfig struct {
	APIKeys        []string
	Model          string
	RequestTimeout time.Duration
}

// generateFunc performs one GenerateContent call with a single key and
// returns the response text.
type generateFunc func(ctx context.Context, key string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)

// Gemini implements both ai.Transcriber and ai.TextAnalyzer. Every call runs
// through the key pool, moving to the next key when one fails.
type Gemini struct {
	keys     []string
	model    string
	timeout  time.Duration
	catalog  *language.Catalog
	metrics  *metrics.Metrics
	log      *logger.Logger
	generate generateFunc

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGemini(cfg GeminiConfig, catalog *language.Catalog, m *metrics.Metrics, log *logger.Logger) *Gemini {
	g := &Gemini{
		keys:    ai.KeyPool(cfg.APIKeys),
		model:   cfg.Model,
		timeout: cfg.RequestTimeout,
		catalog: catalog,
		metrics: m,
		log:     log.Component("gemini"),
		clients: make(map[string]*genai.Client),
	}
	g.generate = g.generateWithClient
	return g
}

func (g *Gemini) clientFor(ctx context.Context, key string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[key]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.clients[key] = c
	return c, nil
}

func (g *Gemini) generateWithClient(ctx context.Context, key string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	client, err := g.clientFor(ctx, key)
	if err != nil {
		return "", err
	}
	result, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

func (g *Gemini) run(ctx context.Context, operation string, parts []*genai.Part, jsonResponse bool) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	var cfg *genai.GenerateContentConfig
	if jsonResponse {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	start := time.Now()
	onRotate := func(attempt int, err error) {
		g.metrics.RecordKeyRotation()
		g.log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"attempt":   attempt,
		}).Warn("gemini call failed; trying next API key")
	}
	text, err := ai.RotateKeys(ctx, g.keys, onRotate, func(ctx context.Context, key string) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		out, err := g.generate(callCtx, key, contents, cfg)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errEmptyResponse
		}
		return out, nil
	})
	g.metrics.RecordAICall(operation, err, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", operation, err)
	}
	return text, nil
}

func (g *Gemini) languageName(code string) string {
	if l, ok := g.catalog.Lookup(code); ok {
		return l.Name
	}
	return code
}

func (g *Gemini) Transcribe(ctx context.Context, audio ai.Audio, languageCode string) (string, error) {
	if len(audio.Data) == 0 {
		return "", fmt.Errorf("audio %q is empty", audio.FileName)
	}
	mimeType := audio.MIMEType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "audio/mpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromText(ai.TranscriptionPrompt(g.languageName(languageCode))),
		genai.NewPartFromBytes(audio.Data, mimeType),
	}
	text, err := g.run(ctx, "transcribe", parts, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (g *Gemini) Translate(ctx context.Context, text, sourceLanguage string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(ai.TranslationPrompt(g.languageName(sourceLanguage), text)),
	}
	out, err := g.run(ctx, "translate", parts, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g *Gemini) Analyze(ctx context.Context, englishTranscript string) (*ai.CallAnalysis, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(ai.AnalysisPrompt(englishTranscript)),
	}
	out, err := g.run(ctx, "analyze", parts, true)
	if err != nil {
		return nil, err
	}
	analysis, err := ai.ParseCallAnalysis(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	return analysis, nil
}

func (g *Gemini) ExtractKeywords(ctx context.Context, englishTranscript string) ([]string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(ai.KeywordsPrompt(englishTranscript)),
	}
	out, err := g.run(ctx, "keywords", parts, true)
	if err != nil {
		return nil, err
	}
	keywords, err := ai.ParseKeywords(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse keywords response: %w", err)
	}
	return keywords, nil
}
