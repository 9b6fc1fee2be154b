package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// MaxKeywords caps the keywords kept per call.
const MaxKeywords = 15

var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractJSON returns the first balanced JSON value that starts with open
// ('{' or '['), skipping markdown fences and surrounding prose.
func ExtractJSON(s string, open byte) string {
	if s == "" {
		return ""
	}
	var closer byte
	switch open {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```JSON", "```", "`json"} {
		s = strings.ReplaceAll(s, r, "")
	}

	for start := strings.IndexByte(s, open); start != -1; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case open:
				depth++
			case closer:
				depth--
			}
			if depth == 0 {
				candidate := strings.TrimSpace(s[start : i+1])
				if json.Valid([]byte(candidate)) {
					return candidate
				}
				break
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next == -1 {
			break
		}
		start += next + 1
	}
	return ""
}

// ParseCallAnalysis decodes the analyzer response and normalizes its fields.
func ParseCallAnalysis(raw string) (*CallAnalysis, error) {
	body := ExtractJSON(raw, '{')
	if body == "" {
		return nil, ErrNoJSON
	}
	var a CallAnalysis
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return nil, fmt.Errorf("decode call analysis: %w", err)
	}
	a.Sentiment = NormalizeSentiment(string(a.Sentiment))
	a.SentimentScore = clamp(a.SentimentScore, -1, 1)
	a.OpeningScore = clamp(a.OpeningScore, 0, 10)
	a.ClosingScore = clamp(a.ClosingScore, 0, 10)
	a.SpeakingQualityScore = clamp(a.SpeakingQualityScore, 0, 10)
	a.Summary = strings.TrimSpace(a.Summary)
	a.CoachingFeedback = strings.TrimSpace(a.CoachingFeedback)
	return &a, nil
}

// ParseKeywords accepts either a JSON array of strings or an object with a
// "keywords" array.
func ParseKeywords(raw string) ([]string, error) {
	var words []string
	if body := ExtractJSON(raw, '['); body != "" {
		if err := json.Unmarshal([]byte(body), &words); err != nil {
			words = nil
		}
	}
	if words == nil {
		body := ExtractJSON(raw, '{')
		if body == "" {
			return nil, ErrNoJSON
		}
		var wrapped struct {
			Keywords []string `json:"keywords"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("decode keywords: %w", err)
		}
		words = wrapped.Keywords
	}
	return NormalizeKeywords(words), nil
}

// NormalizeKeywords lowercases, trims and dedupes, keeping at most MaxKeywords.
func NormalizeKeywords(words []string) []string {
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == MaxKeywords {
			break
		}
	}
	return out
}

func NormalizeSentiment(s string) Sentiment {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, "pos"):
		return SentimentPositive
	case strings.HasPrefix(s, "neg"):
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
