package analysis

import (
	"math"

	"github.com/foxseedlab/callinsight/internal/ai"
)

const (
	aspectWeight    = 0.7
	sentimentWeight = 0.3
)

func sentimentPoints(s ai.Sentiment) float64 {
	switch s {
	case ai.SentimentPositive:
		return 10
	case ai.SentimentNegative:
		return 3
	default:
		return 6
	}
}

// OverallScore blends the three coaching aspects with the call sentiment into
// a 0..10 score rounded to one decimal.
func OverallScore(opening, closing, speaking float64, sentiment ai.Sentiment) float64 {
	mean := (opening + closing + speaking) / 3
	score := aspectWeight*mean + sentimentWeight*sentimentPoints(sentiment)
	return Round1(math.Max(0, math.Min(10, score)))
}

func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
