package bulk

import (
	"fmt"
	"math"
	"sort"

	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/repository"
)

const topKeywordLimit = 10

const (
	AreaOpening  = "Call Opening"
	AreaClosing  = "Call Closing"
	AreaSpeaking = "Speaking Quality"
)

// Summarize aggregates the in-memory results of a batch. Averages and
// sentiment statistics only consider files that were analyzed successfully.
func Summarize(results []repository.BulkFileResult) repository.BatchSummary {
	var s repository.BatchSummary
	var sumOverall, sumOpening, sumClosing, sumSpeaking float64
	keywordCounts := make(map[string]int)

	for _, r := range results {
		if r.Status != repository.FileStatusCompleted {
			s.FailedFiles++
			continue
		}
		s.CompletedFiles++
		sumOverall += r.OverallScore
		sumOpening += r.OpeningScore
		sumClosing += r.ClosingScore
		sumSpeaking += r.SpeakingQualityScore
		switch r.Sentiment {
		case "positive":
			s.SentimentCounts.Positive++
		case "negative":
			s.SentimentCounts.Negative++
		default:
			s.SentimentCounts.Neutral++
		}
		for _, k := range r.Keywords {
			keywordCounts[k]++
		}
	}

	s.Status = repository.BulkStatusFailed
	s.TopKeywords = []repository.KeywordCount{}
	s.Recommendations = []string{}
	if s.CompletedFiles == 0 {
		if s.FailedFiles > 0 {
			s.Recommendations = append(s.Recommendations,
				"No file in this batch could be analyzed. Check that the recordings are valid audio and re-upload them.")
		}
		return s
	}

	s.Status = repository.BulkStatusCompleted
	n := float64(s.CompletedFiles)
	s.AverageOverallScore = analysis.Round1(sumOverall / n)
	s.AverageOpeningScore = analysis.Round1(sumOpening / n)
	s.AverageClosingScore = analysis.Round1(sumClosing / n)
	s.AverageSpeakingScore = analysis.Round1(sumSpeaking / n)
	s.SentimentPercentages = sentimentPercentages(s.SentimentCounts, s.CompletedFiles)
	s.TopKeywords = topKeywords(keywordCounts, topKeywordLimit)
	s.StrongestArea, s.WeakestArea = strongestAndWeakest(s)
	s.Recommendations = recommendations(s)
	return s
}

// sentimentPercentages rounds to one decimal using largest remainders so the
// three values always add up to 100.
func sentimentPercentages(c repository.SentimentCounts, total int) repository.SentimentPercentages {
	counts := []int{c.Positive, c.Neutral, c.Negative}
	tenths := make([]int, len(counts))
	remainders := make([]float64, len(counts))
	assigned := 0
	for i, v := range counts {
		exact := float64(v) * 1000 / float64(total)
		tenths[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(tenths[i])
		assigned += tenths[i]
	}
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for i := 0; assigned < 1000; i++ {
		tenths[order[i%len(order)]]++
		assigned++
	}
	return repository.SentimentPercentages{
		Positive: float64(tenths[0]) / 10,
		Neutral:  float64(tenths[1]) / 10,
		Negative: float64(tenths[2]) / 10,
	}
}

func topKeywords(counts map[string]int, limit int) []repository.KeywordCount {
	out := make([]repository.KeywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, repository.KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type areaScore struct {
	name  string
	score float64
}

func areaScores(s repository.BatchSummary) []areaScore {
	return []areaScore{
		{AreaOpening, s.AverageOpeningScore},
		{AreaClosing, s.AverageClosingScore},
		{AreaSpeaking, s.AverageSpeakingScore},
	}
}

// strongestAndWeakest picks the highest and lowest aspect; ties keep the
// first area in display order.
func strongestAndWeakest(s repository.BatchSummary) (string, string) {
	areas := areaScores(s)
	best, worst := areas[0], areas[0]
	for _, a := range areas[1:] {
		if a.score > best.score {
			best = a
		}
		if a.score < worst.score {
			worst = a
		}
	}
	return best.name, worst.name
}

func recommendations(s repository.BatchSummary) []string {
	var recs []string
	var weakestScore float64
	for _, a := range areaScores(s) {
		if a.name == s.WeakestArea {
			weakestScore = a.score
		}
	}

	if weakestScore < 7 {
		recs = append(recs, fmt.Sprintf("Focus coaching on %s: the team averages %.1f/10 in this area.", s.WeakestArea, weakestScore))
	}
	if s.SentimentPercentages.Negative >= 30 {
		recs = append(recs, fmt.Sprintf("%.1f%% of calls had negative sentiment. Review escalation handling and de-escalation techniques.", s.SentimentPercentages.Negative))
	}
	if s.FailedFiles > 0 {
		recs = append(recs, fmt.Sprintf("%d file(s) could not be analyzed. Check audio quality and re-upload them.", s.FailedFiles))
	}
	if len(s.TopKeywords) > 0 && s.TopKeywords[0].Count > 1 {
		k := s.TopKeywords[0]
		recs = append(recs, fmt.Sprintf("%q came up in %d calls. Consider targeted training or knowledge base content on this topic.", k.Keyword, k.Count))
	}
	if s.AverageOverallScore >= 8 {
		recs = append(recs, fmt.Sprintf("Overall performance is strong. Share examples of %s from top calls with the wider team.", s.StrongestArea))
	}
	if len(recs) == 0 {
		recs = append(recs, fmt.Sprintf("Performance is steady. Keep reinforcing %s and monitor %s in upcoming batches.", s.StrongestArea, s.WeakestArea))
	}
	return recs
}
