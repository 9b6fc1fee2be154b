// Package report renders a finished batch and its file results into
// downloadable documents.
package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

const reportTimeLayout = "2006-01-02 15:04:05"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Filename builds a download name such as "march-calls_summary.xlsx".
func Filename(s repository.BulkAnalysisSession, kind, ext string) string {
	base := strings.Trim(unsafeFilenameChars.ReplaceAllString(strings.ToLower(s.SessionName), "-"), "-.")
	if base == "" {
		base = "batch-" + shortID(s.ID)
	}
	return fmt.Sprintf("%s_%s.%s", base, kind, ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func safeEntryName(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_.")
	if name == "" {
		return "file"
	}
	return name
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(reportTimeLayout) + " UTC"
}

func formatElapsedHMS(ms int64) string {
	total := ms / 1000
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// SummaryText renders the plain text batch summary.
func SummaryText(s repository.BulkAnalysisSession, results []repository.BulkFileResult) (string, error) {
	var b strings.Builder
	finished := "-"
	if s.CompletedAt != nil {
		finished = formatTime(*s.CompletedAt)
	}

	lines := []string{
		"CALL ANALYSIS BATCH REPORT",
		strings.Repeat("=", 40),
		fmt.Sprintf("Batch: %s", s.SessionName),
		fmt.Sprintf("Batch ID: %s", s.ID),
		fmt.Sprintf("Language: %s", s.SourceLanguage),
		fmt.Sprintf("Status: %s", s.Status),
		fmt.Sprintf("Started: %s", formatTime(s.CreatedAt)),
		fmt.Sprintf("Finished: %s", finished),
		fmt.Sprintf("Files: %d total, %d analyzed, %d failed", s.TotalFiles, s.CompletedFiles, s.FailedFiles),
		"",
		"SCORES (0-10)",
		fmt.Sprintf("  Overall:          %.1f", s.AverageOverallScore),
		fmt.Sprintf("  Call Opening:     %.1f", s.AverageOpeningScore),
		fmt.Sprintf("  Call Closing:     %.1f", s.AverageClosingScore),
		fmt.Sprintf("  Speaking Quality: %.1f", s.AverageSpeakingScore),
		fmt.Sprintf("  Strongest area:   %s", orDash(s.StrongestArea)),
		fmt.Sprintf("  Weakest area:     %s", orDash(s.WeakestArea)),
		"",
		"SENTIMENT",
		fmt.Sprintf("  Positive: %d (%.1f%%)", s.SentimentCounts.Positive, s.SentimentPercentages.Positive),
		fmt.Sprintf("  Neutral:  %d (%.1f%%)", s.SentimentCounts.Neutral, s.SentimentPercentages.Neutral),
		fmt.Sprintf("  Negative: %d (%.1f%%)", s.SentimentCounts.Negative, s.SentimentPercentages.Negative),
		"",
		"TOP KEYWORDS",
	}
	if len(s.TopKeywords) == 0 {
		lines = append(lines, "  -")
	}
	for i, k := range s.TopKeywords {
		lines = append(lines, fmt.Sprintf("  %2d. %s (%d)", i+1, k.Keyword, k.Count))
	}
	lines = append(lines, "", "RECOMMENDATIONS")
	if len(s.Recommendations) == 0 {
		lines = append(lines, "  -")
	}
	for _, r := range s.Recommendations {
		lines = append(lines, "  - "+r)
	}
	lines = append(lines, "", "FILES")
	for _, r := range results {
		if r.Status == repository.FileStatusFailed {
			lines = append(lines, fmt.Sprintf("  #%d %s [failed] %s", r.FileIndex+1, r.FileName, orDash(r.ErrorMessage)))
			continue
		}
		lines = append(lines, fmt.Sprintf("  #%d %s [%s] score %.1f, %s, processed in %s",
			r.FileIndex+1, r.FileName, r.Status, r.OverallScore, orDash(r.Sentiment), formatElapsedHMS(r.ProcessingTimeMs)))
	}

	if _, err := b.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		return "", err
	}
	return b.String(), nil
}

// TranscriptText renders one file's transcript and translation.
func TranscriptText(r repository.BulkFileResult) string {
	lines := []string{
		fmt.Sprintf("File: %s", r.FileName),
		fmt.Sprintf("Sentiment: %s (%.2f)", orDash(r.Sentiment), r.SentimentScore),
		fmt.Sprintf("Overall score: %.1f", r.OverallScore),
		"",
		"TRANSCRIPT",
		orDash(r.Transcription),
		"",
		"ENGLISH TRANSLATION",
		orDash(r.Translation),
		"",
		"SUMMARY",
		orDash(r.Summary),
		"",
		"COACHING FEEDBACK",
		orDash(r.CoachingFeedback),
	}
	return strings.Join(lines, "\n") + "\n"
}
