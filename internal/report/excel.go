package report

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/xuri/excelize/v2"
)

const (
	SheetSummary     = "Summary"
	SheetFileResults = "File Results"
	SheetKeywords    = "Keywords"
	SheetCoaching    = "Coaching"
)

var fileResultHeader = []any{
	"#", "File", "Status", "Sentiment", "Sentiment Score", "Overall", "Opening", "Closing",
	"Speaking Quality", "Processing (s)", "Summary", "Error",
}

// Excel renders the batch as an xlsx workbook.
func Excel(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	for _, name := range []string{SheetFileResults, SheetKeywords, SheetCoaching} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %q: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	writers := []func(*excelize.File, int) error{
		func(f *excelize.File, style int) error { return writeSummarySheet(f, style, s) },
		func(f *excelize.File, style int) error { return writeFileResultsSheet(f, style, results) },
		func(f *excelize.File, style int) error { return writeKeywordsSheet(f, style, s) },
		func(f *excelize.File, style int) error { return writeCoachingSheet(f, style, results) },
	}
	for _, w := range writers {
		if err := w(f, bold); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, style, columns int) error {
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func writeSummarySheet(f *excelize.File, style int, s repository.BulkAnalysisSession) error {
	completedAt := "-"
	if s.CompletedAt != nil {
		completedAt = formatTime(*s.CompletedAt)
	}
	rows := [][]any{
		{"Field", "Value"},
		{"Batch", s.SessionName},
		{"Batch ID", s.ID},
		{"Language", s.SourceLanguage},
		{"Status", string(s.Status)},
		{"Started", formatTime(s.CreatedAt)},
		{"Finished", completedAt},
		{"Total Files", s.TotalFiles},
		{"Analyzed Files", s.CompletedFiles},
		{"Failed Files", s.FailedFiles},
		{"Average Overall Score", s.AverageOverallScore},
		{"Average Opening Score", s.AverageOpeningScore},
		{"Average Closing Score", s.AverageClosingScore},
		{"Average Speaking Quality", s.AverageSpeakingScore},
		{"Positive", fmt.Sprintf("%d (%.1f%%)", s.SentimentCounts.Positive, s.SentimentPercentages.Positive)},
		{"Neutral", fmt.Sprintf("%d (%.1f%%)", s.SentimentCounts.Neutral, s.SentimentPercentages.Neutral)},
		{"Negative", fmt.Sprintf("%d (%.1f%%)", s.SentimentCounts.Negative, s.SentimentPercentages.Negative)},
		{"Strongest Area", orDash(s.StrongestArea)},
		{"Weakest Area", orDash(s.WeakestArea)},
	}
	for i, r := range s.Recommendations {
		rows = append(rows, []any{fmt.Sprintf("Recommendation %d", i+1), r})
	}
	if err := writeRows(f, SheetSummary, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "B", "B", 60); err != nil {
		return err
	}
	return styleHeader(f, SheetSummary, style, 2)
}

func writeFileResultsSheet(f *excelize.File, style int, results []repository.BulkFileResult) error {
	rows := [][]any{fileResultHeader}
	for _, r := range results {
		rows = append(rows, []any{
			r.FileIndex + 1,
			r.FileName,
			string(r.Status),
			r.Sentiment,
			r.SentimentScore,
			r.OverallScore,
			r.OpeningScore,
			r.ClosingScore,
			r.SpeakingQualityScore,
			float64(r.ProcessingTimeMs) / 1000,
			r.Summary,
			r.ErrorMessage,
		})
	}
	if err := writeRows(f, SheetFileResults, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetFileResults, "B", "B", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetFileResults, "K", "L", 60); err != nil {
		return err
	}
	return styleHeader(f, SheetFileResults, style, len(fileResultHeader))
}

func writeKeywordsSheet(f *excelize.File, style int, s repository.BulkAnalysisSession) error {
	rows := [][]any{{"Rank", "Keyword", "Files"}}
	for i, k := range s.TopKeywords {
		rows = append(rows, []any{i + 1, k.Keyword, k.Count})
	}
	if err := writeRows(f, SheetKeywords, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetKeywords, "B", "B", 30); err != nil {
		return err
	}
	return styleHeader(f, SheetKeywords, style, 3)
}

func writeCoachingSheet(f *excelize.File, style int, results []repository.BulkFileResult) error {
	rows := [][]any{{"#", "File", "Coaching Feedback", "Strengths", "Improvements"}}
	for _, r := range results {
		if r.Status != repository.FileStatusCompleted {
			continue
		}
		rows = append(rows, []any{
			r.FileIndex + 1,
			r.FileName,
			r.CoachingFeedback,
			strings.Join(r.Strengths, "; "),
			strings.Join(r.Improvements, "; "),
		})
	}
	if err := writeRows(f, SheetCoaching, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetCoaching, "C", "E", 50); err != nil {
		return err
	}
	return styleHeader(f, SheetCoaching, style, 5)
}
