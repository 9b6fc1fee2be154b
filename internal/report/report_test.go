package report

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/xuri/excelize/v2"
)

func fixture() (repository.BulkAnalysisSession, []repository.BulkFileResult) {
	done := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	s := repository.BulkAnalysisSession{
		ID:             "0f8c2a4e-1111-2222-3333-444455556666",
		UserID:         "u1",
		SessionName:    "March Calls / Team A",
		SourceLanguage: "es",
		TotalFiles:     2,
		BatchSummary: repository.BatchSummary{
			Status:              repository.BulkStatusCompleted,
			CompletedFiles:      1,
			FailedFiles:         1,
			AverageOverallScore: 7.5,
			SentimentCounts:     repository.SentimentCounts{Positive: 1},
			SentimentPercentages: repository.SentimentPercentages{
				Positive: 100,
			},
			TopKeywords:     []repository.KeywordCount{{Keyword: "refund", Count: 1}},
			StrongestArea:   "Call Opening",
			WeakestArea:     "Call Closing",
			Recommendations: []string{"Practice closing the call."},
		},
		CreatedAt:   done.Add(-time.Hour),
		CompletedAt: &done,
	}
	results := []repository.BulkFileResult{
		{
			ID:        "r1",
			FileIndex: 0,
			FileName:  "call one.mp3",
			Status:    repository.FileStatusCompleted,
			AnalysisFields: repository.AnalysisFields{
				Transcription:    "Hola, gracias por llamar",
				Translation:      "Hello, thanks for calling",
				Sentiment:        "positive",
				SentimentScore:   0.8,
				Summary:          "Customer asked about a refund, with \"quotes\", and commas.",
				CoachingFeedback: "Confirm next steps.",
				Keywords:         []string{"refund"},
				Strengths:        []string{"greeting"},
				Improvements:     []string{"closing"},
				OverallScore:     7.5,
				OpeningScore:     9,
				ClosingScore:     5,
			},
			ProcessingTimeMs: 65000,
		},
		{
			FileIndex:    1,
			FileName:     "call two.mp3",
			Status:       repository.FileStatusFailed,
			ErrorMessage: "gemini transcribe: quota exceeded",
		},
	}
	return s, results
}

func TestFilename(t *testing.T) {
	s, _ := fixture()
	if got := Filename(s, "report", "xlsx"); got != "march-calls-team-a_report.xlsx" {
		t.Fatalf("unexpected filename %q", got)
	}
	s.SessionName = "   "
	if got := Filename(s, "summary", "txt"); got != "batch-0f8c2a4e_summary.txt" {
		t.Fatalf("unexpected fallback filename %q", got)
	}
}

func TestSummaryText(t *testing.T) {
	s, results := fixture()
	text, err := SummaryText(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"Batch: March Calls / Team A",
		"Files: 2 total, 1 analyzed, 1 failed",
		"Overall:          7.5",
		"Positive: 1 (100.0%)",
		"1. refund (1)",
		"- Practice closing the call.",
		"#1 call one.mp3 [completed] score 7.5, positive, processed in 00:01:05",
		"#2 call two.mp3 [failed] gemini transcribe: quota exceeded",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary text missing %q:\n%s", want, text)
		}
	}
}

func TestExcel_Sheets(t *testing.T) {
	s, results := fixture()
	b, err := Excel(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	want := []string{SheetSummary, SheetFileResults, SheetKeywords, SheetCoaching}
	if len(sheets) != len(want) {
		t.Fatalf("expected sheets %v, got %v", want, sheets)
	}
	for i := range want {
		if sheets[i] != want[i] {
			t.Fatalf("expected sheets %v, got %v", want, sheets)
		}
	}

	rows, err := f.GetRows(SheetFileResults)
	if err != nil {
		t.Fatalf("read file results: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[1][1] != "call one.mp3" || rows[2][2] != "failed" {
		t.Fatalf("unexpected file rows: %v", rows)
	}

	coaching, err := f.GetRows(SheetCoaching)
	if err != nil {
		t.Fatalf("read coaching: %v", err)
	}
	if len(coaching) != 2 {
		t.Fatalf("expected only completed files in coaching sheet, got %d rows", len(coaching))
	}

	name, err := f.GetCellValue(SheetSummary, "B2")
	if err != nil || name != s.SessionName {
		t.Fatalf("expected batch name in summary, got %q (%v)", name, err)
	}
	kw, err := f.GetCellValue(SheetKeywords, "B2")
	if err != nil || kw != "refund" {
		t.Fatalf("expected top keyword, got %q (%v)", kw, err)
	}
}

func TestHTML_EscapesContent(t *testing.T) {
	s, results := fixture()
	results[0].Summary = "<script>alert(1)</script>"
	b, err := HTML(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(b)
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Fatal("expected summary to be escaped")
	}
	for _, want := range []string{"March Calls / Team A", "call one.mp3", "Failed: gemini transcribe: quota exceeded", "Practice closing the call."} {
		if !strings.Contains(out, want) {
			t.Fatalf("html missing %q", want)
		}
	}
}

func TestTrainingJSON_OnlyCompletedFiles(t *testing.T) {
	s, results := fixture()
	b, err := TrainingJSON(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got TrainingDataset
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Metadata.RecordCount != 1 || len(got.Records) != 1 {
		t.Fatalf("expected one record, got %+v", got.Metadata)
	}
	r := got.Records[0]
	if r.ID != "r1" || r.Language != "es" || r.Scores.Opening != 9 {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestTrainingCSV(t *testing.T) {
	s, results := fixture()
	b, err := TrainingCSV(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d", len(rows))
	}
	if len(rows[1]) != len(trainingCSVHeader) {
		t.Fatalf("expected %d columns, got %d", len(trainingCSVHeader), len(rows[1]))
	}
	if rows[1][7] != results[0].Summary || rows[1][12] != "7.5" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}

func zipNames(t *testing.T, b []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		body, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = body
	}
	return out
}

func TestReportPackage(t *testing.T) {
	s, results := fixture()
	b, err := ReportPackage(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files := zipNames(t, b)
	for _, name := range []string{
		"march-calls-team-a_report.xlsx",
		"march-calls-team-a_report.html",
		"march-calls-team-a_summary.txt",
		"transcripts/001_call_one.mp3.txt",
	} {
		if _, ok := files[name]; !ok {
			t.Fatalf("zip missing %s; have %v", name, len(files))
		}
	}
	if len(files) != 4 {
		t.Fatalf("expected no transcript for the failed file, got %d entries", len(files))
	}
	if !strings.Contains(string(files["transcripts/001_call_one.mp3.txt"]), "Hello, thanks for calling") {
		t.Fatal("expected translation in transcript entry")
	}
}

func TestTrainingPackage(t *testing.T) {
	s, results := fixture()
	b, err := TrainingPackage(s, results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files := zipNames(t, b)
	if len(files) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(files))
	}
	readme, ok := files["README.md"]
	if !ok || !strings.Contains(string(readme), "Records: 1") {
		t.Fatalf("unexpected readme: %s", readme)
	}
}
