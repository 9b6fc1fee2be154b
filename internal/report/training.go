package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

type TrainingScores struct {
	Overall         float64 `json:"overall"`
	Opening         float64 `json:"opening"`
	Closing         float64 `json:"closing"`
	SpeakingQuality float64 `json:"speakingQuality"`
}

// TrainingRecord is one analyzed call in the training dataset.
type TrainingRecord struct {
	ID               string         `json:"id"`
	FileName         string         `json:"fileName"`
	Language         string         `json:"language"`
	Transcription    string         `json:"transcription"`
	Translation      string         `json:"translation"`
	Sentiment        string         `json:"sentiment"`
	SentimentScore   float64        `json:"sentimentScore"`
	Summary          string         `json:"summary"`
	CoachingFeedback string         `json:"coachingFeedback"`
	Keywords         []string       `json:"keywords"`
	Strengths        []string       `json:"strengths"`
	Improvements     []string       `json:"improvements"`
	Scores           TrainingScores `json:"scores"`
}

type TrainingMetadata struct {
	BulkSessionID  string    `json:"bulkSessionId"`
	SessionName    string    `json:"sessionName"`
	SourceLanguage string    `json:"sourceLanguage"`
	RecordCount    int       `json:"recordCount"`
	ExportedAt     time.Time `json:"exportedAt"`
}

type TrainingDataset struct {
	Metadata TrainingMetadata `json:"metadata"`
	Records  []TrainingRecord `json:"records"`
}

var trainingCSVHeader = []string{
	"id", "file_name", "language", "transcription", "translation", "sentiment", "sentiment_score",
	"summary", "coaching_feedback", "keywords", "strengths", "improvements",
	"overall_score", "opening_score", "closing_score", "speaking_quality_score",
}

// TrainingRecords keeps only completed files, in file order.
func TrainingRecords(s repository.BulkAnalysisSession, results []repository.BulkFileResult) []TrainingRecord {
	records := make([]TrainingRecord, 0, len(results))
	for _, r := range results {
		if r.Status != repository.FileStatusCompleted {
			continue
		}
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", s.ID, r.FileIndex)
		}
		records = append(records, TrainingRecord{
			ID:               id,
			FileName:         r.FileName,
			Language:         s.SourceLanguage,
			Transcription:    r.Transcription,
			Translation:      r.Translation,
			Sentiment:        r.Sentiment,
			SentimentScore:   r.SentimentScore,
			Summary:          r.Summary,
			CoachingFeedback: r.CoachingFeedback,
			Keywords:         nonNil(r.Keywords),
			Strengths:        nonNil(r.Strengths),
			Improvements:     nonNil(r.Improvements),
			Scores: TrainingScores{
				Overall:         r.OverallScore,
				Opening:         r.OpeningScore,
				Closing:         r.ClosingScore,
				SpeakingQuality: r.SpeakingQualityScore,
			},
		})
	}
	return records
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func TrainingJSON(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	records := TrainingRecords(s, results)
	dataset := TrainingDataset{
		Metadata: TrainingMetadata{
			BulkSessionID:  s.ID,
			SessionName:    s.SessionName,
			SourceLanguage: s.SourceLanguage,
			RecordCount:    len(records),
			ExportedAt:     time.Now().UTC(),
		},
		Records: records,
	}
	b, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode training json: %w", err)
	}
	return b, nil
}

func TrainingCSV(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(trainingCSVHeader); err != nil {
		return nil, err
	}
	for _, r := range TrainingRecords(s, results) {
		row := []string{
			r.ID,
			r.FileName,
			r.Language,
			r.Transcription,
			r.Translation,
			r.Sentiment,
			formatFloat(r.SentimentScore, 2),
			r.Summary,
			r.CoachingFeedback,
			strings.Join(r.Keywords, "|"),
			strings.Join(r.Strengths, "|"),
			strings.Join(r.Improvements, "|"),
			formatFloat(r.Scores.Overall, 1),
			formatFloat(r.Scores.Opening, 1),
			formatFloat(r.Scores.Closing, 1),
			formatFloat(r.Scores.SpeakingQuality, 1),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write training csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush training csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
