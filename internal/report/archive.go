package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

const trainingReadme = `# Call analysis training dataset

Batch: %s
Batch ID: %s
Language: %s
Records: %d

Files
- %s: full dataset with metadata and one record per analyzed call.
- %s: the same records flattened to one row per call. List columns use "|" as separator.

Failed files are not included.
`

type zipEntry struct {
	name string
	body []byte
}

func writeZip(entries []zipEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: now})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.body); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// ReportPackage bundles the workbook, the HTML and text reports and one
// transcript per analyzed file.
func ReportPackage(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	xlsx, err := Excel(s, results)
	if err != nil {
		return nil, err
	}
	html, err := HTML(s, results)
	if err != nil {
		return nil, err
	}
	text, err := SummaryText(s, results)
	if err != nil {
		return nil, err
	}

	entries := []zipEntry{
		{name: Filename(s, "report", "xlsx"), body: xlsx},
		{name: Filename(s, "report", "html"), body: html},
		{name: Filename(s, "summary", "txt"), body: []byte(text)},
	}
	for _, r := range results {
		if r.Status != repository.FileStatusCompleted {
			continue
		}
		name := fmt.Sprintf("transcripts/%03d_%s.txt", r.FileIndex+1, safeEntryName(r.FileName))
		entries = append(entries, zipEntry{name: name, body: []byte(TranscriptText(r))})
	}
	return writeZip(entries)
}

// TrainingPackage bundles the training JSON and CSV with a README.
func TrainingPackage(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	jsonBody, err := TrainingJSON(s, results)
	if err != nil {
		return nil, err
	}
	csvBody, err := TrainingCSV(s, results)
	if err != nil {
		return nil, err
	}
	jsonName := Filename(s, "training", "json")
	csvName := Filename(s, "training", "csv")
	readme := fmt.Sprintf(trainingReadme, s.SessionName, s.ID, s.SourceLanguage,
		len(TrainingRecords(s, results)), jsonName, csvName)

	return writeZip([]zipEntry{
		{name: jsonName, body: jsonBody},
		{name: csvName, body: csvBody},
		{name: "README.md", body: []byte(readme)},
	})
}
