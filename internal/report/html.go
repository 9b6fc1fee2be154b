package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

//go:embed templates/report.html.tmpl
var reportTemplateSource string

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"score":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"pct":     func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"seconds": func(ms int64) string { return formatElapsedHMS(ms) },
	"join":    strings.Join,
	"inc":     func(i int) int { return i + 1 },
	"when":    formatTime,
	"dash":    orDash,
}).Parse(reportTemplateSource))

type htmlView struct {
	Session     repository.BulkAnalysisSession
	Results     []repository.BulkFileResult
	Finished    string
	GeneratedAt time.Time
}

// HTML renders a printable report. Browsers save it as PDF.
func HTML(s repository.BulkAnalysisSession, results []repository.BulkFileResult) ([]byte, error) {
	view := htmlView{Session: s, Results: results, Finished: "-", GeneratedAt: time.Now()}
	if s.CompletedAt != nil {
		view.Finished = formatTime(*s.CompletedAt)
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}
