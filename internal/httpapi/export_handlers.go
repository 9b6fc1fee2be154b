package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/foxseedlab/callinsight/internal/report"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/go-chi/chi/v5"
)

type exportFormat struct {
	kind        string
	ext         string
	contentType string
	render      func(repository.BulkAnalysisSession, []repository.BulkFileResult) ([]byte, error)
}

var exportFormats = map[string]exportFormat{
	"excel": {
		kind:        "report",
		ext:         "xlsx",
		contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		render:      report.Excel,
	},
	"pdf": {
		kind:        "report",
		ext:         "html",
		contentType: "text/html; charset=utf-8",
		render:      report.HTML,
	},
	"zip": {
		kind:        "report",
		ext:         "zip",
		contentType: "application/zip",
		render:      report.ReportPackage,
	},
	"training-json": {
		kind:        "training",
		ext:         "json",
		contentType: "application/json",
		render:      report.TrainingJSON,
	},
	"training-csv": {
		kind:        "training",
		ext:         "csv",
		contentType: "text/csv; charset=utf-8",
		render:      report.TrainingCSV,
	},
	"training-package": {
		kind:        "training",
		ext:         "zip",
		contentType: "application/zip",
		render:      report.TrainingPackage,
	},
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "format")
	format, ok := exportFormats[name]
	if !ok {
		s.writeError(w, r, invalid("format", fmt.Sprintf("unknown export format %q", name)))
		return
	}
	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.repo.ListBulkFileResults(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := format.render(*session, results)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("render %s export: %w", name, err))
		return
	}

	disposition := "attachment"
	if name == "pdf" {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", format.contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, report.Filename(*session, format.kind, format.ext)))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
