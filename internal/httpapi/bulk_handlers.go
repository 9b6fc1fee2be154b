package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

func (s *Server) ownedBulkSession(ctx context.Context, id string) (*repository.BulkAnalysisSession, error) {
	session, err := s.repo.GetBulkSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userIDFrom(ctx) {
		return nil, errForbidden
	}
	return session, nil
}

func (s *Server) handleCreateBulkSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionName    string `json:"sessionName"`
		SourceLanguage string `json:"sourceLanguage"`
		TotalFiles     int    `json:"totalFiles"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lang := strings.ToLower(strings.TrimSpace(req.SourceLanguage))
	fields := map[string]string{}
	if strings.TrimSpace(req.SessionName) == "" {
		fields["sessionName"] = "is required"
	}
	if !s.catalog.IsSupported(lang) {
		fields["sourceLanguage"] = fmt.Sprintf("unsupported language %q", req.SourceLanguage)
	}
	if req.TotalFiles < 1 {
		fields["totalFiles"] = "must be at least 1"
	}
	if len(fields) > 0 {
		s.writeError(w, r, &ValidationError{Fields: fields})
		return
	}

	session, err := s.repo.CreateBulkSession(r.Context(), repository.CreateBulkSessionInput{
		UserID:         userIDFrom(r.Context()),
		SessionName:    strings.TrimSpace(req.SessionName),
		SourceLanguage: lang,
		TotalFiles:     req.TotalFiles,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": session})
}

func (s *Server) handleListBulkSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.ListBulkSessions(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []repository.BulkAnalysisSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleGetBulkSession(w http.ResponseWriter, r *http.Request) {
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
	if results == nil {
		results = []repository.BulkFileResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":           session,
		"results":           results,
		"progressAvailable": s.tracker.Active(session.ID),
	})
}

func (s *Server) handleDeleteBulkSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.DeleteBulkSession(r.Context(), session.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.tracker.Cleanup(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

type storeBulkFileRequest struct {
	FileIndex        int                   `json:"fileIndex"`
	FileName         string                `json:"fileName"`
	FileSize         int64                 `json:"fileSize"`
	Status           repository.FileStatus `json:"status"`
	ErrorMessage     string                `json:"errorMessage"`
	ProcessingTimeMs int64                 `json:"processingTimeMs"`
	repository.AnalysisFields
}

func (s *Server) handleStoreBulkFile(w http.ResponseWriter, r *http.Request) {
	var req storeBulkFileRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Status == "" {
		req.Status = repository.FileStatusCompleted
	}
	fields := map[string]string{}
	if req.FileIndex < 0 || req.FileIndex >= session.TotalFiles {
		fields["fileIndex"] = fmt.Sprintf("must be between 0 and %d", session.TotalFiles-1)
	}
	if strings.TrimSpace(req.FileName) == "" {
		fields["fileName"] = "is required"
	}
	if req.Status != repository.FileStatusCompleted && req.Status != repository.FileStatusFailed {
		fields["status"] = "must be completed or failed"
	}
	if len(fields) > 0 {
		s.writeError(w, r, &ValidationError{Fields: fields})
		return
	}

	saved, err := s.repo.InsertBulkFileResult(r.Context(), repository.BulkFileResult{
		BulkSessionID:    session.ID,
		FileIndex:        req.FileIndex,
		FileName:         strings.TrimSpace(req.FileName),
		FileSize:         req.FileSize,
		Status:           req.Status,
		ErrorMessage:     req.ErrorMessage,
		AnalysisFields:   req.AnalysisFields,
		ProcessingTimeMs: req.ProcessingTimeMs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": saved})
}

func (s *Server) handleStoreBulkSummary(w http.ResponseWriter, r *http.Request) {
	var summary repository.BatchSummary
	if err := decodeJSON(r, &summary); err != nil {
		s.writeError(w, r, err)
		return
	}
	switch summary.Status {
	case "":
		summary.Status = repository.BulkStatusCompleted
	case repository.BulkStatusProcessing, repository.BulkStatusCompleted, repository.BulkStatusFailed, repository.BulkStatusCancelled:
	default:
		s.writeError(w, r, invalid("status", fmt.Sprintf("unknown status %q", summary.Status)))
		return
	}
	if summary.TopKeywords == nil {
		summary.TopKeywords = []repository.KeywordCount{}
	}
	if summary.Recommendations == nil {
		summary.Recommendations = []string{}
	}

	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.UpdateBulkSummary(r.Context(), session.ID, summary); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.repo.GetBulkSession(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": updated})
}

// handleRunBulk accepts the recordings and starts server-side processing.
// The response is sent before any file is analyzed.
func (s *Server) handleRunBulk(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeError(w, r, invalid("files", "at least one file is required"))
		return
	}
	files := make([]bulk.FileInput, 0, len(headers))
	for _, fh := range headers {
		f, err := readUploadedFile(fh)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		files = append(files, bulk.FileInput{Name: f.Name, MIMEType: f.MIMEType, Size: f.Size, Data: f.Data})
	}

	session, err := s.batches.Start(r.Context(), bulk.Request{
		UserID:         userIDFrom(r.Context()),
		SessionName:    formValue(r, "sessionName"),
		SourceLanguage: formValue(r, "sourceLanguage"),
		Files:          files,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.WithRequest(r).WithFields(logrus.Fields{
		"bulk_session_id": session.ID,
		"files":           len(files),
	}).Info("bulk run accepted")
	writeJSON(w, http.StatusAccepted, map[string]any{"session": session})
}

// handleCancelBulk drops progress listeners for the batch. Processing itself
// continues and the batch still reaches a final status.
func (s *Server) handleCancelBulk(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedBulkSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cleaned := s.tracker.Cleanup(session.ID)
	writeJSON(w, http.StatusOK, map[string]any{"bulkSessionId": session.ID, "listenersCleared": cleaned})
}
