package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/go-chi/chi/v5"
)

type createAnalysisSessionRequest struct {
	SessionName    string `json:"sessionName"`
	SourceLanguage string `json:"sourceLanguage"`
	FileName       string `json:"fileName"`
	FileSize       int64  `json:"fileSize"`
	MIMEType       string `json:"mimeType"`
}

func (s *Server) validateAnalysisSession(req *createAnalysisSessionRequest) error {
	fields := map[string]string{}
	req.SessionName = strings.TrimSpace(req.SessionName)
	req.SourceLanguage = strings.ToLower(strings.TrimSpace(req.SourceLanguage))
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		fields["fileName"] = "is required"
	}
	if req.FileSize < 0 {
		fields["fileSize"] = "must not be negative"
	}
	if !s.catalog.IsSupported(req.SourceLanguage) {
		fields["sourceLanguage"] = fmt.Sprintf("unsupported language %q", req.SourceLanguage)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	if req.SessionName == "" {
		req.SessionName = req.FileName
	}
	return nil
}

func (req createAnalysisSessionRequest) input(userID string) repository.CreateAnalysisSessionInput {
	return repository.CreateAnalysisSessionInput{
		UserID:         userID,
		SessionName:    req.SessionName,
		SourceLanguage: req.SourceLanguage,
		FileName:       req.FileName,
		FileSize:       req.FileSize,
		MIMEType:       req.MIMEType,
	}
}

// ownedAnalysisSession loads the session and checks it belongs to the caller.
func (s *Server) ownedAnalysisSession(ctx context.Context, id string) (*repository.AnalysisSession, error) {
	session, err := s.repo.GetAnalysisSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userIDFrom(ctx) {
		return nil, errForbidden
	}
	return session, nil
}

func (s *Server) handleCreateAnalysisSession(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validateAnalysisSession(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.repo.CreateAnalysisSession(r.Context(), req.input(userIDFrom(r.Context())))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": session})
}

func (s *Server) handleListAnalysisSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.repo.ListAnalysisSessions(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []repository.AnalysisSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// handleCheckExisting returns the user's completed session for the same file
// name and size when there is one, and creates a new session otherwise.
func (s *Server) handleCheckExisting(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.validateAnalysisSession(&req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID := userIDFrom(r.Context())

	existing, err := s.repo.FindCompletedSessionByFile(r.Context(), userID, req.FileName, req.FileSize)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"session": existing, "existing": true})
		return
	case !errors.Is(err, repository.ErrNotFound):
		s.writeError(w, r, err)
		return
	}

	session, err := s.repo.CreateAnalysisSession(r.Context(), req.input(userID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": session, "existing": false})
}

func (s *Server) handleGetAnalysisSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedAnalysisSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (s *Server) handleRenameAnalysisSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionName string `json:"sessionName"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.SessionName)
	if name == "" {
		s.writeError(w, r, invalid("sessionName", "is required"))
		return
	}
	session, err := s.ownedAnalysisSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.RenameAnalysisSession(r.Context(), session.ID, name); err != nil {
		s.writeError(w, r, err)
		return
	}
	session.SessionName = name
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (s *Server) handleDeleteAnalysisSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.ownedAnalysisSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.DeleteAnalysisSession(r.Context(), session.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStoreAnalysisResult(w http.ResponseWriter, r *http.Request) {
	var fields repository.AnalysisFields
	if err := decodeJSON(r, &fields); err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.ownedAnalysisSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if session.Result != nil {
		s.writeError(w, r, fmt.Errorf("session %s: %w", session.ID, repository.ErrDuplicate))
		return
	}
	result, err := s.repo.InsertAnalysisResult(r.Context(), repository.InsertAnalysisResultInput{
		SessionID:      session.ID,
		AnalysisFields: fields,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.UpdateAnalysisSessionStatus(r.Context(), session.ID, repository.SessionStatusCompleted); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"result": result})
}

// handleCompleteAnalysis runs the whole pipeline for one uploaded recording
// and stores the result.
func (s *Server) handleCompleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	fh, err := singleFile(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	file, err := readUploadedFile(fh)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	req := createAnalysisSessionRequest{
		SessionName:    formValue(r, "sessionName"),
		SourceLanguage: formValue(r, "sourceLanguage"),
		FileName:       file.Name,
		FileSize:       file.Size,
		MIMEType:       file.MIMEType,
	}
	if err := s.validateAnalysisSession(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	session, err := s.repo.CreateAnalysisSession(ctx, req.input(userIDFrom(ctx)))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.UpdateAnalysisSessionStatus(ctx, session.ID, repository.SessionStatusProcessing); err != nil {
		s.writeError(w, r, err)
		return
	}

	entry := s.log.WithRequest(r).WithField("session_id", session.ID)
	res, err := s.analyzer.Run(ctx, 0, analysis.Input{FileName: file.Name, MIMEType: file.MIMEType, Data: file.Data}, req.SourceLanguage, func(p analysis.Progress) {
		entry.WithField("percent", p.Percent).Debug(p.Message)
	})
	if err != nil {
		if uerr := s.repo.UpdateAnalysisSessionStatus(context.WithoutCancel(ctx), session.ID, repository.SessionStatusFailed); uerr != nil {
			entry.WithField("error", uerr.Error()).Error("failed to mark session failed")
		}
		s.writeError(w, r, fmt.Errorf("%w: %w", errUpstream, err))
		return
	}

	// Writes after a successful analysis outlive the request.
	storeCtx := context.WithoutCancel(ctx)
	result, err := s.repo.InsertAnalysisResult(storeCtx, repository.InsertAnalysisResultInput{
		SessionID:      session.ID,
		AnalysisFields: res.AnalysisFields,
	})
	if err == nil {
		err = s.repo.UpdateAnalysisSessionStatus(storeCtx, session.ID, repository.SessionStatusCompleted)
	}
	if err != nil {
		if uerr := s.repo.UpdateAnalysisSessionStatus(storeCtx, session.ID, repository.SessionStatusFailed); uerr != nil {
			entry.WithField("error", uerr.Error()).Error("failed to mark session failed")
		}
		s.writeError(w, r, fmt.Errorf("store analysis result: %w", err))
		return
	}
	session.Status = repository.SessionStatusCompleted
	session.Result = result
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}
