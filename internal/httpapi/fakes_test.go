package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/bulk"
	"github.com/foxseedlab/callinsight/internal/repository"
)

type fakeRepo struct {
	mu           sync.Mutex
	nextID       int
	sessions     map[string]*repository.AnalysisSession
	bulkSessions map[string]*repository.BulkAnalysisSession
	fileResults  map[string][]repository.BulkFileResult
	pingErr      error
	listErr      error
	insertErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:     make(map[string]*repository.AnalysisSession),
		bulkSessions: make(map[string]*repository.BulkAnalysisSession),
		fileResults:  make(map[string][]repository.BulkFileResult),
	}
}

func (f *fakeRepo) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRepo) Ping(context.Context) error { return f.pingErr }

func (f *fakeRepo) CreateAnalysisSession(_ context.Context, in repository.CreateAnalysisSessionInput) (*repository.AnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &repository.AnalysisSession{
		ID:             f.id("session"),
		UserID:         in.UserID,
		SessionName:    in.SessionName,
		SourceLanguage: in.SourceLanguage,
		FileName:       in.FileName,
		FileSize:       in.FileSize,
		MIMEType:       in.MIMEType,
		Status:         repository.SessionStatusPending,
	}
	f.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) GetAnalysisSession(_ context.Context, id string) (*repository.AnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListAnalysisSessions(_ context.Context, userID string) ([]repository.AnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []repository.AnalysisSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) RenameAnalysisSession(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.SessionName = name
	return nil
}

func (f *fakeRepo) UpdateAnalysisSessionStatus(ctx context.Context, id string, status repository.SessionStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.Status = status
	return nil
}

func (f *fakeRepo) DeleteAnalysisSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeRepo) FindCompletedSessionByFile(_ context.Context, userID, fileName string, fileSize int64) (*repository.AnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.FileName == fileName && s.FileSize == fileSize && s.Status == repository.SessionStatusCompleted {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) InsertAnalysisResult(ctx context.Context, in repository.InsertAnalysisResultInput) (*repository.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	s, ok := f.sessions[in.SessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if s.Result != nil {
		return nil, repository.ErrDuplicate
	}
	s.Result = &repository.AnalysisResult{ID: f.id("result"), SessionID: s.ID, AnalysisFields: in.AnalysisFields}
	cp := *s.Result
	return &cp, nil
}

func (f *fakeRepo) CreateBulkSession(_ context.Context, in repository.CreateBulkSessionInput) (*repository.BulkAnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &repository.BulkAnalysisSession{
		ID:             f.id("bulk"),
		UserID:         in.UserID,
		SessionName:    in.SessionName,
		SourceLanguage: in.SourceLanguage,
		TotalFiles:     in.TotalFiles,
		BatchSummary:   repository.BatchSummary{Status: repository.BulkStatusProcessing},
	}
	f.bulkSessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) GetBulkSession(_ context.Context, id string) (*repository.BulkAnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.bulkSessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) ListBulkSessions(_ context.Context, userID string) ([]repository.BulkAnalysisSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.BulkAnalysisSession
	for _, s := range f.bulkSessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteBulkSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bulkSessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.bulkSessions, id)
	delete(f.fileResults, id)
	return nil
}

func (f *fakeRepo) InsertBulkFileResult(_ context.Context, r repository.BulkFileResult) (*repository.BulkFileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.bulkSessions[r.BulkSessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, existing := range f.fileResults[r.BulkSessionID] {
		if existing.FileIndex == r.FileIndex {
			return nil, repository.ErrDuplicate
		}
	}
	r.ID = f.id("file")
	f.fileResults[r.BulkSessionID] = append(f.fileResults[r.BulkSessionID], r)
	if r.Status == repository.FileStatusCompleted {
		s.CompletedFiles++
	} else {
		s.FailedFiles++
	}
	return &r, nil
}

func (f *fakeRepo) ListBulkFileResults(_ context.Context, id string) ([]repository.BulkFileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repository.BulkFileResult(nil), f.fileResults[id]...), nil
}

func (f *fakeRepo) UpdateBulkSummary(_ context.Context, id string, summary repository.BatchSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.bulkSessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	summary.CompletedFiles, summary.FailedFiles = s.CompletedFiles, s.FailedFiles
	s.BatchSummary = summary
	now := time.Now()
	s.CompletedAt = &now
	return nil
}

func (f *fakeRepo) FailStaleBulkSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeAnalyzer struct {
	err   error
	calls int
	langs []string
	// afterRun fires once the analysis is done, before the handler stores it.
	afterRun func()
}

func (a *fakeAnalyzer) Run(_ context.Context, index int, in analysis.Input, lang string, emit analysis.Sink) (*analysis.Result, error) {
	a.calls++
	a.langs = append(a.langs, lang)
	if a.afterRun != nil {
		defer a.afterRun()
	}
	if a.err != nil {
		emit(analysis.Progress{FileIndex: index, FileName: in.FileName, Phase: analysis.PhaseError, Percent: 10, Error: a.err.Error()})
		return nil, a.err
	}
	emit(analysis.Progress{FileIndex: index, FileName: in.FileName, Phase: analysis.PhaseCompleted, Percent: 100})
	return &analysis.Result{AnalysisFields: repository.AnalysisFields{
		Transcription: "hola",
		Translation:   "hello",
		Sentiment:     "positive",
		Summary:       "greeting",
		OverallScore:  8,
		Keywords:      []string{"greeting"},
	}}, nil
}

type fakeStarter struct {
	repo *fakeRepo
	req  *bulk.Request
	err  error
}

func (s *fakeStarter) Start(ctx context.Context, req bulk.Request) (*repository.BulkAnalysisSession, error) {
	s.req = &req
	if s.err != nil {
		return nil, s.err
	}
	if len(req.Files) == 0 {
		return nil, bulk.ErrNoFiles
	}
	return s.repo.CreateBulkSession(ctx, repository.CreateBulkSessionInput{
		UserID:         req.UserID,
		SessionName:    req.SessionName,
		SourceLanguage: req.SourceLanguage,
		TotalFiles:     len(req.Files),
	})
}

var errBoom = errors.New("boom")
