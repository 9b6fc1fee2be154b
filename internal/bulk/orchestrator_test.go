package bulk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type mockBulkRepo struct {
	mu           sync.Mutex
	session      *repository.BulkAnalysisSession
	inserted     []repository.BulkFileResult
	insertCalls  int
	insertErrs   []error
	summary      *repository.BatchSummary
	summaryErr   error
	summaryCalls int
	createErr    error
}

func (m *mockBulkRepo) CreateBulkSession(_ context.Context, in repository.CreateBulkSessionInput) (*repository.BulkAnalysisSession, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.session = &repository.BulkAnalysisSession{
		ID:             "bulk-1",
		UserID:         in.UserID,
		SessionName:    in.SessionName,
		SourceLanguage: in.SourceLanguage,
		TotalFiles:     in.TotalFiles,
		BatchSummary:   repository.BatchSummary{Status: repository.BulkStatusProcessing},
	}
	return m.session, nil
}

func (m *mockBulkRepo) GetBulkSession(context.Context, string) (*repository.BulkAnalysisSession, error) {
	if m.session == nil {
		return nil, repository.ErrNotFound
	}
	return m.session, nil
}

func (m *mockBulkRepo) ListBulkSessions(context.Context, string) ([]repository.BulkAnalysisSession, error) {
	return nil, nil
}

func (m *mockBulkRepo) DeleteBulkSession(context.Context, string) error { return nil }

func (m *mockBulkRepo) InsertBulkFileResult(_ context.Context, r repository.BulkFileResult) (*repository.BulkFileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.insertCalls
	m.insertCalls++
	if call < len(m.insertErrs) && m.insertErrs[call] != nil {
		return nil, m.insertErrs[call]
	}
	r.ID = fmt.Sprintf("file-%d", r.FileIndex)
	m.inserted = append(m.inserted, r)
	return &r, nil
}

func (m *mockBulkRepo) ListBulkFileResults(context.Context, string) ([]repository.BulkFileResult, error) {
	return m.inserted, nil
}

func (m *mockBulkRepo) UpdateBulkSummary(_ context.Context, _ string, s repository.BatchSummary) error {
	m.summaryCalls++
	if m.summaryErr != nil {
		return m.summaryErr
	}
	m.summary = &s
	return nil
}

func (m *mockBulkRepo) FailStaleBulkSessions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type scriptedAnalyzer struct {
	calls   []string
	failOn  map[int]error
	scores  map[int]float64
	sentmap map[int]string
}

func (a *scriptedAnalyzer) Run(_ context.Context, index int, in analysis.Input, _ string, emit analysis.Sink) (*analysis.Result, error) {
	a.calls = append(a.calls, in.FileName)
	emit(analysis.Progress{FileIndex: index, FileName: in.FileName, Phase: analysis.PhaseTranscribing, Percent: analysis.PercentTranscribing})
	if err := a.failOn[index]; err != nil {
		emit(analysis.Progress{FileIndex: index, FileName: in.FileName, Phase: analysis.PhaseError, Percent: analysis.PercentTranscribing, Error: err.Error()})
		return nil, err
	}
	score := 7.0
	if s, ok := a.scores[index]; ok {
		score = s
	}
	sentiment := "neutral"
	if s, ok := a.sentmap[index]; ok {
		sentiment = s
	}
	emit(analysis.Progress{FileIndex: index, FileName: in.FileName, Phase: analysis.PhaseCompleted, Percent: analysis.PercentCompleted})
	return &analysis.Result{AnalysisFields: repository.AnalysisFields{
		Transcription:        "t " + in.FileName,
		Sentiment:            sentiment,
		Keywords:             []string{"refund"},
		OverallScore:         score,
		OpeningScore:         score,
		ClosingScore:         score,
		SpeakingQualityScore: score,
	}}, nil
}

type recordingPublisher struct {
	files   []events.FileCompleted
	batches []events.BatchCompleted
}

func (p *recordingPublisher) PublishFileCompleted(_ context.Context, e events.FileCompleted) error {
	p.files = append(p.files, e)
	return nil
}

func (p *recordingPublisher) PublishBatchCompleted(_ context.Context, e events.BatchCompleted) error {
	p.batches = append(p.batches, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type testHarness struct {
	orch      *Orchestrator
	repo      *mockBulkRepo
	analyzer  *scriptedAnalyzer
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	sleeps    []time.Duration
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		repo:      &mockBulkRepo{},
		analyzer:  &scriptedAnalyzer{failOn: map[int]error{}, scores: map[int]float64{}, sentmap: map[int]string{}},
		publisher: &recordingPublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	h.orch = NewOrchestrator(Config{InterFileDelay: time.Second}, h.repo, h.analyzer, NewTracker(), h.publisher, nil, language.Default(), h.metrics, logger.Discard())
	h.orch.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	h.orch.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return h
}

func files(names ...string) []FileInput {
	out := make([]FileInput, len(names))
	for i, n := range names {
		out[i] = FileInput{Name: n, Size: int64(100 + i), Data: []byte(n)}
	}
	return out
}

func TestRun_PreservesOrderAndLength(t *testing.T) {
	h := newHarness(t)
	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SessionName: "batch", SourceLanguage: "en", Files: files("a.mp3", "b.mp3", "c.mp3", "d.mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(out.Results))
	}
	for i, name := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"} {
		if out.Results[i].FileName != name || out.Results[i].FileIndex != i {
			t.Fatalf("result %d out of order: %+v", i, out.Results[i])
		}
	}
	if len(h.sleeps) != 3 {
		t.Fatalf("expected a delay between each pair of files, got %v", h.sleeps)
	}
	if out.Persisted != 4 || len(h.repo.inserted) != 4 {
		t.Fatalf("expected 4 persisted rows, got %d/%d", out.Persisted, len(h.repo.inserted))
	}
	if len(h.publisher.files) != 4 || len(h.publisher.batches) != 1 {
		t.Fatalf("expected 4 file events and 1 batch event, got %d/%d", len(h.publisher.files), len(h.publisher.batches))
	}
}

func TestRun_FailingFileDoesNotStopBatch(t *testing.T) {
	h := newHarness(t)
	h.analyzer.failOn[1] = errors.New("gemini transcribe: all API keys failed")

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("1.mp3", "2.mp3", "3.mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.analyzer.calls) != 3 {
		t.Fatalf("expected all 3 files to be processed, got %v", h.analyzer.calls)
	}
	if out.Results[0].Status != repository.FileStatusCompleted || out.Results[2].Status != repository.FileStatusCompleted {
		t.Fatalf("expected files 1 and 3 to complete: %+v", out.Results)
	}
	failed := out.Results[1]
	if failed.Status != repository.FileStatusFailed || failed.OverallScore != 0 || failed.ErrorMessage == "" {
		t.Fatalf("expected failed stub with zero score, got %+v", failed)
	}
	if out.Summary.CompletedFiles != 2 || out.Summary.FailedFiles != 1 || out.Summary.Status != repository.BulkStatusCompleted {
		t.Fatalf("unexpected summary: %+v", out.Summary)
	}
	if len(h.repo.inserted) != 3 || h.repo.inserted[1].Status != repository.FileStatusFailed || out.Persisted != 3 {
		t.Fatalf("expected a failed row stored for file 2, got %+v", h.repo.inserted)
	}
}

func TestRun_WriteRetrySucceedsOnThirdAttempt(t *testing.T) {
	h := newHarness(t)
	h.repo.insertErrs = []error{errors.New("conn reset"), errors.New("conn reset")}

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("only.mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.repo.insertCalls != 3 {
		t.Fatalf("expected 3 insert attempts, got %d", h.repo.insertCalls)
	}
	if out.Persisted != 1 || len(h.repo.inserted) != 1 {
		t.Fatalf("expected the row to be persisted, got %d", out.Persisted)
	}
	if out.Results[0].ID == "" {
		t.Fatal("expected persisted result to carry its id")
	}
	if got := testutil.ToFloat64(h.metrics.DBWriteRetries); got != 2 {
		t.Fatalf("expected 2 retries, got %v", got)
	}
}

func TestRun_WriteRetryExhausted(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("db down")
	h.repo.insertErrs = []error{boom, boom, boom}

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a.mp3", "b.mp3")})
	if err != nil {
		t.Fatalf("batch must not fail on write errors: %v", err)
	}
	if h.repo.insertCalls != 4 {
		t.Fatalf("expected 3 attempts for file 1 and 1 for file 2, got %d", h.repo.insertCalls)
	}
	if out.Persisted != 1 {
		t.Fatalf("expected only file 2 persisted, got %d", out.Persisted)
	}
	if len(out.Results) != 2 || out.Results[0].Status != repository.FileStatusCompleted {
		t.Fatalf("expected unpersisted file to stay in results: %+v", out.Results)
	}
	if h.publisher.files[0].Persisted {
		t.Fatal("expected file event to report the write failure")
	}
	if got := testutil.ToFloat64(h.metrics.DBWriteFailures); got != 1 {
		t.Fatalf("expected 1 write failure, got %v", got)
	}
}

func TestRun_DuplicateInsertCountsAsPersisted(t *testing.T) {
	h := newHarness(t)
	h.repo.insertErrs = []error{errors.New("timeout"), fmt.Errorf("%w: bulk_file_results_key", repository.ErrDuplicate)}

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a.mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Persisted != 1 || h.repo.insertCalls != 2 {
		t.Fatalf("expected duplicate to end retries as persisted, got persisted=%d calls=%d", out.Persisted, h.repo.insertCalls)
	}
}

func TestRun_SummaryMath(t *testing.T) {
	h := newHarness(t)
	h.analyzer.scores = map[int]float64{0: 8, 1: 6, 2: 4}
	h.analyzer.sentmap = map[int]string{0: "positive", 1: "neutral", 2: "negative"}

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a", "b", "c")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Summary.AverageOverallScore != 6.0 {
		t.Fatalf("expected average 6.0, got %v", out.Summary.AverageOverallScore)
	}
	p := out.Summary.SentimentPercentages
	if math.Abs(p.Positive+p.Neutral+p.Negative-100) > 1e-9 {
		t.Fatalf("expected percentages to sum to 100, got %+v", p)
	}
	if h.repo.summary == nil || h.repo.summary.AverageOverallScore != 6.0 {
		t.Fatalf("expected summary to be stored, got %+v", h.repo.summary)
	}
	if len(out.Summary.TopKeywords) != 1 || out.Summary.TopKeywords[0].Count != 3 {
		t.Fatalf("unexpected keywords: %+v", out.Summary.TopKeywords)
	}
}

func TestRun_AllFilesFailMarksBatchFailed(t *testing.T) {
	h := newHarness(t)
	h.analyzer.failOn = map[int]error{0: errors.New("x"), 1: errors.New("y")}

	out, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a", "b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Summary.Status != repository.BulkStatusFailed {
		t.Fatalf("expected failed batch, got %s", out.Summary.Status)
	}
}

func TestRun_SummaryWriteRetried(t *testing.T) {
	h := newHarness(t)
	h.repo.summaryErr = errors.New("db down")

	if _, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.repo.summaryCalls != maxWriteAttempts {
		t.Fatalf("expected %d summary attempts, got %d", maxWriteAttempts, h.repo.summaryCalls)
	}
}

func TestRun_Validation(t *testing.T) {
	h := newHarness(t)
	if _, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "en"}); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	if _, err := h.orch.Run(context.Background(), Request{UserID: "u1", SourceLanguage: "klingon", Files: files("a")}); !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
	if h.repo.session != nil {
		t.Fatal("no session must be created for invalid input")
	}
}

func TestStart_RunsInBackgroundAndStreamsProgress(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.orch.sleep = func(ctx context.Context, _ time.Duration) error {
		<-release
		return nil
	}

	session, err := h.orch.Start(context.Background(), Request{UserID: "u1", SourceLanguage: "en", Files: files("a", "b")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ch, unsubscribe, ok := h.orch.Tracker().Subscribe(session.ID)
	if !ok {
		t.Fatal("expected batch to be tracked while running")
	}
	defer unsubscribe()
	close(release)

	var sawCompleted bool
	for p := range ch {
		if p.FileIndex == 1 && p.Phase == analysis.PhaseCompleted {
			sawCompleted = true
		}
	}
	h.orch.Wait()
	if !sawCompleted {
		t.Fatal("expected completion event for the last file")
	}
	if h.orch.Tracker().Active(session.ID) {
		t.Fatal("expected tracker state to be released after the batch")
	}
	if h.repo.summary == nil {
		t.Fatal("expected summary to be stored by background run")
	}
}
