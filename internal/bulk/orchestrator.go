// Package bulk runs batches of call recordings through the analysis pipeline
// one file at a time and aggregates the outcome.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/foxseedlab/callinsight/internal/analysis"
	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	// DB writes are attempted at most maxWriteAttempts times, waiting 2s then 4s.
	maxWriteAttempts    = 3
	writeInitialBackoff = 2 * time.Second
	writeMaxBackoff     = 8 * time.Second
)

var (
	ErrNoFiles             = errors.New("at least one file is required")
	ErrUnsupportedLanguage = errors.New("unsupported source language")
)

// FileAnalyzer runs the per-file pipeline. *analysis.Task implements it.
type FileAnalyzer interface {
	Run(ctx context.Context, index int, in analysis.Input, sourceLanguage string, emit analysis.Sink) (*analysis.Result, error)
}

type FileInput struct {
	Name     string
	MIMEType string
	Size     int64
	Data     []byte
}

type Request struct {
	UserID         string
	SessionName    string
	SourceLanguage string
	Files          []FileInput
}

// Outcome is what a finished batch produced. Results holds one entry per
// input file in input order, including failed stubs.
type Outcome struct {
	Session   *repository.BulkAnalysisSession
	Results   []repository.BulkFileResult
	Persisted int
	Summary   repository.BatchSummary
}

type Config struct {
	InterFileDelay time.Duration
}

type Orchestrator struct {
	repo      repository.BulkRepository
	analyzer  FileAnalyzer
	tracker   *Tracker
	publisher events.Publisher
	notifier  *Notifier
	catalog   *language.Catalog
	metrics   *metrics.Metrics
	log       *logger.Logger
	delay     time.Duration

	sleep      func(ctx context.Context, d time.Duration) error
	newBackOff func() backoff.BackOff
	now        func() time.Time

	wg sync.WaitGroup
}

func NewOrchestrator(
	cfg Config,
	repo repository.BulkRepository,
	analyzer FileAnalyzer,
	tracker *Tracker,
	publisher events.Publisher,
	notifier *Notifier,
	catalog *language.Catalog,
	m *metrics.Metrics,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:       repo,
		analyzer:   analyzer,
		tracker:    tracker,
		publisher:  publisher,
		notifier:   notifier,
		catalog:    catalog,
		metrics:    m,
		log:        log.Component("bulk"),
		delay:      cfg.InterFileDelay,
		sleep:      sleepContext,
		newBackOff: defaultWriteBackOff,
		now:        time.Now,
	}
}

func defaultWriteBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = writeInitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = writeMaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

func (o *Orchestrator) validate(req Request) error {
	if len(req.Files) == 0 {
		return ErrNoFiles
	}
	if !o.catalog.IsSupported(req.SourceLanguage) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.SourceLanguage)
	}
	return nil
}

func (o *Orchestrator) begin(ctx context.Context, req Request) (*repository.BulkAnalysisSession, error) {
	if err := o.validate(req); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.SessionName)
	if name == "" {
		name = fmt.Sprintf("Batch %s", o.now().UTC().Format("2006-01-02 15:04"))
	}
	session, err := o.repo.CreateBulkSession(ctx, repository.CreateBulkSessionInput{
		UserID:         req.UserID,
		SessionName:    name,
		SourceLanguage: strings.ToLower(strings.TrimSpace(req.SourceLanguage)),
		TotalFiles:     len(req.Files),
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk session: %w", err)
	}
	o.tracker.Register(session.ID)
	o.metrics.RecordBatchStarted()
	o.log.WithFields(logrus.Fields{
		"bulk_session_id": session.ID,
		"user_id":         req.UserID,
		"files":           len(req.Files),
		"language":        session.SourceLanguage,
	}).Info("bulk analysis started")
	return session, nil
}

// Start creates the batch and processes it in the background. The batch is
// detached from ctx cancellation so a client disconnect does not abort it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*repository.BulkAnalysisSession, error) {
	session, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.process(runCtx, *session, req)
	}()
	return session, nil
}

// Run creates the batch and processes it before returning.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	session, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.process(ctx, *session, req), nil
}

// Wait blocks until every batch started with Start has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) process(ctx context.Context, session repository.BulkAnalysisSession, req Request) *Outcome {
	out := &Outcome{Results: make([]repository.BulkFileResult, 0, len(req.Files))}
	emit := func(p analysis.Progress) { o.tracker.Publish(session.ID, p) }
	entry := o.log.WithField("bulk_session_id", session.ID)

	for i, f := range req.Files {
		if i > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				entry.WithField("error", err.Error()).Warn("inter-file delay interrupted")
			}
		}

		started := o.now()
		res, err := o.analyzer.Run(ctx, i, analysis.Input{FileName: f.Name, MIMEType: f.MIMEType, Data: f.Data}, session.SourceLanguage, emit)
		elapsed := o.now().Sub(started)
		o.metrics.RecordFile(err, elapsed.Seconds())

		fr := repository.BulkFileResult{
			BulkSessionID:    session.ID,
			FileIndex:        i,
			FileName:         f.Name,
			FileSize:         f.Size,
			ProcessingTimeMs: elapsed.Milliseconds(),
		}
		if err != nil {
			entry.WithFields(logrus.Fields{"file_index": i, "file": f.Name, "error": err.Error()}).Warn("file analysis failed; continuing with next file")
			fr.Status = repository.FileStatusFailed
			fr.ErrorMessage = err.Error()
			fr.Keywords = []string{}
		} else {
			fr.Status = repository.FileStatusCompleted
			fr.AnalysisFields = res.AnalysisFields
		}

		persisted := o.persistFileResult(ctx, &fr)
		if persisted {
			out.Persisted++
		}
		out.Results = append(out.Results, fr)
		o.publishFileEvent(ctx, session, fr, persisted)
	}

	out.Summary = Summarize(out.Results)
	if err := o.retryWrite(ctx, "summary", func() error {
		return o.repo.UpdateBulkSummary(ctx, session.ID, out.Summary)
	}); err != nil {
		entry.WithField("error", err.Error()).Error("failed to store batch summary")
	}

	final := session
	final.BatchSummary = out.Summary
	completedAt := o.now().UTC()
	final.CompletedAt = &completedAt
	out.Session = &final

	o.tracker.Finish(session.ID)
	o.metrics.RecordBatchFinished(string(out.Summary.Status))
	entry.WithFields(logrus.Fields{
		"status":    out.Summary.Status,
		"completed": out.Summary.CompletedFiles,
		"failed":    out.Summary.FailedFiles,
		"persisted": out.Persisted,
	}).Info("bulk analysis finished")

	o.publishBatchEvent(ctx, final)
	o.notifier.BatchCompleted(ctx, final, out.Results)
	return out
}

// persistFileResult stores fr with bounded retries. It reports whether the
// row is in the database; exhausting the retries is logged, not returned.
func (o *Orchestrator) persistFileResult(ctx context.Context, fr *repository.BulkFileResult) bool {
	err := o.retryWrite(ctx, "file_result", func() error {
		saved, err := o.repo.InsertBulkFileResult(ctx, *fr)
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			// an earlier attempt committed before failing
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return backoff.Permanent(err)
		case err != nil:
			return err
		}
		fr.ID = saved.ID
		fr.CreatedAt = saved.CreatedAt
		return nil
	})
	if err != nil {
		o.metrics.RecordDBWriteFailure()
		o.log.WithFields(logrus.Fields{
			"bulk_session_id": fr.BulkSessionID,
			"file_index":      fr.FileIndex,
			"file":            fr.FileName,
			"error":           err.Error(),
		}).Error("giving up on storing file result")
		return false
	}
	return true
}

func (o *Orchestrator) retryWrite(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), maxWriteAttempts-1), ctx)
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, b, func(err error, wait time.Duration) {
		o.metrics.RecordDBWriteRetry()
		o.log.WithFields(logrus.Fields{
			"write":   what,
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		}).Warn("database write failed; retrying")
	})
}

func (o *Orchestrator) publishFileEvent(ctx context.Context, session repository.BulkAnalysisSession, fr repository.BulkFileResult, persisted bool) {
	if o.publisher == nil {
		return
	}
	err := o.publisher.PublishFileCompleted(ctx, events.FileCompleted{
		BulkSessionID:    session.ID,
		UserID:           session.UserID,
		FileIndex:        fr.FileIndex,
		FileName:         fr.FileName,
		Status:           string(fr.Status),
		Sentiment:        fr.Sentiment,
		OverallScore:     fr.OverallScore,
		ProcessingTimeMs: fr.ProcessingTimeMs,
		Persisted:        persisted,
		OccurredAt:       o.now().UTC(),
	})
	if err != nil {
		o.log.WithError(err).WithField("bulk_session_id", session.ID).Warn("failed to publish file event")
	}
}

func (o *Orchestrator) publishBatchEvent(ctx context.Context, session repository.BulkAnalysisSession) {
	if o.publisher == nil {
		return
	}
	err := o.publisher.PublishBatchCompleted(ctx, events.BatchCompleted{
		BulkSessionID: session.ID,
		UserID:        session.UserID,
		SessionName:   session.SessionName,
		TotalFiles:    session.TotalFiles,
		Summary:       session.BatchSummary,
		OccurredAt:    o.now().UTC(),
	})
	if err != nil {
		o.log.WithError(err).WithField("bulk_session_id", session.ID).Warn("failed to publish batch event")
	}
}
