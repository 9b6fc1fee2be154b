package repository

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type CreateAnalysisSessionInput struct {
	UserID         string
	SessionName    string
	SourceLanguage string
	FileName       string
	FileSize       int64
	MIMEType       string
}

type InsertAnalysisResultInput struct {
	SessionID string
	AnalysisFields
}

type CreateBulkSessionInput struct {
	UserID         string
	SessionName    string
	SourceLanguage string
	TotalFiles     int
}

type AnalysisRepository interface {
	CreateAnalysisSession(ctx context.Context, input CreateAnalysisSessionInput) (*AnalysisSession, error)
	// GetAnalysisSession returns the session with its result attached, or ErrNotFound.
	GetAnalysisSession(ctx context.Context, id string) (*AnalysisSession, error)
	ListAnalysisSessions(ctx context.Context, userID string) ([]AnalysisSession, error)
	RenameAnalysisSession(ctx context.Context, id, name string) error
	UpdateAnalysisSessionStatus(ctx context.Context, id string, status SessionStatus) error
	DeleteAnalysisSession(ctx context.Context, id string) error
	// FindCompletedSessionByFile returns the newest completed session of the
	// user for the same file name and size, or ErrNotFound.
	FindCompletedSessionByFile(ctx context.Context, userID, fileName string, fileSize int64) (*AnalysisSession, error)
	// InsertAnalysisResult returns ErrDuplicate if the session already has a result.
	InsertAnalysisResult(ctx context.Context, input InsertAnalysisResultInput) (*AnalysisResult, error)
}

type BulkRepository interface {
	CreateBulkSession(ctx context.Context, input CreateBulkSessionInput) (*BulkAnalysisSession, error)
	GetBulkSession(ctx context.Context, id string) (*BulkAnalysisSession, error)
	ListBulkSessions(ctx context.Context, userID string) ([]BulkAnalysisSession, error)
	DeleteBulkSession(ctx context.Context, id string) error
	// InsertBulkFileResult stores one file outcome and bumps the batch counters.
	// A second row for the same file index returns ErrDuplicate.
	InsertBulkFileResult(ctx context.Context, result BulkFileResult) (*BulkFileResult, error)
	ListBulkFileResults(ctx context.Context, bulkSessionID string) ([]BulkFileResult, error)
	// UpdateBulkSummary stores the aggregate fields and status. The stored
	// CompletedFiles and FailedFiles are left as InsertBulkFileResult set them.
	UpdateBulkSummary(ctx context.Context, id string, summary BatchSummary) error
	// FailStaleBulkSessions marks processing batches last updated before
	// cutoff as failed and returns how many were changed.
	FailStaleBulkSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository interface {
	AnalysisRepository
	BulkRepository
	Ping(ctx context.Context) error
}
