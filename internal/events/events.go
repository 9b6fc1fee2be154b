// Package events defines the analysis events emitted to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

const (
	TypeFileCompleted  = "bulk.file.completed"
	TypeBatchCompleted = "bulk.batch.completed"
)

type FileCompleted struct {
	Type             string    `json:"type"`
	BulkSessionID    string    `json:"bulkSessionId"`
	UserID           string    `json:"userId"`
	FileIndex        int       `json:"fileIndex"`
	FileName         string    `json:"fileName"`
	Status           string    `json:"status"`
	Sentiment        string    `json:"sentiment"`
	OverallScore     float64   `json:"overallScore"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	Persisted        bool      `json:"persisted"`
	OccurredAt       time.Time `json:"occurredAt"`
}

type BatchCompleted struct {
	Type          string                  `json:"type"`
	BulkSessionID string                  `json:"bulkSessionId"`
	UserID        string                  `json:"userId"`
	SessionName   string                  `json:"sessionName"`
	TotalFiles    int                     `json:"totalFiles"`
	Summary       repository.BatchSummary `json:"summary"`
	OccurredAt    time.Time               `json:"occurredAt"`
}

type Publisher interface {
	PublishFileCompleted(ctx context.Context, event FileCompleted) error
	PublishBatchCompleted(ctx context.Context, event BatchCompleted) error
	Close() error
}
