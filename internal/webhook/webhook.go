package webhook

import (
	"context"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
)

type BatchWebhookPayload struct {
	BulkSessionID string                  `json:"bulkSessionId"`
	UserID        string                  `json:"userId"`
	SessionName   string                  `json:"sessionName"`
	Language      string                  `json:"sourceLanguage"`
	TotalFiles    int                     `json:"totalFiles"`
	Summary       repository.BatchSummary `json:"summary"`
	CompletedAt   time.Time               `json:"completedAt"`
}

// Attachment is an optional file sent alongside the payload.
type Attachment struct {
	Filename string
	Body     []byte
}

type Sender interface {
	SendBatchSummary(ctx context.Context, payload BatchWebhookPayload, attachment *Attachment) error
}
