package repository

import "time"

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
)

type BulkStatus string

const (
	BulkStatusProcessing BulkStatus = "processing"
	BulkStatusCompleted  BulkStatus = "completed"
	BulkStatusFailed     BulkStatus = "failed"
	BulkStatusCancelled  BulkStatus = "cancelled"
)

type FileStatus string

const (
	FileStatusCompleted FileStatus = "completed"
	FileStatusFailed    FileStatus = "failed"
)

// AnalysisFields is the analysis payload shared by single-file results and
// batch file results.
type AnalysisFields struct {
	Transcription        string   `json:"transcription"`
	Translation          string   `json:"translation"`
	Sentiment            string   `json:"sentiment"`
	SentimentScore       float64  `json:"sentimentScore"`
	Summary              string   `json:"summary"`
	CoachingFeedback     string   `json:"coachingFeedback"`
	Keywords             []string `json:"keywords"`
	Strengths            []string `json:"strengths"`
	Improvements         []string `json:"improvements"`
	OverallScore         float64  `json:"overallScore"`
	OpeningScore         float64  `json:"openingScore"`
	ClosingScore         float64  `json:"closingScore"`
	SpeakingQualityScore float64  `json:"speakingQualityScore"`
}

type AnalysisSession struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	SessionName    string          `json:"sessionName"`
	SourceLanguage string          `json:"sourceLanguage"`
	FileName       string          `json:"fileName"`
	FileSize       int64           `json:"fileSize"`
	MIMEType       string          `json:"mimeType"`
	Status         SessionStatus   `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	Result         *AnalysisResult `json:"result,omitempty"`
}

type AnalysisResult struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	AnalysisFields
	CreatedAt time.Time `json:"createdAt"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

type SentimentPercentages struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// BatchSummary is the aggregate written once a batch finishes.
type BatchSummary struct {
	Status               BulkStatus           `json:"status"`
	CompletedFiles       int                  `json:"completedFiles"`
	FailedFiles          int                  `json:"failedFiles"`
	AverageOverallScore  float64              `json:"averageOverallScore"`
	AverageOpeningScore  float64              `json:"averageOpeningScore"`
	AverageClosingScore  float64              `json:"averageClosingScore"`
	AverageSpeakingScore float64              `json:"averageSpeakingScore"`
	SentimentCounts      SentimentCounts      `json:"sentimentCounts"`
	SentimentPercentages SentimentPercentages `json:"sentimentPercentages"`
	TopKeywords          []KeywordCount       `json:"topKeywords"`
	StrongestArea        string               `json:"strongestArea"`
	WeakestArea          string               `json:"weakestArea"`
	Recommendations      []string             `json:"recommendations"`
}

type BulkAnalysisSession struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	SessionName    string `json:"sessionName"`
	SourceLanguage string `json:"sourceLanguage"`
	TotalFiles     int    `json:"totalFiles"`
	BatchSummary
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type BulkFileResult struct {
	ID            string     `json:"id"`
	BulkSessionID string     `json:"bulkSessionId"`
	FileIndex     int        `json:"fileIndex"`
	FileName      string     `json:"fileName"`
	FileSize      int64      `json:"fileSize"`
	Status        FileStatus `json:"status"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
	AnalysisFields
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	CreatedAt        time.Time `json:"createdAt"`
}
