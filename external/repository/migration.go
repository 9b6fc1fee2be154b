package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		session_name TEXT NOT NULL,
		source_language TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		file_size BIGINT NOT NULL DEFAULT 0,
		mime_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_sessions_user ON analysis_sessions (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_sessions_file ON analysis_sessions (user_id, file_name, file_size) WHERE status = 'completed'`,
	`CREATE TABLE IF NOT EXISTS analysis_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL UNIQUE REFERENCES analysis_sessions(id) ON DELETE CASCADE,
		transcription TEXT NOT NULL DEFAULT '',
		translation TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT 'neutral',
		sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		coaching_feedback TEXT NOT NULL DEFAULT '',
		keywords JSONB NOT NULL DEFAULT '[]',
		strengths JSONB NOT NULL DEFAULT '[]',
		improvements JSONB NOT NULL DEFAULT '[]',
		overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		opening_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		closing_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		speaking_quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bulk_analysis_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id TEXT NOT NULL,
		session_name TEXT NOT NULL,
		source_language TEXT NOT NULL,
		total_files INTEGER NOT NULL,
		completed_files INTEGER NOT NULL DEFAULT 0,
		failed_files INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'processing'
			CHECK (status IN ('processing', 'completed', 'failed', 'cancelled')),
		average_overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		average_opening_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		average_closing_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		average_speaking_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_positive INTEGER NOT NULL DEFAULT 0,
		sentiment_neutral INTEGER NOT NULL DEFAULT 0,
		sentiment_negative INTEGER NOT NULL DEFAULT 0,
		sentiment_positive_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_neutral_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		sentiment_negative_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		top_keywords JSONB NOT NULL DEFAULT '[]',
		strongest_area TEXT NOT NULL DEFAULT '',
		weakest_area TEXT NOT NULL DEFAULT '',
		recommendations JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bulk_sessions_user ON bulk_analysis_sessions (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bulk_sessions_processing ON bulk_analysis_sessions (updated_at) WHERE status = 'processing'`,
	`CREATE TABLE IF NOT EXISTS bulk_file_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		bulk_session_id UUID NOT NULL REFERENCES bulk_analysis_sessions(id) ON DELETE CASCADE,
		file_index INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		file_size BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK (status IN ('completed', 'failed')),
		error_message TEXT NOT NULL DEFAULT '',
		transcription TEXT NOT NULL DEFAULT '',
		translation TEXT NOT NULL DEFAULT '',
		sentiment TEXT NOT NULL DEFAULT 'neutral',
		sentiment_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		summary TEXT NOT NULL DEFAULT '',
		coaching_feedback TEXT NOT NULL DEFAULT '',
		keywords JSONB NOT NULL DEFAULT '[]',
		strengths JSONB NOT NULL DEFAULT '[]',
		improvements JSONB NOT NULL DEFAULT '[]',
		overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		opening_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		closing_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		speaking_quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		processing_time_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(bulk_session_id, file_index)
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
