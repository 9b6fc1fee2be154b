package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgInvalidTextEncoding = "22P02"
)

const analysisSessionColumns = `id, user_id, session_name, source_language, file_name, file_size, mime_type, status, created_at, updated_at`

const analysisFieldColumns = `transcription, translation, sentiment, sentiment_score, summary, coaching_feedback,
	keywords, strengths, improvements, overall_score, opening_score, closing_score, speaking_quality_score`

const bulkSessionColumns = `id, user_id, session_name, source_language, total_files, completed_files, failed_files, status,
	average_overall_score, average_opening_score, average_closing_score, average_speaking_score,
	sentiment_positive, sentiment_neutral, sentiment_negative,
	sentiment_positive_pct, sentiment_neutral_pct, sentiment_negative_pct,
	top_keywords, strongest_area, weakest_area, recommendations, created_at, updated_at, completed_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// translateError maps driver errors onto the repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
		case pgInvalidTextEncoding:
			// malformed uuid in a lookup
			return repository.ErrNotFound
		}
	}
	return err
}

func marshalList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

type analysisJSON struct {
	keywords, strengths, improvements []byte
}

func encodeAnalysisJSON(f repository.AnalysisFields) (analysisJSON, error) {
	var out analysisJSON
	var err error
	if out.keywords, err = marshalList(f.Keywords); err != nil {
		return out, err
	}
	if out.strengths, err = marshalList(f.Strengths); err != nil {
		return out, err
	}
	if out.improvements, err = marshalList(f.Improvements); err != nil {
		return out, err
	}
	return out, nil
}

func (j analysisJSON) decodeInto(f *repository.AnalysisFields) error {
	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{j.keywords, &f.Keywords},
		{j.strengths, &f.Strengths},
		{j.improvements, &f.Improvements},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return fmt.Errorf("decode analysis list: %w", err)
		}
	}
	return nil
}

func analysisFieldArgs(f repository.AnalysisFields, j analysisJSON) []any {
	return []any{
		f.Transcription, f.Translation, f.Sentiment, f.SentimentScore, f.Summary, f.CoachingFeedback,
		j.keywords, j.strengths, j.improvements,
		f.OverallScore, f.OpeningScore, f.ClosingScore, f.SpeakingQualityScore,
	}
}

func analysisFieldDests(f *repository.AnalysisFields, j *analysisJSON) []any {
	return []any{
		&f.Transcription, &f.Translation, &f.Sentiment, &f.SentimentScore, &f.Summary, &f.CoachingFeedback,
		&j.keywords, &j.strengths, &j.improvements,
		&f.OverallScore, &f.OpeningScore, &f.ClosingScore, &f.SpeakingQualityScore,
	}
}

func scanAnalysisSession(row pgx.Row) (*repository.AnalysisSession, error) {
	var s repository.AnalysisSession
	err := row.Scan(&s.ID, &s.UserID, &s.SessionName, &s.SourceLanguage, &s.FileName, &s.FileSize, &s.MIMEType, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

func (r *PostgresRepository) CreateAnalysisSession(ctx context.Context, input repository.CreateAnalysisSessionInput) (*repository.AnalysisSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO analysis_sessions (user_id, session_name, source_language, file_name, file_size, mime_type, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		 RETURNING `+analysisSessionColumns,
		input.UserID, input.SessionName, input.SourceLanguage, input.FileName, input.FileSize, input.MIMEType)
	return scanAnalysisSession(row)
}

func (r *PostgresRepository) GetAnalysisSession(ctx context.Context, id string) (*repository.AnalysisSession, error) {
	s, err := scanAnalysisSession(r.pool.QueryRow(ctx,
		`SELECT `+analysisSessionColumns+` FROM analysis_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	var res repository.AnalysisResult
	var j analysisJSON
	dests := append([]any{&res.ID, &res.SessionID}, analysisFieldDests(&res.AnalysisFields, &j)...)
	dests = append(dests, &res.CreatedAt)
	err = r.pool.QueryRow(ctx,
		`SELECT id, session_id, `+analysisFieldColumns+`, created_at FROM analysis_results WHERE session_id = $1`, id).
		Scan(dests...)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return s, nil
	case err != nil:
		return nil, err
	}
	if err := j.decodeInto(&res.AnalysisFields); err != nil {
		return nil, err
	}
	s.Result = &res
	return s, nil
}

func (r *PostgresRepository) ListAnalysisSessions(ctx context.Context, userID string) ([]repository.AnalysisSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+analysisSessionColumns+` FROM analysis_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.AnalysisSession{}
	for rows.Next() {
		s, err := scanAnalysisSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) RenameAnalysisSession(ctx context.Context, id, name string) error {
	return r.execOne(ctx,
		`UPDATE analysis_sessions SET session_name = $2, updated_at = NOW() WHERE id = $1`, id, name)
}

func (r *PostgresRepository) UpdateAnalysisSessionStatus(ctx context.Context, id string, status repository.SessionStatus) error {
	return r.execOne(ctx,
		`UPDATE analysis_sessions SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
}

func (r *PostgresRepository) DeleteAnalysisSession(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM analysis_sessions WHERE id = $1`, id)
}

func (r *PostgresRepository) FindCompletedSessionByFile(ctx context.Context, userID, fileName string, fileSize int64) (*repository.AnalysisSession, error) {
	s, err := scanAnalysisSession(r.pool.QueryRow(ctx,
		`SELECT `+analysisSessionColumns+` FROM analysis_sessions
		 WHERE user_id = $1 AND file_name = $2 AND file_size = $3 AND status = 'completed'
		 ORDER BY created_at DESC LIMIT 1`,
		userID, fileName, fileSize))
	if err != nil {
		return nil, err
	}
	return r.GetAnalysisSession(ctx, s.ID)
}

func (r *PostgresRepository) InsertAnalysisResult(ctx context.Context, input repository.InsertAnalysisResultInput) (*repository.AnalysisResult, error) {
	j, err := encodeAnalysisJSON(input.AnalysisFields)
	if err != nil {
		return nil, err
	}
	args := append([]any{input.SessionID}, analysisFieldArgs(input.AnalysisFields, j)...)
	res := repository.AnalysisResult{SessionID: input.SessionID, AnalysisFields: input.AnalysisFields}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO analysis_results (session_id, `+analysisFieldColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id, created_at`,
		args...).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &res, nil
}

func scanBulkSession(row pgx.Row) (*repository.BulkAnalysisSession, error) {
	var s repository.BulkAnalysisSession
	var topKeywords, recommendations []byte
	err := row.Scan(
		&s.ID, &s.UserID, &s.SessionName, &s.SourceLanguage, &s.TotalFiles, &s.CompletedFiles, &s.FailedFiles, &s.Status,
		&s.AverageOverallScore, &s.AverageOpeningScore, &s.AverageClosingScore, &s.AverageSpeakingScore,
		&s.SentimentCounts.Positive, &s.SentimentCounts.Neutral, &s.SentimentCounts.Negative,
		&s.SentimentPercentages.Positive, &s.SentimentPercentages.Neutral, &s.SentimentPercentages.Negative,
		&topKeywords, &s.StrongestArea, &s.WeakestArea, &recommendations, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if len(topKeywords) > 0 {
		if err := json.Unmarshal(topKeywords, &s.TopKeywords); err != nil {
			return nil, fmt.Errorf("decode top keywords: %w", err)
		}
	}
	if len(recommendations) > 0 {
		if err := json.Unmarshal(recommendations, &s.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	return &s, nil
}

func (r *PostgresRepository) CreateBulkSession(ctx context.Context, input repository.CreateBulkSessionInput) (*repository.BulkAnalysisSession, error) {
	return scanBulkSession(r.pool.QueryRow(ctx,
		`INSERT INTO bulk_analysis_sessions (user_id, session_name, source_language, total_files, status)
		 VALUES ($1, $2, $3, $4, 'processing')
		 RETURNING `+bulkSessionColumns,
		input.UserID, input.SessionName, input.SourceLanguage, input.TotalFiles))
}

func (r *PostgresRepository) GetBulkSession(ctx context.Context, id string) (*repository.BulkAnalysisSession, error) {
	return scanBulkSession(r.pool.QueryRow(ctx,
		`SELECT `+bulkSessionColumns+` FROM bulk_analysis_sessions WHERE id = $1`, id))
}

func (r *PostgresRepository) ListBulkSessions(ctx context.Context, userID string) ([]repository.BulkAnalysisSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bulkSessionColumns+` FROM bulk_analysis_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.BulkAnalysisSession{}
	for rows.Next() {
		s, err := scanBulkSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) DeleteBulkSession(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM bulk_analysis_sessions WHERE id = $1`, id)
}

func (r *PostgresRepository) InsertBulkFileResult(ctx context.Context, result repository.BulkFileResult) (*repository.BulkFileResult, error) {
	j, err := encodeAnalysisJSON(result.AnalysisFields)
	if err != nil {
		return nil, err
	}
	out := result
	counter := "completed_files"
	if result.Status == repository.FileStatusFailed {
		counter = "failed_files"
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		args := []any{result.BulkSessionID, result.FileIndex, result.FileName, result.FileSize, string(result.Status), result.ErrorMessage}
		args = append(args, analysisFieldArgs(result.AnalysisFields, j)...)
		args = append(args, result.ProcessingTimeMs)
		if err := tx.QueryRow(ctx,
			`INSERT INTO bulk_file_results (bulk_session_id, file_index, file_name, file_size, status, error_message,
				`+analysisFieldColumns+`, processing_time_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
			 RETURNING id, created_at`,
			args...).Scan(&out.ID, &out.CreatedAt); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE bulk_analysis_sessions SET `+counter+` = `+counter+` + 1, updated_at = NOW() WHERE id = $1`,
			result.BulkSessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}

func (r *PostgresRepository) ListBulkFileResults(ctx context.Context, bulkSessionID string) ([]repository.BulkFileResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, bulk_session_id, file_index, file_name, file_size, status, error_message,
			`+analysisFieldColumns+`, processing_time_ms, created_at
		 FROM bulk_file_results WHERE bulk_session_id = $1 ORDER BY file_index ASC`,
		bulkSessionID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	list := []repository.BulkFileResult{}
	for rows.Next() {
		var f repository.BulkFileResult
		var j analysisJSON
		dests := []any{&f.ID, &f.BulkSessionID, &f.FileIndex, &f.FileName, &f.FileSize, &f.Status, &f.ErrorMessage}
		dests = append(dests, analysisFieldDests(&f.AnalysisFields, &j)...)
		dests = append(dests, &f.ProcessingTimeMs, &f.CreatedAt)
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		if err := j.decodeInto(&f.AnalysisFields); err != nil {
			return nil, err
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// updateBulkSummarySQL leaves completed_files and failed_files alone; those
// counters move only with InsertBulkFileResult so they match stored rows.
const updateBulkSummarySQL = `UPDATE bulk_analysis_sessions SET
	status = $2,
	average_overall_score = $3, average_opening_score = $4, average_closing_score = $5, average_speaking_score = $6,
	sentiment_positive = $7, sentiment_neutral = $8, sentiment_negative = $9,
	sentiment_positive_pct = $10, sentiment_neutral_pct = $11, sentiment_negative_pct = $12,
	top_keywords = $13, strongest_area = $14, weakest_area = $15, recommendations = $16,
	updated_at = NOW(),
	completed_at = CASE WHEN $2 = 'processing' THEN completed_at ELSE NOW() END
 WHERE id = $1`

func (r *PostgresRepository) UpdateBulkSummary(ctx context.Context, id string, summary repository.BatchSummary) error {
	topKeywords, err := marshalList(summary.TopKeywords)
	if err != nil {
		return err
	}
	recommendations, err := marshalList(summary.Recommendations)
	if err != nil {
		return err
	}
	return r.execOne(ctx, updateBulkSummarySQL,
		id, string(summary.Status),
		summary.AverageOverallScore, summary.AverageOpeningScore, summary.AverageClosingScore, summary.AverageSpeakingScore,
		summary.SentimentCounts.Positive, summary.SentimentCounts.Neutral, summary.SentimentCounts.Negative,
		summary.SentimentPercentages.Positive, summary.SentimentPercentages.Neutral, summary.SentimentPercentages.Negative,
		topKeywords, summary.StrongestArea, summary.WeakestArea, recommendations,
	)
}

func (r *PostgresRepository) FailStaleBulkSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bulk_analysis_sessions SET status = 'failed', updated_at = NOW(), completed_at = NOW()
		 WHERE status = 'processing' AND updated_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
