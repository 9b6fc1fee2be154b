package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/foxseedlab/callinsight/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateError(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, repository.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), repository.ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "analysis_results_session_id_key"}, repository.ErrDuplicate},
		{"bad uuid", &pgconn.PgError{Code: pgInvalidTextEncoding}, repository.ErrNotFound},
		{"passthrough", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translateError(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
	if translateError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestAnalysisJSONRoundTrip(t *testing.T) {
	in := repository.AnalysisFields{
		Keywords:  []string{"refund", "billing"},
		Strengths: []string{"empathy"},
	}
	j, err := encodeAnalysisJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(j.improvements) != "[]" {
		t.Fatalf("expected nil list to encode as [], got %s", j.improvements)
	}

	var out repository.AnalysisFields
	if err := j.decodeInto(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Keywords) != 2 || out.Keywords[1] != "billing" || len(out.Strengths) != 1 || len(out.Improvements) != 0 {
		t.Fatalf("unexpected decoded fields: %+v", out)
	}
}

func TestUpdateBulkSummaryKeepsFileCounters(t *testing.T) {
	for _, col := range []string{"completed_files", "failed_files"} {
		if strings.Contains(updateBulkSummarySQL, col) {
			t.Fatalf("summary update must not overwrite %s", col)
		}
	}
	if got := strings.Count(updateBulkSummarySQL, "$16"); got != 1 {
		t.Fatalf("expected 16 placeholders, $16 seen %d times", got)
	}
}
