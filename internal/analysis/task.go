// Package analysis runs the per-file pipeline: transcribe, translate,
// analyze and extract keywords, reporting each phase as a Progress event.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/callinsight/internal/ai"
	"github.com/foxseedlab/callinsight/internal/language"
	"github.com/foxseedlab/callinsight/internal/repository"
)

type Phase string

const (
	PhasePending      Phase = "pending"
	PhaseTranscribing Phase = "transcribing"
	PhaseAnalyzing    Phase = "analyzing"
	PhaseCompleted    Phase = "completed"
	PhaseError        Phase = "error"
)

const (
	PercentPending      = 0
	PercentTranscribing = 10
	PercentTranslating  = 70
	PercentAnalyzing    = 80
	PercentKeywords     = 90
	PercentCompleted    = 100
)

var ErrEmptyTranscript = errors.New("transcription returned no speech")

// Progress is one observable step of a file's pipeline.
type Progress struct {
	FileIndex int       `json:"fileIndex"`
	FileName  string    `json:"fileName"`
	Phase     Phase     `json:"phase"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Terminal reports whether no further events follow for the file.
func (p Progress) Terminal() bool {
	return p.Phase == PhaseCompleted || p.Phase == PhaseError
}

// Sink receives progress events synchronously, in order.
type Sink func(Progress)

type Input struct {
	FileName string
	MIMEType string
	Data     []byte
}

type Result struct {
	repository.AnalysisFields
	Duration time.Duration
}

type Task struct {
	transcriber ai.Transcriber
	analyzer    ai.TextAnalyzer
	now         func() time.Time
}

func NewTask(transcriber ai.Transcriber, analyzer ai.TextAnalyzer) *Task {
	return &Task{
		transcriber: transcriber,
		analyzer:    analyzer,
		now:         time.Now,
	}
}

type runState struct {
	task    *Task
	index   int
	name    string
	percent int
	emit    Sink
}

func (s *runState) advance(phase Phase, percent int, message string) {
	s.percent = percent
	s.send(Progress{Phase: phase, Percent: percent, Message: message})
}

func (s *runState) fail(err error) error {
	s.send(Progress{Phase: PhaseError, Percent: s.percent, Error: err.Error()})
	return err
}

func (s *runState) send(p Progress) {
	if s.emit == nil {
		return
	}
	p.FileIndex = s.index
	p.FileName = s.name
	p.At = s.task.now()
	s.emit(p)
}

// Run executes the pipeline for one file. Every phase change is emitted
// before the corresponding call starts; a failure emits PhaseError at the
// last reached percentage and is returned.
func (t *Task) Run(ctx context.Context, index int, in Input, sourceLanguage string, emit Sink) (*Result, error) {
	start := t.now()
	st := &runState{task: t, index: index, name: in.FileName, emit: emit}
	st.advance(PhasePending, PercentPending, "Queued")

	st.advance(PhaseTranscribing, PercentTranscribing, "Transcribing audio")
	transcript, err := t.transcriber.Transcribe(ctx, ai.Audio{
		FileName: in.FileName,
		MIMEType: in.MIMEType,
		Data:     in.Data,
	}, sourceLanguage)
	if err != nil {
		return nil, st.fail(fmt.Errorf("transcribe %s: %w", in.FileName, err))
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, st.fail(fmt.Errorf("transcribe %s: %w", in.FileName, ErrEmptyTranscript))
	}

	st.advance(PhaseAnalyzing, PercentTranslating, "Translating to English")
	translation := transcript
	if !strings.EqualFold(strings.TrimSpace(sourceLanguage), language.English) {
		translation, err = t.analyzer.Translate(ctx, transcript, sourceLanguage)
		if err != nil {
			return nil, st.fail(fmt.Errorf("translate %s: %w", in.FileName, err))
		}
	}

	st.advance(PhaseAnalyzing, PercentAnalyzing, "Analyzing call quality")
	analysis, err := t.analyzer.Analyze(ctx, translation)
	if err != nil {
		return nil, st.fail(fmt.Errorf("analyze %s: %w", in.FileName, err))
	}

	st.advance(PhaseAnalyzing, PercentKeywords, "Extracting keywords")
	keywords, err := t.analyzer.ExtractKeywords(ctx, translation)
	if err != nil {
		return nil, st.fail(fmt.Errorf("extract keywords %s: %w", in.FileName, err))
	}

	res := &Result{
		AnalysisFields: repository.AnalysisFields{
			Transcription:        transcript,
			Translation:          translation,
			Sentiment:            string(analysis.Sentiment),
			SentimentScore:       analysis.SentimentScore,
			Summary:              analysis.Summary,
			CoachingFeedback:     analysis.CoachingFeedback,
			Keywords:             keywords,
			Strengths:            analysis.Strengths,
			Improvements:         analysis.Improvements,
			OverallScore:         OverallScore(analysis.OpeningScore, analysis.ClosingScore, analysis.SpeakingQualityScore, analysis.Sentiment),
			OpeningScore:         Round1(analysis.OpeningScore),
			ClosingScore:         Round1(analysis.ClosingScore),
			SpeakingQualityScore: Round1(analysis.SpeakingQualityScore),
		},
		Duration: t.now().Sub(start),
	}
	st.advance(PhaseCompleted, PercentCompleted, "Analysis complete")
	return res, nil
}
