// Package workflow implements the multi-note summary workflow: bounded
// fan-out of per-note summaries, a fan-in comprehensive summary, and
// confidence scoring with at most one correction pass.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/cache"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/events"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/similarity"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/task"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Step names surfaced on task status events.
const (
	StepSingleSummary = "single_summary"
	StepPerNote       = "per_note_summaries"
	StepComprehensive = "comprehensive_summary"
	StepConfidence    = "confidence_scoring"
	StepCorrection    = "summary_correction"
)

// Processing methods recorded on the result.
const (
	MethodSingle         = "single"
	MethodMulti          = "multi_workflow"
	MethodMultiCorrected = "multi_workflow_corrected"
)

// MultiSummary runs the multi-note summary workflow.
type MultiSummary struct {
	Client model.Client
	Cache  *cache.Cache

	// MinNotesThreshold is the note count below which the single-summary
	// path is taken. Task input may override it.
	MinNotesThreshold int
	// ConfidenceThreshold is the mean similarity below which one
	// correction pass runs.
	ConfidenceThreshold float64
	// FanoutLimit bounds concurrent per-note summaries within one task.
	FanoutLimit int
	// MaxNotes bounds the note count of one workflow.
	MaxNotes int
	// MaxContentLength bounds each note's content, in characters.
	MaxContentLength int
}

// SummaryResult is the terminal result of a multi-note summary task.
type SummaryResult struct {
	Title            string    `json:"title"`
	Topic            string    `json:"topic"`
	ContentMarkdown  string    `json:"content_markdown"`
	Keywords         []string  `json:"keywords,omitempty"`
	ConfidenceScores []float64 `json:"confidence_scores"`
	ProcessingMethod string    `json:"processing_method"`
}

// Process is the task.ProcessFunc of multi-note summary tasks.
func (w *MultiSummary) Process(ctx context.Context, t *task.Task) (interface{}, error) {
	var in = t.Input()
	if err := w.validate(in.Notes); err != nil {
		return nil, err
	}

	var titles = make([]string, len(in.Notes))
	var contents = make([]string, len(in.Notes))
	for i, n := range in.Notes {
		titles[i] = n.Title
		contents[i] = n.Content
	}

	var key = cache.NotesKey(string(task.KindMultiSummary), titles, contents)
	if entry, ok := w.Cache.Get(key); ok {
		t.Intermediate(events.StageCacheHit, map[string]interface{}{
			"cached_at": entry.CreatedAt,
		})
		return entry.Result, nil
	}

	var threshold = w.MinNotesThreshold
	if in.MinNotesThreshold > 0 {
		threshold = in.MinNotesThreshold
	}

	var result *SummaryResult
	var err error
	if len(in.Notes) < threshold {
		result, err = w.single(ctx, t, in.Notes)
	} else {
		result, err = w.multi(ctx, t, in.Notes)
	}
	if err != nil {
		return nil, err
	}

	w.Cache.Put(key, result)
	return result, nil
}

// single concatenates the notes and summarizes them in one model call.
func (w *MultiSummary) single(ctx context.Context, t *task.Task, notes []task.Note) (*SummaryResult, error) {
	t.SetStep(StepSingleSummary, 30)

	var parts = make([]string, len(notes))
	for i, n := range notes {
		parts[i] = noteText(n)
	}

	var summary, err = w.Client.Summarize(ctx, strings.Join(parts, "\n\n"), model.PromptSingleSummary)
	if err != nil {
		return nil, classifyModelErr(err)
	}
	t.Intermediate(events.StageSummary, summary)

	return &SummaryResult{
		Title:            summary.Title,
		Topic:            summary.Topic,
		ContentMarkdown:  summary.ContentMarkdown,
		Keywords:         summary.Keywords,
		ConfidenceScores: []float64{1.0},
		ProcessingMethod: MethodSingle,
	}, nil
}

// multi fans out per-note summaries, fans them into a comprehensive
// summary, and scores it. A mean confidence below the threshold earns
// exactly one correction pass.
func (w *MultiSummary) multi(ctx context.Context, t *task.Task, notes []task.Note) (*SummaryResult, error) {
	t.SetStep(StepPerNote, 10)

	var total = len(notes)
	var perNote = make([]model.Summary, total)

	var mu sync.Mutex
	var completed int

	var g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(w.FanoutLimit)
	for i := range notes {
		var i = i
		g.Go(func() error {
			var s, err = w.Client.Summarize(gctx, noteText(notes[i]), model.PromptPerNoteSummary)
			if err != nil {
				return classifyModelErr(err)
			}
			perNote[i] = s

			mu.Lock()
			completed++
			var done = completed
			mu.Unlock()

			t.Intermediate(events.StagePerNoteSummary, map[string]interface{}{
				"index":   i,
				"total":   total,
				"summary": s,
			})
			// Fan-out owns the 10..60 progress band.
			t.SetStep(StepPerNote, 10+50*done/total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var perNoteTexts = make([]string, total)
	for i, s := range perNote {
		perNoteTexts[i] = s.ContentMarkdown
	}

	t.SetStep(StepComprehensive, 60)
	var comprehensive, err = w.Client.Summarize(ctx, joinSummaries(perNote), model.PromptComprehensive)
	if err != nil {
		return nil, classifyModelErr(err)
	}
	t.SetStep(StepComprehensive, 75)
	t.Intermediate(events.StageComprehensive, comprehensive)

	t.SetStep(StepConfidence, 80)
	var scores = similarity.Scores(comprehensive.ContentMarkdown, perNoteTexts)
	var mean = similarity.Mean(scores)
	var method = MethodMulti

	if mean < w.ConfidenceThreshold {
		log.WithFields(log.Fields{
			"task":      t.ID(),
			"mean":      mean,
			"threshold": w.ConfidenceThreshold,
		}).Info("comprehensive summary below confidence threshold, correcting")

		t.SetStep(StepCorrection, 85)
		var corrected string
		if corrected, err = w.Client.Correct(ctx, comprehensive.ContentMarkdown); err != nil {
			return nil, classifyModelErr(err)
		}
		comprehensive.ContentMarkdown = corrected
		scores = similarity.Scores(comprehensive.ContentMarkdown, perNoteTexts)
		mean = similarity.Mean(scores)
		method = MethodMultiCorrected
		t.Intermediate(events.StageComprehensive, comprehensive)
	}

	t.Intermediate(events.StageConfidence, map[string]interface{}{
		"scores": scores,
		"mean":   mean,
	})

	return &SummaryResult{
		Title:            comprehensive.Title,
		Topic:            comprehensive.Topic,
		ContentMarkdown:  comprehensive.ContentMarkdown,
		Keywords:         comprehensive.Keywords,
		ConfidenceScores: scores,
		ProcessingMethod: method,
	}, nil
}

func (w *MultiSummary) validate(notes []task.Note) error {
	if len(notes) == 0 {
		return task.Errorf(task.ErrorInvalidInput, "no notes provided")
	}
	if len(notes) > w.MaxNotes {
		return task.Errorf(task.ErrorInvalidInput,
			"%d notes exceed the %d note limit", len(notes), w.MaxNotes)
	}
	for i, n := range notes {
		if strings.TrimSpace(n.Content) == "" {
			return task.Errorf(task.ErrorInvalidInput, "note %d has empty content", i)
		}
		if c := utf8.RuneCountInString(n.Content); c > w.MaxContentLength {
			return task.Errorf(task.ErrorInvalidInput,
				"note %d of %d characters exceeds the %d character limit", i, c, w.MaxContentLength)
		}
	}
	return nil
}

// noteText is the model-facing text of one note.
func noteText(n task.Note) string {
	if title := strings.TrimSpace(n.Title); title != "" {
		return fmt.Sprintf("## %s\n\n%s", title, n.Content)
	}
	return n.Content
}

// joinSummaries is the fan-in input of the comprehensive summary.
func joinSummaries(perNote []model.Summary) string {
	var parts = make([]string, len(perNote))
	for i, s := range perNote {
		parts[i] = fmt.Sprintf("### %s\n\n%s", s.Title, s.ContentMarkdown)
	}
	return strings.Join(parts, "\n\n")
}

func classifyModelErr(err error) error {
	if errors.Is(err, model.ErrUnavailable) {
		return task.WrapError(task.ErrorModelUnavailable, err)
	}
	return err
}
