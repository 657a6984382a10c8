// Package pipeline implements the four-stage smart-note pipeline:
// recognition, correction, summarization, and persistence with tagging.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"unicode/utf8"

	// Image formats accepted for note uploads.
	_ "image/jpeg"
	_ "image/png"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/cache"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/events"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/store"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/tags"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/task"
	log "github.com/sirupsen/logrus"
)

// Step names surfaced on task status events.
const (
	StepOCR         = "ocr_recognition"
	StepCorrection  = "error_correction"
	StepSummary     = "note_summary"
	StepPersistence = "save_to_database"
)

// SmartNote runs the single-note enrichment pipeline.
type SmartNote struct {
	Client model.Client
	Store  store.Store
	Tags   *tags.Generator
	Cache  *cache.Cache

	// MaxContentLength bounds free-text input, in characters.
	MaxContentLength int
	// MaxImageBytes bounds uploaded note images.
	MaxImageBytes int64
}

// SmartNoteResult is the terminal result of a smart-note task.
type SmartNoteResult struct {
	OCRText       string        `json:"ocr_text"`
	CorrectedText string        `json:"corrected_text"`
	Summary       model.Summary `json:"summary"`
	ContentID     int64         `json:"content_id"`
	Tags          []tags.Tag    `json:"tags"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// Process is the task.ProcessFunc of smart-note tasks.
func (p *SmartNote) Process(ctx context.Context, t *task.Task) (interface{}, error) {
	var in = t.Input()
	var fromImage = len(in.Image) != 0

	if fromImage {
		if err := p.validateImage(in.Image); err != nil {
			return nil, err
		}
	} else if err := p.validateText(in.Text); err != nil {
		return nil, err
	}

	// Free-text inputs are deterministic and de-duplicated by content
	// hash. Image inputs are not: recognition output may vary.
	var key cache.Key
	if !fromImage {
		key = cache.TextKey(string(task.KindSmartNote), in.Title, in.Text)
		if entry, ok := p.Cache.Get(key); ok {
			t.Intermediate(events.StageCacheHit, map[string]interface{}{
				"cached_at": entry.CreatedAt,
			})
			return entry.Result, nil
		}
	}

	// Text input never enters the recognition stage: it surfaces only
	// the skipped ocr_text marker and starts at error correction.
	var ocrText string
	if fromImage {
		t.SetStep(StepOCR, 5)
		var err error
		if ocrText, err = p.Client.OCR(ctx, in.Image, ""); err != nil {
			return nil, classifyModelErr(err)
		}
		t.Intermediate(events.StageOCRText, map[string]interface{}{"text": ocrText})
	} else {
		ocrText = in.Text
		t.Intermediate(events.StageOCRText, map[string]interface{}{"text": ocrText, "skipped": true})
	}

	t.SetStep(StepCorrection, 30)
	var corrected, err = p.Client.Correct(ctx, ocrText)
	if err != nil {
		return nil, classifyModelErr(err)
	}
	if corrected == "" {
		corrected = ocrText
	}
	t.Intermediate(events.StageCorrectedText, map[string]interface{}{"text": corrected})

	t.SetStep(StepSummary, 55)
	var summary model.Summary
	if summary, err = p.Client.Summarize(ctx, corrected, model.PromptNoteSummary); err != nil {
		return nil, classifyModelErr(err)
	}
	t.Intermediate(events.StageSummary, summary)

	t.SetStep(StepPersistence, 80)
	var knowledge = knowledgeRecord(in.Title, corrected)
	var contentID int64
	if contentID, err = p.Store.StoreContent(ctx, t.Owner(), corrected, summary, knowledge); err != nil {
		return nil, task.WrapError(task.ErrorPersistenceFailed, err)
	}
	t.Intermediate(events.StageContentID, contentID)

	var result = &SmartNoteResult{
		OCRText:       ocrText,
		CorrectedText: corrected,
		Summary:       summary,
		ContentID:     contentID,
		Tags:          []tags.Tag{},
	}

	// Tagging is best-effort: its failure downgrades to a warning and
	// the task still completes.
	var selected []tags.Tag
	if selected, err = p.Tags.GenerateAndPersist(ctx, contentID, summary, knowledge); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithFields(log.Fields{"task": t.ID(), "err": err}).Warn("tag generation failed")
		result.Warnings = append(result.Warnings, "tag generation failed")
	} else {
		result.Tags = selected
	}
	t.Intermediate(events.StageTags, result.Tags)

	if !fromImage {
		p.Cache.Put(key, result)
	}
	return result, nil
}

func (p *SmartNote) validateImage(img []byte) error {
	if int64(len(img)) > p.MaxImageBytes {
		return task.Errorf(task.ErrorInvalidInput,
			"image of %d bytes exceeds the %d byte limit", len(img), p.MaxImageBytes)
	}
	var _, format, err = image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return task.Errorf(task.ErrorInvalidInput, "unreadable image: %s", err)
	}
	if format != "png" && format != "jpeg" {
		return task.Errorf(task.ErrorInvalidInput, "image must be PNG or JPEG (got %s)", format)
	}
	return nil
}

func (p *SmartNote) validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return task.Errorf(task.ErrorInvalidInput, "text content is empty")
	}
	if n := utf8.RuneCountInString(text); n > p.MaxContentLength {
		return task.Errorf(task.ErrorInvalidInput,
			"text of %d characters exceeds the %d character limit", n, p.MaxContentLength)
	}
	return nil
}

// knowledgeRecord is the text persisted and offered to tag generation:
// the note title, when present, followed by its corrected content.
func knowledgeRecord(title, corrected string) string {
	if title = strings.TrimSpace(title); title == "" {
		return corrected
	}
	return title + "\n\n" + corrected
}

// classifyModelErr maps model-layer failures onto the surfaced task
// error taxonomy. Context errors pass through for their own classes.
func classifyModelErr(err error) error {
	if errors.Is(err, model.ErrUnavailable) {
		return task.WrapError(task.ErrorModelUnavailable, err)
	}
	return err
}
