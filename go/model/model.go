// Package model provides a uniform, typed client over the OCR,
// correction, summarization, and tag-generation models, with retry and
// backoff around every call.
package model

import (
	"context"
	"errors"
	"time"
)

// Op is a tagged model operation variant. Each variant maps to a
// configured model name served by the same OpenAI-compatible endpoint.
type Op string

const (
	OpOCR       Op = "ocr"
	OpCorrect   Op = "correct"
	OpSummarize Op = "summarize"
	OpTagGen    Op = "tag_gen"
)

// budgets bound the latency of a single call of each operation. The
// remaining task deadline applies on top, whichever is sooner.
var budgets = map[Op]time.Duration{
	OpOCR:       60 * time.Second,
	OpCorrect:   45 * time.Second,
	OpSummarize: 60 * time.Second,
	OpTagGen:    45 * time.Second,
}

// ErrUnavailable marks a model call which failed permanently: a
// non-retryable response, or transient failures exhausting all retries.
var ErrUnavailable = errors.New("model unavailable")

// Summary is the structured artifact of a summarize call.
type Summary struct {
	Title           string   `json:"title"`
	Topic           string   `json:"topic"`
	ContentMarkdown string   `json:"content_markdown"`
	Keywords        []string `json:"keywords,omitempty"`
}

// TagRequest carries the inputs of a tag-generation call.
type TagRequest struct {
	Summary          Summary
	KnowledgeText    string
	ExistingTagNames []string
}

// NewTag is a tag name minted by the model, with its confidence.
type NewTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// TagProposal is the model's tag selection: reused existing names, and
// newly minted names with confidences.
type TagProposal struct {
	Existing []string `json:"existing"`
	New      []NewTag `json:"new"`
}

// Client is the uniform call interface of the enrichment models.
type Client interface {
	// OCR extracts UTF-8 text from raw image bytes.
	OCR(ctx context.Context, image []byte, prompt string) (string, error)
	// Correct fixes recognition and transcription errors of text.
	Correct(ctx context.Context, text string) (string, error)
	// Summarize produces a structured summary of text, using the named
	// prompt template.
	Summarize(ctx context.Context, text string, template string) (Summary, error)
	// GenerateTags proposes tags for a persisted summary, preferring
	// names from the provided existing set.
	GenerateTags(ctx context.Context, req TagRequest) (TagProposal, error)
}
