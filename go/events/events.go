// Package events implements the per-task progress event bus which feeds
// live status, intermediate artifacts, and terminal outcomes to any
// number of stream subscribers.
package events

// Type discriminates progress events published on a task's bus.
type Type string

const (
	// TypeStatus is a snapshot of task progress and current step.
	TypeStatus Type = "status"
	// TypeIntermediate carries a just-produced stage artifact.
	TypeIntermediate Type = "intermediate"
	// TypeComplete carries the final task result. Terminal.
	TypeComplete Type = "complete"
	// TypeError carries the task's error classification. Terminal.
	TypeError Type = "error"
)

// Event is a discriminated progress record. Exactly the fields of the
// discriminated variant are populated.
type Event struct {
	Type Type `json:"type"`

	// Status snapshot fields.
	Status      string `json:"status,omitempty"`
	Progress    int    `json:"progress,omitempty"`
	CurrentStep string `json:"current_step,omitempty"`

	// Intermediate fields.
	Stage   string      `json:"stage,omitempty"`
	Payload interface{} `json:"payload,omitempty"`

	// Complete field.
	Result interface{} `json:"result,omitempty"`

	// Error fields.
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Terminal is true of complete and error events, which are always the
// final event of a bus.
func (e Event) Terminal() bool {
	return e.Type == TypeComplete || e.Type == TypeError
}

// Stage labels of intermediate events, in their pipeline order. Late
// subscribers receive one replayed intermediate per populated stage,
// in this order.
const (
	StageCacheHit       = "cache_hit"
	StageOCRText        = "ocr_text"
	StageCorrectedText  = "corrected_text"
	StageSummary        = "summary"
	StagePerNoteSummary = "per_note_summary"
	StageComprehensive  = "comprehensive_summary"
	StageConfidence     = "confidence_scores"
	StageContentID      = "content_id"
	StageTags           = "tags"
)
