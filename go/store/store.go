// Package store defines the persistence collaborator of the pipelines:
// storage of enriched contents, tags, and their associations.
package store

import (
	"context"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/google/uuid"
)

// Store is the contract the pipelines persist through. Implementations
// must make UpsertTag and Associate idempotent.
type Store interface {
	// StoreContent persists the corrected text, summary artifact, and
	// knowledge record of a completed smart note, returning its id.
	StoreContent(ctx context.Context, owner uuid.UUID, correctedText string, summary model.Summary, knowledgeText string) (int64, error)

	// ListExistingTags returns up to limit known tag names.
	ListExistingTags(ctx context.Context, limit int) ([]string, error)

	// UpsertTag mints a tag on first reference and returns its id.
	UpsertTag(ctx context.Context, name string) (int64, error)

	// Associate links a tag to a content with a confidence, idempotent
	// on (contentID, tagID).
	Associate(ctx context.Context, contentID, tagID int64, confidence float64) error

	// SetContentPublic publishes a content into the community layer.
	SetContentPublic(ctx context.Context, contentID int64, publicTitle, publicDescription string, publishedAt time.Time) error
}
