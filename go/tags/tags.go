// Package tags generates and persists content tags from a completed
// summary. Tagging is best-effort: callers downgrade its failures to
// warnings rather than failing the parent task.
package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/store"
	log "github.com/sirupsen/logrus"
)

// existingConfidence is assigned to tags the model re-uses from the
// known tag vocabulary, which carry no model confidence of their own.
const existingConfidence = 0.8

// Tag is a tag associated with a content.
type Tag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	IsNew      bool    `json:"is_new"`
}

// Generator turns summaries into persisted tag associations.
type Generator struct {
	Client model.Client
	Store  store.Store
	// MaxPerContent bounds tags associated with one content.
	MaxPerContent int
	// MaxExisting bounds tag names offered to the model as vocabulary.
	MaxExisting int
}

// GenerateAndPersist asks the model for tag proposals over the summary
// and knowledge record, normalizes them, and persists associations to
// contentID. The returned slice holds at most MaxPerContent tags.
func (g *Generator) GenerateAndPersist(ctx context.Context, contentID int64, summary model.Summary, knowledgeText string) ([]Tag, error) {
	var existing, err = g.Store.ListExistingTags(ctx, g.MaxExisting)
	if err != nil {
		return nil, fmt.Errorf("listing existing tags: %w", err)
	}

	var proposal model.TagProposal
	proposal, err = g.Client.GenerateTags(ctx, model.TagRequest{
		Summary:          summary,
		KnowledgeText:    knowledgeText,
		ExistingTagNames: existing,
	})
	if err != nil {
		return nil, fmt.Errorf("generating tags: %w", err)
	}

	var selected = g.normalize(proposal)
	for _, t := range selected {
		var tagID int64
		if tagID, err = g.Store.UpsertTag(ctx, t.Name); err != nil {
			return nil, fmt.Errorf("persisting tag %q: %w", t.Name, err)
		}
		if err = g.Store.Associate(ctx, contentID, tagID, t.Confidence); err != nil {
			return nil, fmt.Errorf("associating tag %q: %w", t.Name, err)
		}
	}

	log.WithFields(log.Fields{
		"contentID": contentID,
		"tags":      len(selected),
	}).Debug("persisted content tags")

	return selected, nil
}

// normalize trims, drops empties, dedupes case-insensitively with
// existing names winning over new ones, and caps the selection.
func (g *Generator) normalize(proposal model.TagProposal) []Tag {
	var selected []Tag
	var seen = make(map[string]struct{})

	var add = func(t Tag) {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" || len(selected) >= g.MaxPerContent {
			return
		}
		var key = strings.ToLower(t.Name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		if t.Confidence < 0 {
			t.Confidence = 0
		} else if t.Confidence > 1 {
			t.Confidence = 1
		}
		selected = append(selected, t)
	}

	for _, name := range proposal.Existing {
		add(Tag{Name: name, Confidence: existingConfidence})
	}
	for _, nt := range proposal.New {
		add(Tag{Name: nt.Name, Confidence: nt.Confidence, IsNew: true})
	}
	return selected
}
