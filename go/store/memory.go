package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
	"github.com/google/uuid"
)

// Memory is an in-memory Store for tests and local development.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	contents map[int64]MemoryContent
	tagIDs   map[string]int64
	tagNames []string // Insertion order, newest last.
	assocs   map[[2]int64]float64

	// FailWrites, when set, rejects every write. Tests use it to drive
	// the persistence_failed path.
	FailWrites bool
}

// MemoryContent is a stored content row of the Memory store.
type MemoryContent struct {
	Owner         uuid.UUID
	CorrectedText string
	Summary       model.Summary
	KnowledgeText string
	Public        bool
	PublicTitle   string
	PublishedAt   time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		contents: make(map[int64]MemoryContent),
		tagIDs:   make(map[string]int64),
		assocs:   make(map[[2]int64]float64),
	}
}

func (m *Memory) StoreContent(_ context.Context, owner uuid.UUID, correctedText string, summary model.Summary, knowledgeText string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return 0, fmt.Errorf("write rejected")
	}
	m.nextID++
	m.contents[m.nextID] = MemoryContent{
		Owner:         owner,
		CorrectedText: correctedText,
		Summary:       summary,
		KnowledgeText: knowledgeText,
	}
	return m.nextID, nil
}

func (m *Memory) ListExistingTags(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for i := len(m.tagNames) - 1; i >= 0 && len(names) < limit; i-- {
		names = append(names, m.tagNames[i])
	}
	return names, nil
}

func (m *Memory) UpsertTag(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return 0, fmt.Errorf("write rejected")
	}
	if id, ok := m.tagIDs[name]; ok {
		return id, nil
	}
	m.nextID++
	m.tagIDs[name] = m.nextID
	m.tagNames = append(m.tagNames, name)
	return m.nextID, nil
}

func (m *Memory) Associate(_ context.Context, contentID, tagID int64, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("write rejected")
	}
	m.assocs[[2]int64{contentID, tagID}] = confidence
	return nil
}

func (m *Memory) SetContentPublic(_ context.Context, contentID int64, publicTitle, _ string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c, ok = m.contents[contentID]
	if !ok {
		return fmt.Errorf("no such content %d", contentID)
	}
	c.Public = true
	c.PublicTitle = publicTitle
	c.PublishedAt = publishedAt
	m.contents[contentID] = c
	return nil
}

// Content returns a stored content row.
func (m *Memory) Content(id int64) (MemoryContent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c, ok = m.contents[id]
	return c, ok
}

// Associations returns the tag associations of a content.
func (m *Memory) Associations(contentID int64) map[int64]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out = make(map[int64]float64)
	for key, conf := range m.assocs {
		if key[0] == contentID {
			out[key[1]] = conf
		}
	}
	return out
}

// SeedTags registers existing tag names.
func (m *Memory) SeedTags(names ...string) {
	for _, n := range names {
		m.UpsertTag(context.Background(), n)
	}
}

var _ Store = (*Memory)(nil)
