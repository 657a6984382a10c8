// Package cache implements content-hash de-duplication of pipeline
// results: two tasks with identical normalized input and kind share one
// result.
package cache

import (
	"crypto/sha256"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/text/unicode/norm"
)

// Key identifies a cached result: the task kind plus a SHA-256 over the
// normalized input.
type Key struct {
	Kind string
	Sum  [sha256.Size]byte
}

// Entry is a cached terminal result.
type Entry struct {
	Kind      string
	Result    interface{}
	CreatedAt time.Time
}

// Cache is an LRU of content hashes, bounded by entry count and age.
type Cache struct {
	lru *expirable.LRU[Key, Entry]
}

// New builds a Cache of at most maxEntries entries, each expiring after ttl.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{lru: expirable.NewLRU[Key, Entry](maxEntries, nil, ttl)}
}

// Get returns the entry of a key, marking it recently used.
func (c *Cache) Get(k Key) (Entry, bool) {
	var e, ok = c.lru.Get(k)
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return e, ok
}

// Put stores a terminal result under its content hash.
func (c *Cache) Put(k Key, result interface{}) {
	c.lru.Add(k, Entry{Kind: k.Kind, Result: result, CreatedAt: time.Now()})
}

// Len is the current entry count.
func (c *Cache) Len() int { return c.lru.Len() }

// normalize canonicalizes input for hashing: UTF-8 NFC with leading
// and trailing whitespace stripped.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeTitle additionally lowercases, making titles case-insensitive
// for de-duplication.
func normalizeTitle(s string) string {
	return strings.ToLower(normalize(s))
}

// TextKey hashes a free-text smart-note input.
func TextKey(kind, title, text string) Key {
	var h = sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(normalizeTitle(title)))
	h.Write([]byte{0})
	h.Write([]byte(normalize(text)))

	var k = Key{Kind: kind}
	copy(k.Sum[:], h.Sum(nil))
	return k
}

// NotesKey hashes an ordered multi-note input.
func NotesKey(kind string, titles, contents []string) Key {
	var h = sha256.New()
	h.Write([]byte(kind))
	for i := range contents {
		var title string
		if i < len(titles) {
			title = titles[i]
		}
		h.Write([]byte{0})
		h.Write([]byte(normalizeTitle(title)))
		h.Write([]byte{0})
		h.Write([]byte(normalize(contents[i])))
	}

	var k = Key{Kind: kind}
	copy(k.Sum[:], h.Sum(nil))
	return k
}
