package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTextKeyNormalization(t *testing.T) {
	var base = TextKey("smart_note", "Physics", "光速约为3×10^8 m/s")

	// Surrounding whitespace and title case do not change the key.
	require.Equal(t, base, TextKey("smart_note", "  physics ", "\n光速约为3×10^8 m/s  "))

	// Content, title, and kind all participate.
	require.NotEqual(t, base, TextKey("smart_note", "Physics", "光速约为 3×10^8 m/s"))
	require.NotEqual(t, base, TextKey("smart_note", "Chemistry", "光速约为3×10^8 m/s"))
	require.NotEqual(t, base, TextKey("multi_summary", "Physics", "光速约为3×10^8 m/s"))
}

func TestTextKeyNFC(t *testing.T) {
	// "é" composed (U+00E9) versus decomposed (U+0065 U+0301).
	require.Equal(t,
		TextKey("smart_note", "t", "café"),
		TextKey("smart_note", "t", "café"))
}

func TestNotesKeyOrderMatters(t *testing.T) {
	var a = NotesKey("multi_summary", []string{"A", "B"}, []string{"太阳是恒星", "月亮绕地球转"})
	var b = NotesKey("multi_summary", []string{"B", "A"}, []string{"月亮绕地球转", "太阳是恒星"})
	require.NotEqual(t, a, b)

	require.Equal(t, a, NotesKey("multi_summary", []string{" a ", " b "}, []string{" 太阳是恒星 ", " 月亮绕地球转 "}))
}

func TestCacheRoundTrip(t *testing.T) {
	var c = New(8, time.Hour)
	var k = TextKey("smart_note", "t", "content")

	var _, ok = c.Get(k)
	require.False(t, ok)

	c.Put(k, "result")
	var e, ok2 = c.Get(k)
	require.True(t, ok2)
	require.Equal(t, "result", e.Result)
	require.Equal(t, "smart_note", e.Kind)
}

func TestCacheBoundedByCount(t *testing.T) {
	var c = New(2, time.Hour)
	var k1 = TextKey("smart_note", "t", "one")
	var k2 = TextKey("smart_note", "t", "two")
	var k3 = TextKey("smart_note", "t", "three")

	c.Put(k1, 1)
	c.Put(k2, 2)
	c.Get(k1) // Refresh k1; k2 becomes the eviction candidate.
	c.Put(k3, 3)

	require.Equal(t, 2, c.Len())
	var _, ok = c.Get(k2)
	require.False(t, ok)
	_, ok = c.Get(k1)
	require.True(t, ok)
}

func TestCacheEntriesExpire(t *testing.T) {
	var c = New(8, 10*time.Millisecond)
	var k = TextKey("smart_note", "t", "short-lived")
	c.Put(k, "v")

	time.Sleep(30 * time.Millisecond)
	var _, ok = c.Get(k)
	require.False(t, ok)
}
