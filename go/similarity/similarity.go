// Package similarity scores how well a comprehensive summary reflects
// the per-note summaries it was derived from: cosine similarity over
// term-frequency vectors of UAX#29 word segments.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
)

// Tokenize segments mixed Chinese and English text into lowercased
// terms. Whitespace and punctuation segments are dropped.
func Tokenize(text string) []string {
	var out []string
	var tokens = words.FromString(text)
	for tokens.Next() {
		var tok = strings.ToLower(strings.TrimSpace(tokens.Value()))
		if tok == "" || !hasTermRune(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func hasTermRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// termFrequency builds the TF vector of tokens.
func termFrequency(tokens []string) map[string]float64 {
	var tf = make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	return tf
}

// Cosine is the cosine similarity of the two texts' term-frequency
// vectors, in [0,1]. Texts with no terms score 0.
func Cosine(a, b string) float64 {
	var tfA = termFrequency(Tokenize(a))
	var tfB = termFrequency(Tokenize(b))
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, wa := range tfA {
		normA += wa * wa
		if wb, ok := tfB[term]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range tfB {
		normB += wb * wb
	}

	var sim = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against floating-point drift past 1.
	return math.Min(1, math.Max(0, sim))
}

// Scores computes the confidence of a comprehensive summary against each
// per-note summary, preserving input order.
func Scores(comprehensive string, perNote []string) []float64 {
	var out = make([]float64, len(perNote))
	for i, s := range perNote {
		out[i] = Cosine(comprehensive, s)
	}
	return out
}

// Mean is the arithmetic mean of scores, 0 for an empty slice.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
