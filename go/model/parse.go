package model

import (
	"encoding/json"
	"strings"
)

const (
	defaultTitle = "笔记总结"
	defaultTopic = "知识整理"
)

// ParseSummary decodes a model response into a Summary. Responses which
// follow the requested JSON schema decode directly; anything else falls
// back to treating the whole response as markdown, with the title taken
// heuristically from its first lines.
func ParseSummary(response string) Summary {
	var s Summary
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &s); err == nil && s.ContentMarkdown != "" {
		if s.Title == "" {
			s.Title = defaultTitle
		}
		if s.Topic == "" {
			s.Topic = defaultTopic
		}
		return s
	}

	var content = strings.TrimSpace(response)
	return Summary{
		Title:           extractTitle(content),
		Topic:           defaultTopic,
		ContentMarkdown: content,
	}
}

// extractTitle scans the first lines of markdown for a usable title:
// the first non-heading, non-empty line, capped at 50 runes.
func extractTitle(content string) string {
	var lines = strings.Split(content, "\n")
	if len(lines) > 3 {
		lines = lines[:3]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var runes = []rune(line)
		if len(runes) > 50 {
			runes = runes[:50]
		}
		return string(runes)
	}
	return defaultTitle
}
