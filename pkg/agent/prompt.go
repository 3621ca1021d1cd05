package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	currentTimeToken = "{{CURRENT_TIME}}"
	memoriesToken    = "{{MEMORIES}}"
)

// MaterializeSystemPrompt substitutes the template tokens in a system prompt.
// The current-time token always resolves; the memories token becomes a
// by-category section when memories are supplied and is removed entirely
// otherwise, so the model never sees a bare placeholder.
func MaterializeSystemPrompt(template string, memories []MemoryEntry, now time.Time) string {
	prompt := strings.ReplaceAll(template, currentTimeToken, now.UTC().Format(time.RFC1123))

	if len(memories) == 0 {
		prompt = strings.ReplaceAll(prompt, memoriesToken, "")
		return strings.TrimSpace(prompt) + "\n"
	}

	return strings.TrimSpace(strings.ReplaceAll(prompt, memoriesToken, formatMemories(memories))) + "\n"
}

// formatMemories groups memories by category and renders them as a section
// the model can quote from.
func formatMemories(memories []MemoryEntry) string {
	byCategory := map[string][]MemoryEntry{}
	for _, m := range memories {
		category := m.Category
		if category == "" {
			category = "general"
		}
		byCategory[category] = append(byCategory[category], m)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("Here is what you remember about this user:\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "\n%s:\n", category)
		for _, m := range byCategory[category] {
			fmt.Fprintf(&b, "- %s: %s\n", m.Key, m.Value)
		}
	}
	return b.String()
}
