package steploop

import (
	"fmt"
	"strings"

	"github.com/artemgetmann/memv2/pkg/retriever"
)

// estimateTokens gives a rough token count, grounded on the teacher's
// word-based CacheOptimizer.EstimateTokens: good enough for a budget guard,
// not a real tokenizer.
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return len(strings.Fields(s))
}

// buildLessonsBlock formats retrieved hits into the prompt's lessons
// section, one short-coded line per lesson so the model can cite which
// lesson it used. When maxTokens > 0 the block is curated to fit: lowest-
// reliability lessons are dropped first (among equal reliability, the
// lowest-ranked, since hits arrive score-sorted) until the block's
// estimated token count is within budget.
func buildLessonsBlock(hits []retriever.Hit, maxTokens int) string {
	if len(hits) == 0 {
		return ""
	}

	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = fmt.Sprintf("[%s] %s", h.Lesson.ShortCode(), h.Lesson.RuleText)
	}

	if maxTokens <= 0 {
		return strings.Join(lines, "\n")
	}

	kept := lines
	keptHits := hits
	for len(kept) > 0 && estimateTokens(strings.Join(kept, "\n")) > maxTokens {
		worst := 0
		for i, h := range keptHits {
			if h.Lesson.Reliability() <= keptHits[worst].Lesson.Reliability() {
				worst = i
			}
		}
		kept = append(append([]string(nil), kept[:worst]...), kept[worst+1:]...)
		keptHits = append(append([]retriever.Hit(nil), keptHits[:worst]...), keptHits[worst+1:]...)
	}
	return strings.Join(kept, "\n")
}

// buildInitialPrompt assembles the per-session setup prompt (spec 4.7,
// step 3): task text, optional domain knowledge, the lessons block, and a
// description of the tool schema.
func buildInitialPrompt(task Task, knowledge string, lessonsBlock string, toolSchemaDescription string) string {
	var b strings.Builder
	b.WriteString(task.TaskText)
	b.WriteString("\n")

	if knowledge != "" {
		b.WriteString("\nDomain notes:\n")
		b.WriteString(knowledge)
		b.WriteString("\n")
	}

	if lessonsBlock != "" {
		b.WriteString("\nLessons from prior sessions:\n")
		b.WriteString(lessonsBlock)
		b.WriteString("\n")
	}

	if toolSchemaDescription != "" {
		b.WriteString("\nAvailable tool:\n")
		b.WriteString(toolSchemaDescription)
		b.WriteString("\n")
	}

	return b.String()
}

// onErrorHintBlock formats on-error retrieval hits for the tool-result
// message sent back to the model after a failed call (spec 4.7, step 6).
func onErrorHintBlock(hits []retriever.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("[%s] %s", h.Lesson.ShortCode(), h.Lesson.RuleText))
	}
	return "Hints from prior sessions:\n" + strings.Join(lines, "\n")
}
