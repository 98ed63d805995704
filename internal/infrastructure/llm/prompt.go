package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

const (
	classifyBudget  = 8000
	structureBudget = 10000
	verifyBudget    = 2000
)

const systemPrompt = `You organize training material for a life insurance sales school into a knowledge base.
Always answer with a single JSON object and nothing else unless told otherwise.`

// Truncate keeps the first limit runes of text.
func Truncate(text string, limit int) string {
	r := []rune(text)
	if limit <= 0 || len(r) <= limit {
		return text
	}
	return string(r[:limit])
}

func buildClassificationPrompt(tax domain.Taxonomy, text string) string {
	var cats strings.Builder
	names := make([]string, 0, len(tax.Categories))
	for name := range tax.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&cats, "- %s: %s\n", name, strings.Join(tax.Categories[name], ", "))
	}

	return fmt.Sprintf(`Classify the text below.

Categories and their sub-categories (pick exactly one category and one of its sub-categories):
%s
Priorities: %s
- high: core know-how used daily in sales
- medium: useful in specific situations
- low: background or rare cases

Tags (choose all that apply, none is fine): %s

Text:
%s

Return JSON with keys:
category (string), sub_category (string), priority (string), tags (array of strings),
title (string, at most 60 characters), summary (string, at most 120 characters),
confidence (number from 0 to 1), reasoning (string).`,
		cats.String(),
		strings.Join(tax.Priorities, ", "),
		strings.Join(tax.Tags, ", "),
		Truncate(text, classifyBudget),
	)
}

func buildStructurePrompt(text, category, subCategory string) string {
	return fmt.Sprintf(`Split the text into logical sections and extract Q&A pairs.

Sections:
- break at topic changes and give every section a heading
- keep the original wording of the content
- at least 1 and at most 8 sections

Q&A pairs:
- extract explicit questions with their answers
- convert implicit question/answer passages into Q&A form
- return an empty array when nothing fits

Text (category: %s / sub-category: %s):
%s

Return JSON with keys:
sections (array of {"heading": string, "content": string}),
qa_pairs (array of {"question": string, "answer": string}).`,
		category, subCategory, Truncate(text, structureBudget),
	)
}

func buildVerificationPrompt(text string, r domain.AnalysisResult) string {
	return fmt.Sprintf(`Check the analysis of the text below.

1. Does the category match the content?
2. Is the sub-category plausible?
3. Is the priority appropriate?
4. Are the tags complete and relevant?
5. Do the title and summary describe the content accurately?

Text (first %d characters):
%s

Analysis:
category: %s
sub_category: %s
priority: %s
title: %s
summary: %s
tags: %s

Return JSON with keys:
is_valid (boolean),
corrections (object with optional category, sub_category, priority, title, summary; omit or null when no change),
quality_score (number from 0 to 1),
issues (array of strings).`,
		verifyBudget, Truncate(text, verifyBudget),
		r.Category, r.SubCategory, r.Priority, r.Title, r.Summary, strings.Join(r.Tags, ", "),
	)
}

func buildCleanupPrompt(text string) string {
	return `Below is a raw seminar transcript. Turn it into clean study text.

Rules, in priority order:
1. Never change the speaker's intent, nuance or characteristic phrasing. Keep numbers and proper nouns as spoken.
2. Remove fillers and stutters; collapse repeated phrases.
3. Split into paragraphs at topic changes, three to six sentences each.
4. Mark emphasized or repeated statements in **bold** and key maxims as > quotes.
5. Use bullet lists for enumerations and numbered lists for steps.

Transcript:
` + text + `

Output only the cleaned text, without explanations.`
}

const imagePrompt = `This image comes from sales training material. Describe it precisely in Markdown.

- Tables: reproduce headers and values exactly as a Markdown table, with units.
- Charts: chart type, axis labels and ranges, readable values and the trend.
- Slides: title, bullet hierarchy, emphasized text.
- Photos or illustrations: what is shown, the likely teaching context and any visible text.`
