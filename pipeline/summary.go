package pipeline

import (
	"fmt"
	"strings"

	"github.com/poiesic/papermill/core"
)

const contextSeparator = "\n\n"

const promptTemplate = `You are an expert paper analyst. Return ONLY valid JSON with both English and Chinese fields:
{
  "long_summary_en": ["bullet 1", "... 4-8 bullets"],
  "long_summary_zh": ["要点1", "... 4-8 bullets"],
  "one_liner_en": "one sentence TL;DR in English",
  "one_liner_zh": "中文一句话总结",
  "snarky_comment_en": "a witty but professional remark",
  "snarky_comment_zh": "简短犀利的中文点评",
  "domains_en": ["domain1", "domain2"],
  "domains_zh": ["领域1", "领域2"],
  "tasks_en": ["task1", "task2"],
  "tasks_zh": ["任务1", "任务2"],
  "keywords_en": ["k1", "k2", "... up to 8"],
  "keywords_zh": ["关键词1", "关键词2", "... up to 8"]
}
Use plain text, no Markdown fences, no extra keys.

Title: %s
Abstract: %s
Excerpts:
%s
`

// BuildPrompt renders the summarization prompt for one document.
func BuildPrompt(doc *core.Document, context string) string {
	return fmt.Sprintf(promptTemplate, doc.Label(), doc.Abstract, context)
}

// BuildContext joins segment contents in order, separated by blank lines,
// stopping once budget characters are used. The last piece is cut so the
// result never exceeds budget.
func BuildContext(segments []*core.Segment, budget int) string {
	var (
		b     strings.Builder
		used  int
		sep   = len([]rune(contextSeparator))
		first = true
	)
	for _, seg := range segments {
		cost := 0
		if !first {
			cost = sep
		}
		remaining := budget - used - cost
		if remaining <= 0 {
			break
		}

		content := []rune(seg.Content)
		if len(content) > remaining {
			content = content[:remaining]
		}
		if !first {
			b.WriteString(contextSeparator)
		}
		b.WriteString(string(content))
		used += cost + len(content)
		first = false
	}
	return b.String()
}

// MapSummary converts a validated reply into a summary record and its tags.
// English and Chinese variants are combined, with the unsuffixed legacy keys
// used when neither is present.
func MapSummary(documentID core.ID, model string, obj map[string]any) (*core.Summary, []*core.Tag) {
	summary := &core.Summary{
		DocumentId:    documentID,
		Model:         model,
		LongSummary:   bilingual(obj, "long_summary"),
		OneLiner:      bilingual(obj, "one_liner"),
		SnarkyComment: bilingual(obj, "snarky_comment"),
	}

	var tags []*core.Tag
	add := func(tagType string, value any) {
		for _, v := range textList(value) {
			tags = append(tags, &core.Tag{DocumentId: documentID, Type: tagType, Value: v})
		}
	}
	add(core.TagTypeDomains, firstPresent(obj, "domains_en", "domains"))
	add(core.TagTypeDomainsZh, obj["domains_zh"])
	add(core.TagTypeTasks, firstPresent(obj, "tasks_en", "tasks"))
	add(core.TagTypeTasksZh, obj["tasks_zh"])
	add(core.TagTypeKeywords, firstPresent(obj, "keywords_en", "keywords"))
	add(core.TagTypeKeywordsZh, obj["keywords_zh"])

	return summary, tags
}

func bilingual(obj map[string]any, key string) string {
	var parts []string
	for _, k := range []string{key + "_en", key + "_zh"} {
		if s := text(obj[k]); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	return text(obj[key])
}

// firstPresent returns the first value among keys that is not empty.
func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if len(textList(obj[k])) > 0 {
			return obj[k]
		}
	}
	return nil
}

// text renders a string or list value; lists are joined by newlines.
func text(v any) string {
	return strings.Join(textList(v), "\n")
}

func textList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			if s := fmt.Sprint(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}
