package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/poiesic/papermill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segs(contents ...string) []*core.Segment {
	out := make([]*core.Segment, len(contents))
	for i, c := range contents {
		out[i] = &core.Segment{Seq: i, Content: c}
	}
	return out
}

func TestBuildContext(t *testing.T) {
	tests := []struct {
		name   string
		input  []*core.Segment
		budget int
		want   string
	}{
		{name: "fits", input: segs("aaa", "bbb"), budget: 100, want: "aaa\n\nbbb"},
		{name: "cuts last piece", input: segs("aaaa", "bbbb"), budget: 8, want: "aaaa\n\nbb"},
		{name: "separator exhausts budget", input: segs("aaaa", "bbbb"), budget: 6, want: "aaaa"},
		{name: "first piece truncated", input: segs("abcdefgh"), budget: 3, want: "abc"},
		{name: "no segments", input: nil, budget: 10, want: ""},
		{name: "counts characters not bytes", input: segs("注意力机制"), budget: 3, want: "注意力"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildContext(tt.input, tt.budget)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.budget)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	doc := &core.Document{Title: "Attention Is All You Need", Abstract: "We propose the Transformer."}

	prompt := BuildPrompt(doc, "excerpt one\n\nexcerpt two")

	assert.Contains(t, prompt, "Title: Attention Is All You Need")
	assert.Contains(t, prompt, "Abstract: We propose the Transformer.")
	assert.True(t, strings.HasSuffix(prompt, "Excerpts:\nexcerpt one\n\nexcerpt two\n"))
	for _, field := range []string{"long_summary_en", "one_liner_zh", "snarky_comment_en", "keywords_zh"} {
		assert.Contains(t, prompt, field)
	}

	untitled := BuildPrompt(&core.Document{Key: "vaswani2017"}, "")
	assert.Contains(t, untitled, "Title: (untitled)")
}

func TestMapSummary_Bilingual(t *testing.T) {
	obj := map[string]any{
		"long_summary_en":   []any{"point one", "point two"},
		"long_summary_zh":   []any{"要点一"},
		"one_liner_en":      "Transformers replace recurrence.",
		"one_liner_zh":      "用注意力取代循环。",
		"snarky_comment_en": "RNNs in shambles.",
		"domains_en":        []any{"nlp"},
		"domains_zh":        []any{"自然语言处理"},
		"tasks_en":          []any{"translation"},
		"keywords_en":       []any{"attention", "transformer"},
		"keywords_zh":       []any{},
	}

	summary, tags := MapSummary(7, "gpt-test", obj)

	assert.Equal(t, core.ID(7), summary.DocumentId)
	assert.Equal(t, "gpt-test", summary.Model)
	assert.Equal(t, "point one\npoint two\n要点一", summary.LongSummary)
	assert.Equal(t, "Transformers replace recurrence.\n用注意力取代循环。", summary.OneLiner)
	assert.Equal(t, "RNNs in shambles.", summary.SnarkyComment)

	var got []string
	for _, tag := range tags {
		assert.Equal(t, core.ID(7), tag.DocumentId)
		got = append(got, tag.Type+"="+tag.Value)
	}
	assert.Equal(t, []string{
		"domains=nlp",
		"domains_zh=自然语言处理",
		"tasks=translation",
		"keywords=attention",
		"keywords=transformer",
	}, got)
}

func TestMapSummary_LegacyKeys(t *testing.T) {
	obj := map[string]any{
		"long_summary":   "legacy long",
		"one_liner":      "legacy short",
		"snarky_comment": nil,
		"domains":        []any{"vision"},
		"tasks":          "segmentation",
		"keywords":       []any{"unet", 3},
	}

	summary, tags := MapSummary(1, "m", obj)

	assert.Equal(t, "legacy long", summary.LongSummary)
	assert.Equal(t, "legacy short", summary.OneLiner)
	assert.Empty(t, summary.SnarkyComment)

	require.Len(t, tags, 4)
	assert.Equal(t, core.TagTypeDomains, tags[0].Type)
	assert.Equal(t, "vision", tags[0].Value)
	assert.Equal(t, core.TagTypeTasks, tags[1].Type)
	assert.Equal(t, "segmentation", tags[1].Value)
	assert.Equal(t, "3", tags[3].Value)
}

func TestMapSummary_EnglishPreferredOverLegacy(t *testing.T) {
	obj := map[string]any{
		"one_liner_en": "new",
		"one_liner":    "old",
		"domains_en":   []any{},
		"domains":      []any{"fallback"},
	}

	summary, tags := MapSummary(1, "m", obj)

	assert.Equal(t, "new", summary.OneLiner)
	require.Len(t, tags, 1)
	assert.Equal(t, "fallback", tags[0].Value)
}

func TestValidateSummaryObject(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		obj := map[string]any{
			"long_summary_en": []any{"a", "b"},
			"one_liner_en":    "c",
			"extra":           map[string]any{"ignored": true},
		}
		assert.NoError(t, ValidateSummaryObject(obj))
	})

	t.Run("legacy only", func(t *testing.T) {
		assert.NoError(t, ValidateSummaryObject(map[string]any{"one_liner": "x"}))
	})

	t.Run("no summary field", func(t *testing.T) {
		assert.NoError(t, ValidateSummaryObject(map[string]any{
			"snarky_comment_en": "meh",
			"keywords_en":       []any{"a", "b"},
		}))
	})

	t.Run("object items", func(t *testing.T) {
		assert.NoError(t, ValidateSummaryObject(map[string]any{
			"long_summary_en": []any{map[string]any{"point": "x"}},
			"one_liner_en":    "ok",
		}))
	})

	t.Run("object and nested values", func(t *testing.T) {
		assert.NoError(t, ValidateSummaryObject(map[string]any{
			"one_liner_en": map[string]any{"text": "nested"},
			"domains_en":   map[string]any{"not": "a list"},
			"keywords_en":  []any{[]any{"nested"}},
		}))
	})

	t.Run("not an object", func(t *testing.T) {
		for _, v := range []any{[]any{1.0, 2.0}, "summary", nil} {
			assert.ErrorIs(t, ValidateSummaryObject(v), ErrInvalidSummary)
		}
	})
}

func TestMapSummary_LooseValues(t *testing.T) {
	obj := map[string]any{
		"long_summary_en": []any{map[string]any{"point": "x"}},
		"one_liner_en":    "ok",
	}

	summary, _ := MapSummary(1, "m", obj)

	assert.Equal(t, "ok", summary.OneLiner)
	assert.Equal(t, "map[point:x]", summary.LongSummary)
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
	assert.Empty(t, NormalizeVector(nil))

	in := []float32{1, 1}
	NormalizeVector(in)
	assert.Equal(t, []float32{1, 1}, in, "input must not be modified")
}
