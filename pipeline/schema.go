package pipeline

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// summaryFields are the keys a summary reply may carry, bilingual and legacy.
var summaryFields = []string{
	"long_summary_en", "long_summary_zh", "long_summary",
	"one_liner_en", "one_liner_zh", "one_liner",
	"snarky_comment_en", "snarky_comment_zh", "snarky_comment",
	"domains_en", "domains_zh", "domains",
	"tasks_en", "tasks_zh", "tasks",
	"keywords_en", "keywords_zh", "keywords",
}

// Field values are loose: objects and nested arrays are flattened with
// fmt.Sprint when the summary is mapped, so only the top-level shape is
// enforced.
const summarySchemaTemplate = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {%s},
  "$defs": {
    "text": {"type": ["null", "string", "number", "boolean", "object", "array"]}
  }
}`

var summarySchema = mustCompileSummarySchema()

func mustCompileSummarySchema() *jsonschema.Schema {
	props := make([]string, len(summaryFields))
	for i, f := range summaryFields {
		props[i] = fmt.Sprintf("%q: {\"$ref\": \"#/$defs/text\"}", f)
	}
	src := fmt.Sprintf(summarySchemaTemplate, strings.Join(props, ", "))

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("summary.json", strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add summary schema: %v", err))
	}
	return compiler.MustCompile("summary.json")
}

// ValidateSummaryObject checks a parsed reply against the summary schema.
// Any JSON object passes; other top-level values fail with ErrInvalidSummary.
func ValidateSummaryObject(v any) error {
	if err := summarySchema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSummary, err)
	}
	return nil
}
