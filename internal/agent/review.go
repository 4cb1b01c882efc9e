package agent

import (
	"context"
	"strings"

	"github.com/byewind1/gdl-agent/internal/generator"
	"github.com/byewind1/gdl-agent/internal/libpart"
)

// selfReview asks the model to re-read its own first candidate before the
// validator sees it. An LGTM reply keeps the candidate as-is; a reply that
// contains a document replaces it. Generator errors skip the review rather
// than failing the attempt. Returns the (possibly replaced) candidate, the
// tokens spent, and whether a correction was applied.
func (r *Runner) selfReview(ctx context.Context, system string, task Task, candidate string) (string, int, bool) {
	req := generator.Request{
		System:    system,
		Messages:  []generator.Message{{Role: "user", Content: reviewMessage(candidate)}},
		Model:     task.Model,
		MaxTokens: r.MaxTokens,
	}
	resp, err := r.Generator.Generate(ctx, req)
	if err != nil {
		return candidate, 0, false
	}
	tokens := resp.Usage.Total()

	content := strings.TrimSpace(resp.Content)
	if strings.HasPrefix(strings.ToUpper(content), "LGTM") {
		return candidate, tokens, false
	}
	if corrected, ok := libpart.ExtractXML(content); ok {
		return corrected, tokens, true
	}
	// No verdict and no document: treat the review as passed.
	return candidate, tokens, false
}

// reviewMessage frames the candidate for a second look. The review targets
// logical mistakes the structural validator cannot see.
func reviewMessage(candidate string) string {
	var b strings.Builder
	b.WriteString("Review the library part document below as if a colleague wrote it.\n")
	b.WriteString("Look for logical mistakes that structural checks cannot catch: wrong operand order, geometry placed before its transformations, parameters used before they are defined, CALL arguments that do not match the macro's signature.\n\n")
	b.WriteString("If the document is correct, reply with exactly LGTM.\n")
	b.WriteString("If you find problems, reply with the complete corrected document in a fenced ```xml code block.\n\n")
	b.WriteString("```xml\n")
	b.WriteString(candidate)
	if !strings.HasSuffix(candidate, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("```")
	return b.String()
}
