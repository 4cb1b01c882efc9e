package libpart

import (
	"regexp"
	"strings"
)

var (
	fenceRe  = regexp.MustCompile("(?s)```(?:xml)?\\s*\\n(.*?)```")
	headerRe = regexp.MustCompile(`(?s)(<\?xml.*?</Symbol>)`)
	symbolRe = regexp.MustCompile(`(?s)(<Symbol[\s>].*?</Symbol>)`)
)

// ExtractXML pulls a symbol document out of raw generator output. Generators
// are asked to reply with the complete document, but in practice wrap it in
// fenced code blocks or prose, so we try the likeliest shapes in order.
func ExtractXML(response string) (string, bool) {
	for _, m := range fenceRe.FindAllStringSubmatch(response, -1) {
		candidate := strings.TrimSpace(m[1])
		if strings.HasPrefix(candidate, "<?xml") || strings.HasPrefix(candidate, "<Symbol") {
			return candidate, true
		}
	}

	if m := headerRe.FindStringSubmatch(response); m != nil {
		return m[1], true
	}

	if m := symbolRe.FindStringSubmatch(response); m != nil {
		return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + m[1], true
	}

	stripped := strings.TrimSpace(response)
	if strings.HasPrefix(stripped, "<?xml") || strings.HasPrefix(stripped, "<Symbol") {
		return stripped, true
	}

	return "", false
}
