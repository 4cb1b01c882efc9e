package gdl

import "strings"

// Calls returns the distinct quoted CALL targets of a script body, in order
// of first appearance. These are references to external macros, so the batch
// scheduler can build a part only after the macros it calls.
func Calls(src string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range scan(src) {
		if head(s) != "CALL" || len(s.tokens) < 2 || s.tokens[1].kind != tokString {
			continue
		}
		name := s.tokens[1].text
		key := strings.ToUpper(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}
