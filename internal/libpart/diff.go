package libpart

import (
	"fmt"
	"strings"
)

// Identical reports whether two documents carry the same bytes, modulo line
// endings. Stagnation detection relies on this being strict: formatting-only
// changes still count as new output.
func Identical(a, b string) bool {
	return normalize(a) == normalize(b)
}

func normalize(s string) string {
	return strings.TrimRight(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

// Diff produces a compact line diff between two documents: the shared prefix
// and suffix are trimmed and the differing middle is shown with -/+ markers.
// It is attached to attempt records for the audit log, not used for patching.
func Diff(before, after string) string {
	if Identical(before, after) {
		return ""
	}
	a := strings.Split(normalize(before), "\n")
	b := strings.Split(normalize(after), "\n")

	start := 0
	for start < len(a) && start < len(b) && a[start] == b[start] {
		start++
	}
	endA, endB := len(a), len(b)
	for endA > start && endB > start && a[endA-1] == b[endB-1] {
		endA--
		endB--
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "@@ lines %d-%d -> %d-%d @@\n", start+1, endA, start+1, endB)
	for _, line := range a[start:endA] {
		sb.WriteString("- " + line + "\n")
	}
	for _, line := range b[start:endB] {
		sb.WriteString("+ " + line + "\n")
	}
	return sb.String()
}
