package domain

import "strings"

// DefaultManagedLabel is the visible label applied to every page the
// engine manages, unless overridden in configuration.
const DefaultManagedLabel = "managed-docs"

// SanitizeLabel converts an arbitrary string into a valid remote label:
// lowercase, ASCII letters, digits and single dashes only. Angle-bracket
// placeholders are unwrapped rather than dropped, so "docs-<team>"
// becomes "docs-team". Returns the empty string when nothing survives.
func SanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// SanitizeLabels sanitises a list of label candidates, dropping entries
// that sanitise to nothing and de-duplicating the rest in order.
func SanitizeLabels(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		label := SanitizeLabel(r)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
