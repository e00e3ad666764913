package validate

import "strings"

const (
	openMarker  = "JSON_ONLY"
	closeMarker = "END_JSON"
)

// extractBlock returns the text between JSON_ONLY and END_JSON. When the model
// stopped before END_JSON the first balanced object after the open marker is
// used instead.
func extractBlock(raw string) (string, bool) {
	start := strings.Index(raw, openMarker)
	if start < 0 {
		return "", false
	}
	rest := raw[start+len(openMarker):]
	if end := strings.Index(rest, closeMarker); end >= 0 {
		block := strings.TrimSpace(rest[:end])
		return block, block != ""
	}
	if obj, ok := firstObject(rest); ok {
		return obj, true
	}
	return "", false
}

// firstObject scans for the first complete top-level {...} while skipping
// braces inside strings. ASCII delimiters never occur inside UTF-8 multi-byte
// sequences so a byte scan is safe.
func firstObject(s string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// ReplyText returns raw with the JSON_ONLY block (and any fence around it)
// removed, for use as the user-facing reply.
func ReplyText(raw string) string {
	start := strings.Index(raw, openMarker)
	if start < 0 {
		return strings.TrimSpace(raw)
	}
	before := strings.TrimSpace(raw[:start])
	for _, fence := range []string{"```json", "```"} {
		if strings.HasSuffix(before, fence) {
			before = strings.TrimSpace(strings.TrimSuffix(before, fence))
			break
		}
	}
	after := ""
	rest := raw[start+len(openMarker):]
	if end := strings.Index(rest, closeMarker); end >= 0 {
		after = strings.TrimSpace(rest[end+len(closeMarker):])
		after = strings.TrimSpace(strings.TrimPrefix(after, "```"))
	}
	switch {
	case before == "":
		return after
	case after == "":
		return before
	default:
		return before + "\n\n" + after
	}
}
