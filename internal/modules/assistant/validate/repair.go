package validate

import (
	"strconv"
	"strings"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'",
)

// repair applies one fixed sequence of low-risk textual fixes. It is called at
// most once per validation and never loops on its own output.
func repair(s string) string {
	s = stripFences(s)
	s = smartQuotes.Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s[0] != '{' {
		s = "{" + s + "}"
	}
	s = requote(s)
	return dropTrailingCommas(s)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, "```")
}

// requote rewrites single-quoted strings, bare keys and bare values as JSON
// strings, escaping quotes that cannot be closing quotes.
func requote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 32)

	var stack []byte
	expectKey := false

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			b.WriteByte(c)
			i++
		case c == '{':
			stack = append(stack, '{')
			expectKey = true
			b.WriteByte(c)
			i++
		case c == '[':
			stack = append(stack, '[')
			expectKey = false
			b.WriteByte(c)
			i++
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			expectKey = false
			b.WriteByte(c)
			i++
		case c == ',':
			expectKey = len(stack) > 0 && stack[len(stack)-1] == '{'
			b.WriteByte(c)
			i++
		case c == ':':
			expectKey = false
			b.WriteByte(c)
			i++
		case c == '"' || c == '\'':
			i = copyString(&b, s, i, c)
		case expectKey:
			j := i
			for j < len(s) && s[j] != ':' && s[j] != ',' && s[j] != '}' {
				j++
			}
			b.WriteString(strconv.Quote(strings.TrimSpace(s[i:j])))
			i = j
		default:
			j := i
			for j < len(s) && s[j] != ',' && s[j] != '}' && s[j] != ']' && s[j] != '\n' {
				j++
			}
			tok := strings.TrimSpace(s[i:j])
			if isLiteral(tok) {
				b.WriteString(tok)
			} else {
				b.WriteString(strconv.Quote(tok))
			}
			// keep trailing whitespace that was part of the scanned run
			b.WriteString(s[i+len(strings.TrimRight(s[i:j], " \t\r")) : j])
			i = j
		}
	}
	return b.String()
}

// copyString writes the string starting at s[i] as a double-quoted JSON string
// and returns the index after its closing quote.
func copyString(b *strings.Builder, s string, i int, quote byte) int {
	b.WriteByte('"')
	j := i + 1
	for j < len(s) {
		c := s[j]
		switch {
		case c == '\\' && j+1 < len(s):
			if quote == '\'' && s[j+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(s[j+1])
			}
			j += 2
		case c == quote:
			if closesString(s, j+1) {
				b.WriteByte('"')
				return j + 1
			}
			if c == '"' {
				b.WriteString(`\"`)
			} else {
				b.WriteByte(c)
			}
			j++
		case c == '"':
			b.WriteString(`\"`)
			j++
		case c == '\n':
			b.WriteString(`\n`)
			j++
		default:
			b.WriteByte(c)
			j++
		}
	}
	b.WriteByte('"')
	return j
}

// closesString reports whether a quote followed by s[k:] can end a string.
func closesString(s string, k int) bool {
	for k < len(s) {
		switch s[k] {
		case ' ', '\t', '\r', '\n':
			k++
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}

func isLiteral(tok string) bool {
	switch tok {
	case "true", "false", "null":
		return true
	}
	if tok == "" {
		return false
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil && (tok[0] == '-' || (tok[0] >= '0' && tok[0] <= '9'))
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escape {
			escape = false
			b.WriteByte(c)
			continue
		}
		if inString {
			if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			k := i + 1
			for k < len(s) && (s[k] == ' ' || s[k] == '\t' || s[k] == '\n' || s[k] == '\r') {
				k++
			}
			if k < len(s) && (s[k] == '}' || s[k] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
