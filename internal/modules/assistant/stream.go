package assistant

import (
	"strings"
	"unicode/utf8"
)

const blockMarker = "JSON_ONLY"

// replyFilter forwards streamed model text up to the action block. A short
// tail is held back so a marker split across deltas is never emitted.
type replyFilter struct {
	emit func(string)
	held string
	done bool
}

func (f *replyFilter) write(delta string) {
	if f.done || delta == "" {
		return
	}
	s := f.held + delta
	if i := strings.Index(s, blockMarker); i >= 0 {
		f.done = true
		f.held = ""
		out := strings.TrimRight(s[:i], " \n")
		for _, fence := range []string{"```json", "```"} {
			if strings.HasSuffix(out, fence) {
				out = strings.TrimRight(strings.TrimSuffix(out, fence), " \n")
				break
			}
		}
		if out != "" {
			f.emit(out)
		}
		return
	}
	keep := len(blockMarker) + len("```json\n")
	if len(s) <= keep {
		f.held = s
		return
	}
	cut := len(s) - keep
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut > 0 {
		f.emit(s[:cut])
	}
	f.held = s[cut:]
}

// flush emits held text when the stream ended without an action block.
func (f *replyFilter) flush() {
	if !f.done && f.held != "" {
		f.emit(f.held)
	}
	f.held = ""
	f.done = true
}
