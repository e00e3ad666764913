package tokens

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures prompt text in model tokens.
type Counter interface {
	Count(text string) int
}

// Estimate approximates tokens as one per four runes. It needs no vocabulary
// files and is what tests and offline deployments use.
type Estimate struct{}

func (Estimate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Tiktoken counts with a BPE encoding. Encoding tables are loaded on first use.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
	mu  sync.Mutex
}

// NewTiktoken resolves the encoding for model, falling back to cl100k_base.
func NewTiktoken(model string) (*Tiktoken, error) {
	model = strings.TrimSpace(model)
	var (
		enc *tiktoken.Tiktoken
		err error
	)
	if model != "" {
		enc, err = tiktoken.EncodingForModel(model)
	}
	if enc == nil || err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tiktoken encoding: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// New returns a tiktoken counter when possible and the estimate otherwise.
func New(model string) (Counter, error) {
	tk, err := NewTiktoken(model)
	if err != nil {
		return Estimate{}, err
	}
	return tk, nil
}

// Truncate cuts text so Count(result) <= budget, appending an ellipsis marker
// when anything was removed.
func Truncate(c Counter, text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if c.Count(text) <= budget {
		return text
	}
	const marker = " …"
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.Count(string(runes[:mid])+marker) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return ""
	}
	return strings.TrimRightFunc(string(runes[:lo]), func(r rune) bool { return r == ' ' || r == '\n' }) + marker
}
