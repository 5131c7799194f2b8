// Package chunk splits plain text into token-bounded chunks on word boundaries.
package chunk

import (
	"fmt"
	"strings"
)

// TokenCounter counts tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// Chunker splits text so that no chunk exceeds maxTokens, except a single
// word that is larger than the budget on its own.
type Chunker struct {
	counter   TokenCounter
	maxTokens int
}

// New returns a chunker. maxTokens must be positive.
func New(counter TokenCounter, maxTokens int) (*Chunker, error) {
	if counter == nil {
		return nil, fmt.Errorf("chunk: nil token counter")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunk: max tokens must be positive, got %d", maxTokens)
	}
	return &Chunker{counter: counter, maxTokens: maxTokens}, nil
}

// MaxTokens returns the configured budget.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Split partitions the whitespace-delimited words of text into chunks.
// Joining the chunks with single spaces yields the original word sequence.
//
// The running size is estimated from per-word counts; the chunk is recounted
// exactly only when the estimate reaches the budget.
func (c *Chunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var (
		chunks  []string
		start   int
		running int
	)
	for i, w := range words {
		if i == start {
			running = c.counter.Count(w)
			continue
		}
		if est := running + c.counter.Count(" "+w); est <= c.maxTokens {
			running = est
			continue
		}
		if exact := c.counter.Count(strings.Join(words[start:i+1], " ")); exact <= c.maxTokens {
			running = exact
			continue
		}
		chunks = c.fit(chunks, words[start:i])
		start = i
		running = c.counter.Count(w)
	}
	return c.fit(chunks, words[start:])
}

// fit appends ws to chunks as one chunk when it is within budget, otherwise
// as the longest fitting prefixes in order. A lone oversized word is kept whole.
func (c *Chunker) fit(chunks []string, ws []string) []string {
	for len(ws) > 0 {
		n := len(ws)
		for n > 1 && c.counter.Count(strings.Join(ws[:n], " ")) > c.maxTokens {
			n--
		}
		chunks = append(chunks, strings.Join(ws[:n], " "))
		ws = ws[n:]
	}
	return chunks
}
