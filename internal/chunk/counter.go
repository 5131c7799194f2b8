package chunk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Words counts whitespace-delimited words; one word is one token.
type Words struct{}

func (Words) Count(text string) int { return len(strings.Fields(text)) }

// Tiktoken counts BPE tokens with a tiktoken encoding such as cl100k_base.
// BPE ranks are loaded from the embedded offline loader, no network needed.
// Encoders are pooled so concurrent ingests do not serialize on one encoder.
type Tiktoken struct {
	encoding string
	pool     sync.Pool
}

var loaderOnce sync.Once

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	t := &Tiktoken{encoding: encoding}
	t.pool.New = func() any {
		e, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			return nil
		}
		return e
	}
	t.pool.Put(enc)
	return t, nil
}

// Count encodes special-token strings such as <|endoftext|> as ordinary text.
func (t *Tiktoken) Count(text string) int {
	enc, _ := t.pool.Get().(*tiktoken.Tiktoken)
	if enc == nil {
		// one token never spans less than a byte
		return len(text)
	}
	defer t.pool.Put(enc)
	return len(enc.EncodeOrdinary(text))
}

// NewCounter builds the counter named by the TOKENIZER setting.
func NewCounter(name string) (TokenCounter, error) {
	if name == "words" {
		return Words{}, nil
	}
	if name == "" {
		name = "cl100k_base"
	}
	t, err := NewTiktoken(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}
