package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/segment"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceSplitter breaks raw text into an ordered sequence of sentences.
type SentenceSplitter interface {
	Split(text string) ([]string, error)
}

// WordCounter counts the words of a single sentence.
type WordCounter interface {
	Count(sentence string) (int, error)
}

// PunktSplitter splits sentences with the pre-trained English punkt model,
// which knows common abbreviations and does not break on them.
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

var (
	defaultSplitterOnce sync.Once
	defaultSplitter     *PunktSplitter
	defaultSplitterErr  error
)

// NewPunktSplitter loads the English punkt training data.
func NewPunktSplitter() (*PunktSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &PunktSplitter{tokenizer: tokenizer}, nil
}

// DefaultSplitter returns a process-wide punkt splitter. The model is loaded once.
func DefaultSplitter() (*PunktSplitter, error) {
	defaultSplitterOnce.Do(func() {
		defaultSplitter, defaultSplitterErr = NewPunktSplitter()
	})
	return defaultSplitter, defaultSplitterErr
}

// Split returns trimmed, non-empty sentences in document order.
func (p *PunktSplitter) Split(text string) ([]string, error) {
	tokens := p.tokenizer.Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, s := range tokens {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out, nil
}

// SegmentCounter counts Unicode (UAX #29) words. Punctuation and whitespace
// segments are not words.
type SegmentCounter struct{}

// Count returns the number of letter, number, ideographic and kana segments.
func (SegmentCounter) Count(sentence string) (int, error) {
	seg := segment.NewWordSegmenterDirect([]byte(sentence))
	n := 0
	for seg.Segment() {
		if seg.Type() != segment.None {
			n++
		}
	}
	if err := seg.Err(); err != nil {
		return 0, fmt.Errorf("segment words: %w", err)
	}
	return n, nil
}
