// Package chunker splits document text into bounded, sentence-aligned chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultMinWords is the advisory lower bound of a chunk.
	DefaultMinWords = 200

	// DefaultMaxWords closes a chunk before it would exceed this many words.
	DefaultMaxWords = 300
)

// ErrInvalidBounds is returned when the word bounds are not 0 < min < max.
var ErrInvalidBounds = errors.New("invalid chunk bounds")

// Chunker accumulates whole sentences until the next one would push the chunk
// past maxWords. A sentence is never split, so a single sentence longer than
// maxWords becomes a chunk of its own. minWords is advisory only: the last
// chunk of a document may be arbitrarily short.
type Chunker struct {
	minWords int
	maxWords int
	splitter SentenceSplitter
	counter  WordCounter
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithBounds sets the advisory minimum and the closing maximum word counts.
func WithBounds(minWords, maxWords int) Option {
	return func(c *Chunker) {
		c.minWords = minWords
		c.maxWords = maxWords
	}
}

// WithSentenceSplitter replaces the punkt sentence splitter.
func WithSentenceSplitter(s SentenceSplitter) Option {
	return func(c *Chunker) {
		if s != nil {
			c.splitter = s
		}
	}
}

// WithWordCounter replaces the UAX #29 word counter.
func WithWordCounter(wc WordCounter) Option {
	return func(c *Chunker) {
		if wc != nil {
			c.counter = wc
		}
	}
}

// New creates a Chunker with default bounds 200/300 unless overridden.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		minWords: DefaultMinWords,
		maxWords: DefaultMaxWords,
		counter:  SegmentCounter{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.minWords <= 0 || c.maxWords <= 0 || c.minWords >= c.maxWords {
		return nil, fmt.Errorf("%w: min_words=%d max_words=%d", ErrInvalidBounds, c.minWords, c.maxWords)
	}

	if c.splitter == nil {
		s, err := DefaultSplitter()
		if err != nil {
			return nil, err
		}
		c.splitter = s
	}

	return c, nil
}

// Split chunks text with the default tokenizers and the given bounds.
func Split(text string, minWords, maxWords int) ([]string, error) {
	c, err := New(WithBounds(minWords, maxWords))
	if err != nil {
		return nil, err
	}
	return c.Chunk(text)
}

// MinWords returns the advisory lower bound.
func (c *Chunker) MinWords() int { return c.minWords }

// MaxWords returns the closing threshold.
func (c *Chunker) MaxWords() int { return c.maxWords }

// Chunk splits text into chunks. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	sentences, err := c.splitter.Split(text)
	if err != nil {
		return nil, fmt.Errorf("split sentences: %w", err)
	}

	chunks := []string{}
	var current []string
	currentLen := 0

	for _, sentence := range sentences {
		n, err := c.counter.Count(sentence)
		if err != nil {
			return nil, fmt.Errorf("count words: %w", err)
		}

		if currentLen+n > c.maxWords && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = []string{sentence}
			currentLen = n
			continue
		}

		current = append(current, sentence)
		currentLen += n
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks, nil
}

// Stats describes the word counts of a chunked document.
type Stats struct {
	Chunks     int
	WordCounts []int
	// BelowMin counts chunks shorter than the advisory minimum.
	BelowMin int
	// OverMax counts chunks made of a single sentence longer than the maximum.
	OverMax int
}

// Stats computes word counts for chunks produced by this Chunker.
func (c *Chunker) Stats(chunks []string) (Stats, error) {
	st := Stats{Chunks: len(chunks), WordCounts: make([]int, len(chunks))}
	for i, chunk := range chunks {
		n, err := c.counter.Count(chunk)
		if err != nil {
			return Stats{}, fmt.Errorf("count words: %w", err)
		}
		st.WordCounts[i] = n
		if n < c.minWords {
			st.BelowMin++
		}
		if n > c.maxWords {
			st.OverMax++
		}
	}
	return st, nil
}
