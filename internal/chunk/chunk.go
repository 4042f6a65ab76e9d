// Package chunk splits extracted document text into overlapping,
// sentence-bounded windows for embedding.
//
// Splitting is deterministic: the same input and configuration always
// produce the same chunk list, so re-ingesting an unchanged file yields
// identical records.
package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidConfig indicates inconsistent chunk window settings.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Config defines the chunk window.
type Config struct {
	// MinChars is the preferred lower bound for a chunk, in runes.
	MinChars int

	// MaxChars is the hard upper bound for a chunk, in runes.
	MaxChars int

	// Overlap is the number of trailing runes of a chunk repeated at the
	// start of the next one.
	Overlap int
}

// DefaultConfig mirrors the production ingestion settings.
func DefaultConfig() Config {
	return Config{MinChars: 1000, MaxChars: 2000, Overlap: 100}
}

func (c Config) validate() error {
	if c.MinChars < 1 {
		return fmt.Errorf("%w: min_chars must be >= 1, got %d", ErrInvalidConfig, c.MinChars)
	}
	if c.MaxChars < c.MinChars {
		return fmt.Errorf("%w: max_chars %d below min_chars %d", ErrInvalidConfig, c.MaxChars, c.MinChars)
	}
	if c.Overlap < 0 || c.Overlap >= c.MinChars {
		return fmt.Errorf("%w: overlap %d must be in [0, min_chars)", ErrInvalidConfig, c.Overlap)
	}
	return nil
}

// Splitter produces chunks from plain text.
type Splitter struct {
	cfg Config
}

// New creates a Splitter with the given configuration.
func New(cfg Config) (*Splitter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// Split returns the chunk list for text. Whitespace-only input yields nil.
//
// Sentences are never broken across chunks unless a single sentence exceeds
// MaxChars, in which case it is hard-split at the boundary. Every emitted
// chunk holds at most MaxChars runes.
func (s *Splitter) Split(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []rune
	var seeded int // length of the overlap seed at the start of current

	flush := func() {
		trimmed := strings.TrimSpace(string(current))
		if trimmed != "" && len(current) > seeded {
			chunks = append(chunks, trimmed)
		}
		if s.cfg.Overlap > 0 && len(current) > s.cfg.Overlap {
			tail := make([]rune, s.cfg.Overlap)
			copy(tail, current[len(current)-s.cfg.Overlap:])
			current = tail
		} else {
			current = nil
		}
		seeded = len(current)
	}

	for _, sentence := range sentences {
		runes := []rune(sentence)

		for len(runes) > 0 {
			space := s.cfg.MaxChars - len(current)
			switch {
			case len(runes) <= space:
				current = append(current, runes...)
				runes = nil
			case len(runes) > s.cfg.MaxChars:
				// Oversized sentence: fill the window and hard-split.
				current = append(current, runes[:space]...)
				runes = runes[space:]
				flush()
			default:
				// The sentence fits in a fresh window. Flushing here can
				// emit a chunk below MinChars: sentence integrity takes
				// precedence over the lower bound. Drop the overlap seed
				// if it would push the window past the bound.
				flush()
				if len(runes) > s.cfg.MaxChars-len(current) {
					current = nil
					seeded = 0
				}
			}
		}

		if len(current) >= s.cfg.MinChars {
			flush()
		}
	}

	flush()
	return chunks
}

// splitSentences cuts text after sentence-ending punctuation followed by
// whitespace, and after newlines. Delimiters stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		boundary := false
		switch r {
		case '.', '!', '?':
			boundary = i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
		case '\n':
			boundary = true
		}
		if boundary {
			// Trailing whitespace joins the sentence so offsets stay
			// contiguous.
			end := i + 1
			for end < len(runes) && unicode.IsSpace(runes[end]) {
				end++
			}
			seg := string(runes[start:end])
			if strings.TrimSpace(seg) != "" {
				sentences = append(sentences, seg)
			}
			start = end
			i = end - 1
		}
	}

	if start < len(runes) {
		seg := string(runes[start:])
		if strings.TrimSpace(seg) != "" {
			sentences = append(sentences, seg)
		}
	}

	return sentences
}
