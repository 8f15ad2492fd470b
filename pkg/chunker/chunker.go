// Package chunker splits extracted document text into overlapping
// fixed-size segments. The unit is characters (runes), matching the
// stored chunk size limit; token-based sizing was rejected because the
// deployment mixes models with incompatible tokenizers.
package chunker

import (
	"strings"
)

const (
	DefaultSize    = 800
	DefaultOverlap = 150
)

type Options struct {
	Size    int // chunk length in runes
	Overlap int // shared region between consecutive chunks, in runes
}

func DefaultOptions() Options {
	return Options{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Chunk splits text into segments of exactly opts.Size runes (the last
// one may be shorter), where consecutive segments share an
// opts.Overlap-rune region. It is a pure function: blank input yields
// nil, input no longer than Size yields a single chunk, and dropping
// the first Overlap runes of every chunk after the first reconstructs
// the input exactly.
func Chunk(text string, opts Options) []string {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = 0
	}
	if opts.Overlap >= opts.Size {
		opts.Overlap = opts.Size / 2
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= opts.Size {
		return []string{text}
	}

	stride := opts.Size - opts.Overlap
	var chunks []string
	for start := 0; ; start += stride {
		end := start + opts.Size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
	}
}
