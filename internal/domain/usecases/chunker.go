package usecases

import (
	"strings"
	"unicode/utf8"
)

// SplitText splits text into ordered chunks of at most maxChars characters.
// Sentences are packed greedily; a sentence longer than maxChars is packed word by
// word; a single word longer than maxChars is emitted whole, never truncated.
// Whitespace between words is normalized to single spaces.
// Empty input yields no chunks.
func SplitText(text string, maxChars int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(trimmed) <= maxChars {
		return []string{trimmed}
	}

	p := packer{max: maxChars}
	for _, sentence := range splitSentences(trimmed) {
		if runeLen(sentence) <= maxChars {
			p.add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			p.add(word)
		}
	}
	return p.finish()
}

// packer greedily joins pieces with single spaces while the result fits.
type packer struct {
	max     int
	chunks  []string
	current strings.Builder
	length  int
}

func (p *packer) add(piece string) {
	n := runeLen(piece)
	if p.length > 0 && p.length+1+n <= p.max {
		p.current.WriteByte(' ')
		p.current.WriteString(piece)
		p.length += 1 + n
		return
	}
	p.flush()
	p.current.WriteString(piece)
	p.length = n
}

func (p *packer) flush() {
	if p.length > 0 {
		p.chunks = append(p.chunks, p.current.String())
	}
	p.current.Reset()
	p.length = 0
}

func (p *packer) finish() []string {
	p.flush()
	return p.chunks
}

// splitSentences groups whitespace-separated words into sentences that end with
// '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var words []string
	for _, word := range strings.Fields(text) {
		words = append(words, word)
		if endsSentence(word) {
			sentences = append(sentences, strings.Join(words, " "))
			words = words[:0]
		}
	}
	if len(words) > 0 {
		sentences = append(sentences, strings.Join(words, " "))
	}
	return sentences
}

func endsSentence(word string) bool {
	switch word[len(word)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
