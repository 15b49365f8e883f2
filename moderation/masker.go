// Package moderation masks blacklisted words in relayed text before the
// message reaches its destination or the transcript store.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// leet maps common character substitutions back to their plain letter so
// that "1d1ot" still matches "idiot".
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Masker replaces blacklisted words with a replacement rune while preserving
// the original spacing and punctuation around them.
type Masker struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// NewMasker builds the Aho-Corasick automaton over the normalized word list.
func NewMasker(words []string, replacement rune) (*Masker, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		norm, _ := normalize([]rune(word))
		patterns[i] = norm
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Masker{machine: machine, replacement: replacement}, nil
}

// Mask returns the text with every blacklisted match overwritten by the
// replacement rune. Matching runs over a normalized view (lowercased, leet
// folded, separators stripped) while the rewrite targets the original runes.
func (m *Masker) Mask(text string) string {
	original := []rune(text)
	norm, origIdx := normalize(original)
	if len(norm) == 0 {
		return text
	}

	hits := m.machine.MultiPatternSearch(norm, false)
	if len(hits) == 0 {
		return text
	}

	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = m.replacement
		}
	}
	return string(original)
}

// normalize lowercases, folds leet substitutions, and drops separator runes.
// The second return value maps each normalized position back to the index of
// the original rune it came from.
func normalize(input []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))

	for i, r := range input {
		if folded, ok := leet[r]; ok {
			r = folded
		}
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}
