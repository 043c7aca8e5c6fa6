package utils

import (
	"strings"
	"unicode"

	"github.com/aryann/difflib"
)

func TokenizeWords(s string) []string {
	var out []string
	var cur []rune
	kind := -1 // 0=space,1=word,2=punct
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
	}
	for _, r := range s {
		k := 2
		switch {
		case unicode.IsSpace(r):
			k = 0
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' || r == '\'':
			k = 1
		}
		if kind == -1 {
			kind = k
		}
		if k != kind {
			flush()
			kind = k
		}
		cur = append(cur, r)
	}
	flush()
	return out
}

// Words returns the lowercased word and punctuation tokens of s, without
// whitespace.
func Words(s string) []string {
	tokens := TokenizeWords(strings.ToLower(s))
	out := tokens[:0]
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

// CommonRatio is the share of word tokens two texts have in common along their
// longest common subsequence: 1 for identical texts, 0 for disjoint ones.
func CommonRatio(a, b string) float64 {
	at, bt := Words(a), Words(b)
	if len(at)+len(bt) == 0 {
		return 1
	}
	common := 0
	for _, r := range difflib.Diff(at, bt) {
		if r.Delta == difflib.Common {
			common++
		}
	}
	return 2 * float64(common) / float64(len(at)+len(bt))
}
