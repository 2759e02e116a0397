package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	phraseBonus    = 100
	occurrenceBase = 10
	technicalBonus = 5
	substringBonus = 3
	minTermLength  = 2
)

type term struct {
	text      string // lowercased
	technical bool
}

// Score rates how well content matches query. Higher is better and there is
// no upper bound. A query with no usable terms scores 0.
func Score(query, content string) float64 {
	phrase, terms := parseQuery(query)
	if len(terms) == 0 {
		return 0
	}

	haystack := strings.ToLower(content)

	var score float64
	if strings.Contains(haystack, phrase) {
		score += phraseBonus
	}

	distinct := 0
	for _, t := range terms {
		if n := countWords(haystack, t.text); n > 0 {
			score += float64(occurrenceBase * n)
			distinct++
			if t.technical {
				score += technicalBonus
			}
		} else if strings.Contains(haystack, t.text) {
			score += substringBonus
		}
	}

	coverage := float64(distinct) / float64(len(terms))
	return score * (1 + coverage)
}

// parseQuery strips punctuation, lowercases the query into a phrase and
// returns the terms longer than minTermLength runes.
func parseQuery(query string) (string, []term) {
	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, query)

	fields := strings.Fields(cleaned)
	terms := make([]term, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= minTermLength {
			continue
		}
		terms = append(terms, term{
			text:      strings.ToLower(f),
			technical: isTechnical(f),
		})
	}

	return strings.ToLower(strings.Join(fields, " ")), terms
}

// isTechnical flags identifiers: snake_case, camelCase or long words.
func isTechnical(word string) bool {
	if strings.Contains(word, "_") || utf8.RuneCountInString(word) > 8 {
		return true
	}
	for i, r := range word {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// countWords counts whole-word occurrences of word in s.
func countWords(s, word string) int {
	n := 0
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			break
		}
		i += offset
		end := i + len(word)
		if boundaryBefore(s, i) && boundaryAfter(s, end) {
			n++
		}
		offset = end
	}
	return n
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
