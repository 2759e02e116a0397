package stream

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minSentenceLen = 20
	sentenceKeyLen = 50
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// loopDetector tracks recently seen reasoning sentences and reports when one
// keeps coming back. Text is buffered until terminal punctuation arrives so
// sentences split across chunks are compared whole.
type loopDetector struct {
	threshold int
	window    int
	pending   string
	recent    []string
}

func newLoopDetector(threshold, window int) *loopDetector {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 50
	}
	return &loopDetector{threshold: threshold, window: window}
}

// feed adds reasoning text and returns the first sentence that reached the
// repetition threshold, if any.
func (d *loopDetector) feed(text string) (string, bool) {
	d.pending += text
	loc := lastSentenceEnd(d.pending)
	if loc < 0 {
		return "", false
	}
	complete := d.pending[:loc]
	d.pending = d.pending[loc:]

	for _, fragment := range sentenceEnd.Split(complete, -1) {
		fragment = strings.TrimSpace(fragment)
		if utf8.RuneCountInString(fragment) <= minSentenceLen {
			continue
		}
		key := normalizeSentence(fragment)
		if d.seen(key) >= d.threshold {
			return fragment, true
		}
		d.recent = append(d.recent, key)
		if len(d.recent) > d.window {
			d.recent = d.recent[len(d.recent)-d.window:]
		}
	}
	return "", false
}

func (d *loopDetector) seen(key string) int {
	n := 0
	for _, s := range d.recent {
		if s == key {
			n++
		}
	}
	return n
}

// lastSentenceEnd returns the offset just past the last terminal punctuation
// run in s, or -1.
func lastSentenceEnd(s string) int {
	matches := sentenceEnd.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return -1
	}
	return matches[len(matches)-1][1]
}

func normalizeSentence(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= sentenceKeyLen {
		return s
	}
	return string([]rune(s)[:sentenceKeyLen])
}
