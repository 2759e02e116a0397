package command

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	appendTag  = regexp.MustCompile(`(?is)<SCRATCHPAD_APPEND\s*>(.*?)</\s*SCRATCHPAD_APPEND\s*>`)
	editTag    = regexp.MustCompile(`(?is)<EDIT_LINES\s+start\s*=\s*["']?(\d+)["']?\s+end\s*=\s*["']?(\d+)["']?\s*>(.*?)</\s*EDIT_LINES\s*>`)
	replaceTag = regexp.MustCompile(`(?is)<SCRATCHPAD_UPDATE\s*>(.*?)</\s*SCRATCHPAD_UPDATE\s*>`)

	// openTag finds a command whose closing tag has not arrived yet.
	openTag = regexp.MustCompile(`(?i)<(SCRATCHPAD_APPEND|EDIT_LINES|SCRATCHPAD_UPDATE)\b`)

	lineNumber = regexp.MustCompile(`^\s*\d+\s*\|\s?`)
	fence      = regexp.MustCompile("(?s)^```(?:[\\w+\\-.]*)?\\s*(.*?)\\s*```$")
)

// match is one complete tag found in the scanned suffix. Offsets are
// relative to the suffix.
type match struct {
	kind  Kind
	start int
	end   int
	sub   []string
}

// earliest orders candidate matches by starting position. Ties cannot
// happen between distinct tags but are broken by kind for determinism.
func earliest(a, b match) int {
	if a.start != b.start {
		return a.start - b.start
	}
	return strings.Compare(string(a.kind), string(b.kind))
}

// ExtractNext scans text after scannedUpTo for the earliest complete
// command tag. It returns the command and the absolute offset just past
// the tag's closing delimiter, or nil and scannedUpTo unchanged when no
// tag is complete yet.
func ExtractNext(text string, scannedUpTo int) (*Command, int) {
	scannedUpTo = max(0, min(scannedUpTo, len(text)))
	suffix := text[scannedUpTo:]

	var found []match
	for kind, re := range map[Kind]*regexp.Regexp{
		KindAppend:    appendTag,
		KindEditRange: editTag,
		KindReplace:   replaceTag,
	} {
		loc := re.FindStringSubmatchIndex(suffix)
		if loc == nil {
			continue
		}
		sub := make([]string, len(loc)/2)
		for i := range sub {
			if loc[2*i] >= 0 {
				sub[i] = suffix[loc[2*i]:loc[2*i+1]]
			}
		}
		found = append(found, match{kind: kind, start: loc[0], end: loc[1], sub: sub})
	}

	if len(found) == 0 {
		return nil, scannedUpTo
	}

	best := slices.MinFunc(found, earliest)
	next := scannedUpTo + best.end

	cmd := &Command{ID: uuid.NewString(), Status: Pending}
	switch best.kind {
	case KindAppend:
		cmd.Op = Append{NewContent: Clean(best.sub[1])}
	case KindEditRange:
		start, err1 := strconv.Atoi(best.sub[1])
		end, err2 := strconv.Atoi(best.sub[2])
		if err1 != nil || err2 != nil {
			// Digits too long for an int; skip the malformed tag.
			return nil, next
		}
		cmd.Op = EditRange{Start: start, End: end, NewContent: Clean(best.sub[3])}
	case KindReplace:
		cmd.Op = Replace{NewContent: Clean(best.sub[1])}
	}

	return cmd, next
}

// Clean strips an enclosing markdown fence and echoed "N | " line-number
// prefixes from a payload and trims it. Clean is idempotent.
func Clean(content string) string {
	for {
		cleaned := cleanOnce(content)
		if cleaned == content {
			return cleaned
		}
		content = cleaned
	}
}

func cleanOnce(content string) string {
	cleaned := stripLineNumbers(strings.TrimSpace(content))
	if m := fence.FindStringSubmatch(cleaned); m != nil {
		cleaned = stripLineNumbers(strings.TrimSpace(m[1]))
	}
	return strings.TrimSpace(cleaned)
}

func stripLineNumbers(content string) string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = lineNumber.ReplaceAllString(l, "")
	}
	return strings.Join(lines, "\n")
}
