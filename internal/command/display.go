package command

import (
	"regexp"
	"strings"
)

var memoryTag = regexp.MustCompile(`\[\[MEMORY:\s*(.*?)\]\]`)

// StripTags removes complete command tags from answer text so it can be
// shown in the transcript. A tag name mentioned in prose is left alone.
func StripTags(text string) string {
	for _, re := range []*regexp.Regexp{appendTag, editTag, replaceTag} {
		text = re.ReplaceAllString(text, "")
	}
	return text
}

// stripLive is StripTags for text that is still streaming: the last
// unclosed command and a half-arrived tag name at the end are cut too, so a
// command never flashes as raw text.
func stripLive(text string) string {
	text = StripTags(text)
	if locs := openTag.FindAllStringIndex(text, -1); len(locs) > 0 {
		text = text[:locs[len(locs)-1][0]]
	}
	return cutPartialTag(text)
}

var tagNames = []string{"SCRATCHPAD_APPEND", "EDIT_LINES", "SCRATCHPAD_UPDATE"}

// cutPartialTag drops a trailing tag whose name has only partly arrived.
func cutPartialTag(text string) string {
	i := strings.LastIndexByte(text, '<')
	if i < 0 {
		return text
	}
	rest := strings.ToUpper(text[i+1:])
	for _, name := range tagNames {
		if strings.HasPrefix(name, rest) {
			return text[:i]
		}
	}
	return text
}

// Memories returns the trimmed, non-empty [[MEMORY: ...]] notes in text,
// in order of appearance.
func Memories(text string) []string {
	var out []string
	for _, m := range memoryTag.FindAllStringSubmatch(text, -1) {
		if note := strings.TrimSpace(m[1]); note != "" {
			out = append(out, note)
		}
	}
	return out
}

// RenderMemories replaces each memory marker with a visible note line.
func RenderMemories(text string) string {
	return memoryTag.ReplaceAllStringFunc(text, func(s string) string {
		note := strings.TrimSpace(memoryTag.FindStringSubmatch(s)[1])
		return "\n> Memory saved: " + note + "\n"
	})
}

// Display is the transcript text for raw answer text: memories rendered and
// command tags removed.
func Display(text string) string {
	return strings.TrimSpace(StripTags(RenderMemories(text)))
}

// LiveDisplay is Display for an answer that is still streaming.
func LiveDisplay(text string) string {
	return strings.TrimSpace(stripLive(RenderMemories(text)))
}
