package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Snippet is a reusable text fragment saved from a document.
type Snippet struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSnippet creates a snippet. An empty title is taken from the start of
// the content.
func NewSnippet(title, content string) Snippet {
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSpace(content)
		if i := strings.IndexByte(title, '\n'); i >= 0 {
			title = title[:i]
		}
		if utf8.RuneCountInString(title) > titleLimit {
			title = string([]rune(title)[:titleLimit])
		}
	}
	return Snippet{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
