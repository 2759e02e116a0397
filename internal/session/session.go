// Package session holds a conversation about one document: its turns, the
// rules learned along the way and the edits the model has proposed.
package session

import (
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/pipeline"
)

var (
	ErrNoPendingCommand  = errors.New("turn has no command")
	ErrCommandNotPending = errors.New("command already applied or discarded")
	ErrStaleCommand      = errors.New("command belongs to an older turn")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTurnNotFound      = errors.New("turn not found")
	ErrEmptyMessage      = errors.New("message is empty")
)

const (
	DefaultTitle = "New conversation"
	WelcomeText  = "Hi. I'm **PromptForge** (standard mode). Write your prompt in the document and ask me to change it, or attach a selection to work on just that part. Turn on **maker** mode to run the four-agent pipeline."

	titleLimit = 30
)

// Role is who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the transcript. Once its stream completes only the
// command status changes.
type Turn struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	// Text is what the transcript shows: command tags stripped, memory
	// markers rendered.
	Text      string             `json:"text"`
	Thinking  string             `json:"thinking,omitempty"`
	Selection *command.Selection `json:"selection,omitempty"`
	Command   *command.Command   `json:"command,omitempty"`
	Usage     *llm.Usage         `json:"usage,omitempty"`
	// Failed marks a turn produced by a transport error.
	Failed bool `json:"failed,omitempty"`
	// Aborted marks a turn whose reasoning was cut short.
	Aborted bool `json:"aborted,omitempty"`
	// PipelineID links a turn produced by the pipeline to its run.
	PipelineID string    `json:"pipeline_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is one conversation and the document it edits.
type Session struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Document     string          `json:"document"`
	Turns        []Turn          `json:"turns"`
	Memories     []string        `json:"memories"`
	ProjectNotes string          `json:"project_notes"`
	Pipeline     *pipeline.State `json:"pipeline,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// New creates a session holding only the welcome message.
func New() *Session {
	now := time.Now()
	return &Session{
		ID:    newID(),
		Title: DefaultTitle,
		Turns: []Turn{{
			ID:        newID(),
			Role:      RoleAssistant,
			Text:      WelcomeText,
			CreatedAt: now,
		}},
		Memories:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newID() string {
	return uuid.NewString()
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

func (s *Session) addTurn(t Turn) *Turn {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.Turns = append(s.Turns, t)
	if t.Role == RoleUser {
		s.deriveTitle()
	}
	s.touch()
	return &s.Turns[len(s.Turns)-1]
}

// deriveTitle names the session after its first user message.
func (s *Session) deriveTitle() {
	if s.Title != DefaultTitle {
		return
	}
	for _, t := range s.Turns {
		if t.Role != RoleUser || strings.TrimSpace(t.Text) == "" {
			continue
		}
		text := strings.TrimSpace(t.Text)
		if utf8.RuneCountInString(text) > titleLimit {
			text = string([]rune(text)[:titleLimit]) + "..."
		}
		s.Title = text
		return
	}
}

// Turn returns the turn with the given id.
func (s *Session) Turn(id string) (*Turn, error) {
	for i := range s.Turns {
		if s.Turns[i].ID == id {
			return &s.Turns[i], nil
		}
	}
	return nil, ErrTurnNotFound
}

// LastAssistant returns the most recent assistant turn, or nil.
func (s *Session) LastAssistant() *Turn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			return &s.Turns[i]
		}
	}
	return nil
}

// Pending returns the latest assistant turn if it carries a pending command.
func (s *Session) Pending() *Turn {
	t := s.LastAssistant()
	if t == nil || t.Command == nil || t.Command.Status != command.Pending {
		return nil
	}
	return t
}

// AddMemories records new session rules, skipping ones already known, and
// returns those that were added.
func (s *Session) AddMemories(notes ...string) []string {
	var added []string
	for _, n := range notes {
		n = strings.TrimSpace(n)
		if n == "" || slices.Contains(s.Memories, n) {
			continue
		}
		s.Memories = append(s.Memories, n)
		added = append(added, n)
	}
	if len(added) > 0 {
		s.touch()
	}
	return added
}

// SetMemories replaces the session rules.
func (s *Session) SetMemories(notes []string) {
	s.Memories = nil
	s.AddMemories(notes...)
	s.touch()
}

// SetDocument replaces the document, as when the user edits it directly.
func (s *Session) SetDocument(text string) {
	s.Document = text
	s.touch()
}

// SetProjectNotes replaces the project notes.
func (s *Session) SetProjectNotes(notes string) {
	s.ProjectNotes = notes
	s.touch()
}

// Select captures the byte range [start, end) of the document, clamped to
// its bounds.
func (s *Session) Select(start, end int) *command.Selection {
	n := len(s.Document)
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return &command.Selection{
		Text:  s.Document[start:end],
		Range: command.Range{Start: start, End: end},
	}
}

// SelectLines captures lines from..to (1-based, inclusive) of the document.
func (s *Session) SelectLines(from, to int) *command.Selection {
	lines := strings.Split(s.Document, "\n")
	lo, hi := command.ClampRange(from, to, len(lines))

	start := 0
	for _, l := range lines[:lo] {
		start += len(l) + 1
	}
	end := start
	for i, l := range lines[lo:hi] {
		if i > 0 {
			end++
		}
		end += len(l)
	}
	return s.Select(start, end)
}

// ReplaceSelection splices text over the selection's range in the current
// document.
func (s *Session) ReplaceSelection(sel *command.Selection, text string) {
	n := len(s.Document)
	start := max(0, min(sel.Start, n))
	end := max(start, min(sel.End, n))
	s.SetDocument(s.Document[:start] + text + s.Document[end:])
}

// Summary is the listing view of a session.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Summary() Summary {
	return Summary{ID: s.ID, Title: s.Title, Turns: len(s.Turns), UpdatedAt: s.UpdatedAt}
}
