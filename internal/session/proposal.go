package session

import (
	"fmt"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/patch"
)

func (s *Session) proposal(turnID string) (*Turn, error) {
	t, err := s.Turn(turnID)
	if err != nil {
		return nil, err
	}
	if t.Command == nil {
		return nil, ErrNoPendingCommand
	}
	if t.Command.Status != command.Pending {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotPending, t.Command.Status)
	}
	return t, nil
}

// Accept applies the turn's pending command to the document and marks it
// applied. Only the command on the latest assistant turn can be accepted.
func (s *Session) Accept(turnID string) (*command.Command, error) {
	t, err := s.proposal(turnID)
	if err != nil {
		return nil, err
	}
	if last := s.LastAssistant(); last == nil || last.ID != t.ID {
		return nil, ErrStaleCommand
	}

	s.Document = patch.Apply(s.Document, t.Command)
	t.Command.Status = command.Applied
	s.touch()
	return t.Command, nil
}

// Discard marks the turn's pending command discarded. The document is not
// touched, so older commands may be discarded too.
func (s *Session) Discard(turnID string) (*command.Command, error) {
	t, err := s.proposal(turnID)
	if err != nil {
		return nil, err
	}
	t.Command.Status = command.Discarded
	s.touch()
	return t.Command, nil
}
