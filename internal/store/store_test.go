package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/llm/llmtest"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/stream"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := OpenDir(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	_ session.Store     = (*Store)(nil)
	_ session.Knowledge = (*Store)(nil)
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	sess := session.New()
	sess.SetDocument("Hello\nWorld")
	sess.AddMemories("keep it short")
	sess.Turns = append(sess.Turns, session.Turn{
		ID:   "t1",
		Role: session.RoleAssistant,
		Text: "proposal",
		Command: &command.Command{
			ID:       "c1",
			Op:       command.EditRange{Start: 2, End: 2, NewContent: "Earth"},
			Status:   command.Pending,
			Original: "Hello\nWorld",
		},
	})
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.LoadSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.Document, got.Document)
	assert.Equal(t, sess.Memories, got.Memories)
	require.Len(t, got.Turns, 2)
	require.NotNil(t, got.Turns[1].Command)
	assert.Equal(t, command.EditRange{Start: 2, End: 2, NewContent: "Earth"}, got.Turns[1].Command.Op)

	// The loaded copy still accepts its pending command.
	_, err = got.Accept("t1")
	require.NoError(t, err)
	assert.Equal(t, "Hello\nEarth", got.Document)
}

func TestSaveSession_Upserts(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	sess := session.New()
	require.NoError(t, s.SaveSession(ctx, sess))
	sess.Title = "Renamed"
	sess.SetDocument("v2")
	require.NoError(t, s.SaveSession(ctx, sess))

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Title)
	assert.Equal(t, 1, list[0].Turns)
}

func TestListSessions_MostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		sess := session.New()
		sess.UpdatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveSession(ctx, sess))
		ids = append(ids, sess.ID)
	}

	list, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
	assert.True(t, list[0].UpdatedAt.Equal(base.Add(2*time.Hour)))

	latest, err := s.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	sess := session.New()
	require.NoError(t, s.SaveSession(ctx, sess))
	require.NoError(t, s.DeleteSession(ctx, sess.ID))

	_, err := s.LoadSession(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, s.DeleteSession(ctx, sess.ID), session.ErrSessionNotFound)

	_, err = s.LatestSession(ctx)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	chunked := rag.Source{
		ID:      "a",
		Name:    "a.md",
		Content: "alpha content",
		Chunks:  []rag.Chunk{{ID: "a_0", SourceID: "a", SourceName: "a.md", Content: "alpha content", End: 13}},
	}
	require.NoError(t, s.SaveSource(ctx, chunked))
	require.NoError(t, s.SaveSource(ctx, rag.Source{ID: "b", Name: "b.txt", Content: "beta"}))

	got, err := s.Sources(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, chunked, got[0])
	assert.Equal(t, "b.txt", got[1].Name)
	assert.Empty(t, got[1].Chunks)

	require.NoError(t, s.DeleteSource(ctx, "a"))
	assert.ErrorIs(t, s.DeleteSource(ctx, "a"), ErrNotFound)

	got, err = s.Sources(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRules(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	require.NoError(t, s.AddRule(ctx, "Always answer in English"))
	require.NoError(t, s.AddRule(ctx, "Prefer bullet lists"))
	require.NoError(t, s.AddRule(ctx, "Always answer in English"))

	texts, err := s.GlobalRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Always answer in English", "Prefer bullet lists"}, texts)

	rules, err := s.Rules(ctx)
	require.NoError(t, err)
	require.NoError(t, s.DeleteRule(ctx, rules[0].ID))

	texts, err = s.GlobalRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Prefer bullet lists"}, texts)
	assert.ErrorIs(t, s.DeleteRule(ctx, rules[0].ID), ErrNotFound)
}

func TestSnippets(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	older := session.NewSnippet("Persona", "You are a tutor.")
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer := session.NewSnippet("", "Answer briefly.")
	require.NoError(t, s.SaveSnippet(ctx, older))
	require.NoError(t, s.SaveSnippet(ctx, newer))

	got, err := s.Snippets(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, "Answer briefly.", got[0].Title)

	require.NoError(t, s.DeleteSnippet(ctx, older.ID))
	got, err = s.Snippets(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenDir(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.AddRule(ctx, "persist me"))
	require.NoError(t, s.Close())

	s, err = OpenDir(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	rules, err := s.GlobalRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"persist me"}, rules)
	assert.Equal(t, filepath.Join(dir, FileName), s.Path())
}

func TestCancelledTurnIsSaved(t *testing.T) {
	s := openTemp(t)

	cfg := config.DefaultConfig()
	cfg.Model = "test-model"
	p := &llmtest.MockProvider{Hold: true, StreamEvents: []llm.StreamEvent{{Content: "partial answer"}}}
	engine := session.NewEngine(p, cfg, nil, s, s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New()
	turn, err := engine.Send(ctx, sess, session.Message{Text: "write a tutor prompt"}, func(u session.Update) {
		if _, ok := u.Event.(stream.TextDelta); ok {
			cancel()
		}
	})
	require.ErrorIs(t, err, llm.ErrAborted)
	require.NotNil(t, turn)
	assert.Equal(t, "partial answer", turn.Text)

	loaded, err := s.LoadSession(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Turns, 3)
	assert.Equal(t, "write a tutor prompt", loaded.Turns[1].Text)
	assert.Equal(t, "partial answer", loaded.Turns[2].Text)
}
