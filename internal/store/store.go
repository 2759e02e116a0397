// Package store persists sessions, the knowledge base, global rules and
// snippets in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sant0-9/promptforge/internal/logging"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
)

// FileName is the database file created inside the data directory.
const FileName = "promptforge.db"

var ErrNotFound = errors.New("not found")

// Store is the SQLite-backed persistence layer. It satisfies
// session.Store and session.Knowledge.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	logger *zap.Logger
}

// Rule is a global rule with its row id.
type Rule struct {
	ID   int64
	Text string
}

// Open creates or opens the database at path and brings the schema up to
// date.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; SQLite locks the file anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path, logger: logging.Module(logger, "store")}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDir opens FileName inside dir.
func OpenDir(dir string, logger *zap.Logger) (*Store, error) {
	return Open(filepath.Join(dir, FileName), logger)
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		turns INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		chunks TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS global_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snippets (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug("schema ready", zap.String("path", s.dbPath))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// SaveSession inserts or replaces a session.
func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, turns, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			turns = excluded.turns,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Title, len(sess.Turns), string(data), sess.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the session with the given id, or
// session.ErrSessionNotFound.
func (s *Store) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// LatestSession returns the most recently updated session, or
// session.ErrSessionNotFound when there is none.
func (s *Store) LatestSession(ctx context.Context) (*session.Session, error) {
	list, err := s.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, session.ErrSessionNotFound
	}
	return s.LoadSession(ctx, list[0].ID)
}

// ListSessions returns summaries, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]session.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, turns, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		var sum session.Summary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Turns, &updated); err != nil {
			return nil, err
		}
		sum.UpdatedAt = time.Unix(0, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", session.ErrSessionNotFound, id)
	}
	return nil
}

// SaveSource inserts or replaces a knowledge-base source together with its
// chunks.
func (s *Store) SaveSource(ctx context.Context, src rag.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chunks []byte
	if len(src.Chunks) > 0 {
		var err error
		if chunks, err = json.Marshal(src.Chunks); err != nil {
			return fmt.Errorf("marshal chunks: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, name, content, chunks, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			content = excluded.content,
			chunks = excluded.chunks`,
		src.ID, src.Name, src.Content, nullable(chunks), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save source %s: %w", src.Name, err)
	}
	s.logger.Info("source saved", zap.String("name", src.Name), zap.Int("chunks", len(src.Chunks)))
	return nil
}

// Sources returns every source in upload order.
func (s *Store) Sources(ctx context.Context) ([]rag.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, content, chunks FROM sources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []rag.Source
	for rows.Next() {
		var src rag.Source
		var chunks sql.NullString
		if err := rows.Scan(&src.ID, &src.Name, &src.Content, &chunks); err != nil {
			return nil, err
		}
		if chunks.Valid && chunks.String != "" {
			if err := json.Unmarshal([]byte(chunks.String), &src.Chunks); err != nil {
				// Chunks are a cache; the retriever rebuilds them.
				s.logger.Warn("dropping unreadable chunks", zap.String("source", src.ID), zap.Error(err))
				src.Chunks = nil
			}
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// DeleteSource removes a source and its chunks.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "sources", id)
}

// AddRule records a global rule. Adding an existing rule is a no-op.
func (s *Store) AddRule(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO global_rules (text, created_at) VALUES (?, ?) ON CONFLICT(text) DO NOTHING`,
		text, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("add rule: %w", err)
	}
	return nil
}

// Rules returns the global rules in insertion order.
func (s *Store) Rules(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, text FROM global_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Text); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GlobalRules returns the text of every global rule.
func (s *Store) GlobalRules(ctx context.Context) ([]string, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Text
	}
	return out, nil
}

// DeleteRule removes the global rule with the given id.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "global_rules", id)
}

// SaveSnippet inserts or replaces a snippet.
func (s *Store) SaveSnippet(ctx context.Context, sn session.Snippet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snippets (id, title, content, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, content = excluded.content`,
		sn.ID, sn.Title, sn.Content, sn.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("save snippet: %w", err)
	}
	return nil
}

// Snippets returns every snippet, newest first.
func (s *Store) Snippets(ctx context.Context) ([]session.Snippet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at FROM snippets ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var out []session.Snippet
	for rows.Next() {
		var sn session.Snippet
		var created int64
		if err := rows.Scan(&sn.ID, &sn.Title, &sn.Content, &created); err != nil {
			return nil, err
		}
		sn.CreatedAt = time.Unix(0, created)
		out = append(out, sn)
	}
	return out, rows.Err()
}

// DeleteSnippet removes a snippet.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "snippets", id)
}

// deleteByID removes one row; table is always a constant from this file.
func (s *Store) deleteByID(ctx context.Context, table string, id any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %v: %w", table, id, ErrNotFound)
	}
	return nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
