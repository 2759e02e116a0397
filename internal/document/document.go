// Package document loads text files into knowledge-base sources.
package document

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sant0-9/promptforge/internal/rag"
)

// MaxFileSize bounds a single source.
const MaxFileSize = 10 << 20

// Extensions lists the file types accepted as plain text.
var Extensions = []string{".txt", ".md", ".markdown", ".rst", ".json", ".yaml", ".yml", ".csv", ".xml", ".html", ".log"}

// Document is a loaded source file.
type Document struct {
	Content  string
	Preview  string
	Metadata Metadata
}

// Metadata contains document metadata
type Metadata struct {
	Title         string    `json:"title"`
	SourcePath    string    `json:"source_path"`
	SourceFormat  string    `json:"source_format"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	WordCount     int       `json:"word_count"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// FileSizeHuman returns human-readable file size
func (m Metadata) FileSizeHuman() string {
	bytes := m.FileSizeBytes
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}

// SourceID derives a stable id from the absolute path, so loading the same
// file again replaces the earlier source.
func SourceID(absPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+absPath)).String()
}

// Source converts the document into a knowledge-base source without chunks.
func (d *Document) Source() rag.Source {
	return rag.Source{
		ID:      SourceID(d.Metadata.SourcePath),
		Name:    d.Metadata.Title,
		Content: d.Content,
	}
}

// Load reads a text file. Line endings are normalized; binary content and
// unknown extensions are rejected.
func Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%s is too large (%d bytes, limit %d)", path, info.Size(), MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !Supported(absPath) {
		return nil, fmt.Errorf("unsupported file type %q: %s", ext, path)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not a UTF-8 text file", path)
	}

	content := rag.Normalize(strings.TrimPrefix(string(data), "\ufeff"))
	return &Document{
		Content: content,
		Preview: preview(content, 500),
		Metadata: Metadata{
			Title:         filepath.Base(absPath),
			SourcePath:    absPath,
			SourceFormat:  strings.TrimPrefix(ext, "."),
			FileSizeBytes: info.Size(),
			WordCount:     len(strings.Fields(content)),
			LoadedAt:      time.Now(),
		},
	}, nil
}

// Supported reports whether path has an accepted extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func preview(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
