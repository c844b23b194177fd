// Package docsource loads raw knowledge-base documents from the local
// filesystem against a configured manifest of (filename, category) pairs.
// Supported formats: PDF (text extraction), plain text and markdown.
//
// It implements knowledge.DocumentSource. A file that is missing, empty or
// unreadable is skipped with a warning; only the aggregate result matters
// to the initializer, which treats zero loaded documents as fatal.
package docsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaapeh/copiloto/internal/knowledge"
)

// Errors returned per document. They are logged, not propagated: loading is
// best-effort across the manifest.
var (
	ErrUnsupportedFormat = errors.New("docsource: unsupported file format")
	ErrEmptyDocument     = errors.New("docsource: document is empty")
)

// Entry is one manifest item.
type Entry struct {
	Filename string `mapstructure:"filename"`
	Category string `mapstructure:"category"`
}

// FS loads manifest entries from a base directory.
type FS struct {
	dir     string
	entries []Entry
	logger  *slog.Logger
}

var _ knowledge.DocumentSource = (*FS)(nil)

// NewFS creates a filesystem source rooted at dir.
func NewFS(dir string, entries []Entry, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{dir: dir, entries: entries, logger: logger}
}

// Load reads every manifest entry, skipping files that cannot be read.
func (f *FS) Load(ctx context.Context) ([]knowledge.Document, error) {
	docs := make([]knowledge.Document, 0, len(f.entries))
	for _, entry := range f.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := f.read(entry.Filename)
		if err != nil {
			f.logger.Warn("skipping document", "filename", entry.Filename, "error", err)
			continue
		}

		docs = append(docs, knowledge.Document{
			Filename: entry.Filename,
			Content:  content,
			Category: entry.Category,
		})
		f.logger.Debug("document loaded", "filename", entry.Filename, "bytes", len(content))
	}

	f.logger.Info("documents loaded", "loaded", len(docs), "manifest", len(f.entries))
	return docs, nil
}

// read extracts the text content of one file by extension.
func (f *FS) read(filename string) (string, error) {
	path := filepath.Join(f.dir, filename)

	var (
		content string
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		content, err = extractPDF(path)
	case ".txt", ".md":
		var raw []byte
		raw, err = os.ReadFile(path)
		content = string(raw)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyDocument
	}
	return content, nil
}
