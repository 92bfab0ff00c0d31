// Package loader reads law sections from disk.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
)

// FileLoader loads text and PDF documents. The format is sniffed from the
// content, so files without an extension work too.
type FileLoader struct{}

var _ ports.DocumentLoader = (*FileLoader)(nil)

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

// Load reads the document at path.
func (l *FileLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detecting type of %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	var docs []schema.Document
	switch {
	case mtype.Is("application/pdf"):
		docs, err = documentloaders.NewPDF(f, info.Size()).Load(ctx)
	case isText(mtype):
		docs, err = documentloaders.NewText(f).Load(ctx)
	default:
		return nil, fmt.Errorf("%s (%s): %w", filepath.Base(path), mtype.String(), ports.ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	pages := make([]string, 0, len(docs))
	for _, d := range docs {
		if text := strings.TrimSpace(d.PageContent); text != "" {
			pages = append(pages, text)
		}
	}

	return &entities.Document{
		ID:      generateDocID(path),
		Name:    filepath.Base(path),
		Path:    path,
		Content: strings.Join(pages, "\n\n"),
	}, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// generateDocID creates a deterministic ID for a document.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(filepath.ToSlash(filepath.Clean(path))))
	return hex.EncodeToString(hash[:8])
}
