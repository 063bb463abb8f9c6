package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/library"
)

// Library serves documents previously fetched into the local library
type Library struct {
	lib    *library.Library
	logger *zap.Logger
}

// NewLibrary wraps an open library
func NewLibrary(lib *library.Library, logger *zap.Logger) *Library {
	return &Library{lib: lib, logger: orNop(logger).Named("source.library")}
}

// Document implements Source
func (l *Library) Document(ctx context.Context, pdfID int64) (*Document, error) {
	d, err := l.lib.Get(ctx, pdfID)
	if errors.Is(err, library.ErrNotFound) {
		return nil, notFound(pdfID, err)
	}
	if err != nil {
		return nil, err
	}
	return newDocument(d.PDFID, d.Filename, d.Summary, d.Mindmap, l.logger), nil
}

// File serves <dir>/<pdf_id>.json mindmap documents
type File struct {
	dir    string
	logger *zap.Logger
}

// NewFile returns a source reading from dir
func NewFile(dir string, logger *zap.Logger) *File {
	return &File{dir: dir, logger: orNop(logger).Named("source.file")}
}

// Path returns the file a document is read from
func (f *File) Path(pdfID int64) string {
	return filepath.Join(f.dir, strconv.FormatInt(pdfID, 10)+".json")
}

// Document implements Source
func (f *File) Document(ctx context.Context, pdfID int64) (*Document, error) {
	path := f.Path(pdfID)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(pdfID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return newDocument(pdfID, filepath.Base(path), "", data, f.logger), nil
}
