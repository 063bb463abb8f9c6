// Package source loads documents and their mindmaps from the places a
// deployment keeps them: the back end API, its Postgres database, the local
// library or a directory of JSON files.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/recera/perplexia/pkg/live"
	"github.com/recera/perplexia/pkg/mindmap"
)

// ErrNotFound is returned when a source has no such document
var ErrNotFound = errors.New("document not found")

// Document is a loaded document. Mindmap is never nil; documents without a
// usable mindmap carry the fallback one.
type Document struct {
	PDFID    int64
	Filename string
	Summary  string
	Mindmap  *mindmap.RawMindmap
	// Raw is the mindmap JSON the graph was decoded from
	Raw []byte
}

// Source looks documents up by id
type Source interface {
	Document(ctx context.Context, pdfID int64) (*Document, error)
}

// newDocument decodes raw, substituting the fallback mindmap when raw is
// missing or malformed
func newDocument(pdfID int64, filename, summary string, raw []byte, logger *zap.Logger) *Document {
	doc := &Document{PDFID: pdfID, Filename: filename, Summary: summary}

	if len(raw) > 0 {
		m, err := mindmap.Parse(raw)
		switch {
		case err == nil && m != nil:
			doc.Mindmap, doc.Raw = m, raw
			return doc
		case err != nil:
			logger.Warn("invalid stored mindmap, using fallback", zap.Int64("pdf_id", pdfID), zap.Error(err))
		}
	}

	doc.Mindmap = mindmap.Fallback(filename)
	doc.Raw, _ = json.Marshal(doc.Mindmap)
	return doc
}

// Loader adapts a Source to the live server's document loader
func Loader(src Source) live.Loader {
	return live.LoaderFunc(func(ctx context.Context, pdfID int64) (*mindmap.RawMindmap, error) {
		doc, err := src.Document(ctx, pdfID)
		if err != nil {
			return nil, err
		}
		return doc.Mindmap, nil
	})
}

func notFound(pdfID int64, cause error) error {
	return fmt.Errorf("document %d: %w (%v)", pdfID, ErrNotFound, cause)
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
