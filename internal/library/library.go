// Package library keeps fetched documents and their mindmaps in a local
// sqlite database so they can be viewed offline.
package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a document is not in the library
var ErrNotFound = errors.New("library: document not found")

// Document is a stored document
type Document struct {
	PDFID     int64     `json:"pdf_id" yaml:"pdf_id"`
	Filename  string    `json:"filename" yaml:"filename"`
	Title     string    `json:"title" yaml:"title"`
	Mindmap   []byte    `json:"mindmap,omitempty" yaml:"-"`
	Summary   string    `json:"summary,omitempty" yaml:"summary,omitempty"`
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	pdf_id     INTEGER PRIMARY KEY,
	filename   TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	mindmap    TEXT,
	summary    TEXT NOT NULL DEFAULT '',
	fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_fetched ON documents(fetched_at DESC);
`

// Library is a sqlite-backed document store
type Library struct {
	db *sql.DB
}

// Open opens or creates the library at path; ":memory:" is allowed
func Open(path string) (*Library, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Library{db: db}, nil
}

// Close closes the database
func (l *Library) Close() error {
	return l.db.Close()
}

// Put inserts or replaces a document. A zero FetchedAt is set to now.
func (l *Library) Put(ctx context.Context, doc Document) error {
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = time.Now()
	}
	var mindmap any
	if len(doc.Mindmap) > 0 {
		mindmap = string(doc.Mindmap)
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO documents (pdf_id, filename, title, mindmap, summary, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(pdf_id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			mindmap = excluded.mindmap,
			summary = excluded.summary,
			fetched_at = excluded.fetched_at
	`, doc.PDFID, doc.Filename, doc.Title, mindmap, doc.Summary, doc.FetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store document %d: %w", doc.PDFID, err)
	}
	return nil
}

// Get loads one document
func (l *Library) Get(ctx context.Context, pdfID int64) (*Document, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT pdf_id, filename, title, mindmap, summary, fetched_at
		FROM documents WHERE pdf_id = ?
	`, pdfID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", pdfID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %d: %w", pdfID, err)
	}
	return doc, nil
}

// List returns every document, most recently fetched first, without mindmaps
func (l *Library) List(ctx context.Context) ([]Document, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT pdf_id, filename, title, NULL, summary, fetched_at
		FROM documents ORDER BY fetched_at DESC, pdf_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Delete removes a document
func (l *Library) Delete(ctx context.Context, pdfID int64) error {
	res, err := l.db.ExecContext(ctx, "DELETE FROM documents WHERE pdf_id = ?", pdfID)
	if err != nil {
		return fmt.Errorf("failed to delete document %d: %w", pdfID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %d: %w", pdfID, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*Document, error) {
	var (
		doc     Document
		mindmap sql.NullString
		fetched int64
	)
	if err := s.Scan(&doc.PDFID, &doc.Filename, &doc.Title, &mindmap, &doc.Summary, &fetched); err != nil {
		return nil, err
	}
	if mindmap.Valid {
		doc.Mindmap = []byte(mindmap.String)
	}
	doc.FetchedAt = time.UnixMilli(fetched)
	return &doc, nil
}
