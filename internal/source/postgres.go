package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool is the subset of pgxpool.Pool the Postgres source uses
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const documentQuery = `SELECT id, filename, mindmap::text, pdf_summary FROM pdf_documents WHERE id = $1`

// Postgres reads documents straight from the back end's database
type Postgres struct {
	pool   DBPool
	closer func()
	logger *zap.Logger
}

// NewPostgres wraps an existing pool after checking connectivity
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool, logger: orNop(logger).Named("source.postgres")}, nil
}

// ConnectPostgres opens a pool for url. Close releases it.
func ConnectPostgres(ctx context.Context, url string, logger *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	p, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	p.closer = pool.Close
	return p, nil
}

// Document implements Source
func (p *Postgres) Document(ctx context.Context, pdfID int64) (*Document, error) {
	var (
		id                         int64
		filename, mindmap, summary pgtype.Text
	)
	err := p.pool.QueryRow(ctx, documentQuery, pdfID).Scan(&id, &filename, &mindmap, &summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(pdfID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("query document %d: %w", pdfID, err)
	}

	var raw []byte
	if mindmap.Valid {
		raw = []byte(mindmap.String)
	}
	return newDocument(id, filename.String, summary.String, raw, p.logger), nil
}

// Close releases a pool opened by ConnectPostgres
func (p *Postgres) Close() {
	if p.closer != nil {
		p.closer()
	}
}
