package source

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/backend"
)

// ErrNoSession is returned by the API source when no chat session is set
var ErrNoSession = errors.New("api source requires a session id")

// API loads documents through the back end's session progress listing,
// which is the only endpoint that exposes mindmaps
type API struct {
	client    *backend.Client
	sessionID int64
	logger    *zap.Logger
}

// NewAPI returns a source bound to one chat session
func NewAPI(client *backend.Client, sessionID int64, logger *zap.Logger) *API {
	return &API{client: client, sessionID: sessionID, logger: orNop(logger).Named("source.api")}
}

// Document implements Source
func (a *API) Document(ctx context.Context, pdfID int64) (*Document, error) {
	if a.sessionID == 0 {
		return nil, ErrNoSession
	}
	p, err := a.client.Document(ctx, a.sessionID, pdfID)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, notFound(pdfID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", pdfID, err)
	}

	summary := ""
	if p.Summary != nil {
		summary = *p.Summary
	}
	return newDocument(p.ID, p.Filename, summary, p.MindmapJSON(), a.logger), nil
}
