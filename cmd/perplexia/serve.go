package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/cache"
	"github.com/recera/perplexia/internal/library"
	"github.com/recera/perplexia/internal/source"
	"github.com/recera/perplexia/pkg/live"
	"github.com/recera/perplexia/pkg/mindmap"
	"github.com/recera/perplexia/pkg/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve projected mindmaps over HTTP and websockets",
		Long: `Starts the mindmap server:

  /healthz                  liveness probe
  /api/mindmap/{pdf_id}     projected graph of a document
  /api/documents            documents in the local library
  /live/{session}           live viewer websocket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, :8080)")

	return cmd
}

// serveDeps is what the HTTP routes read from
type serveDeps struct {
	src     source.Source
	lib     *library.Library // optional
	cache   *cache.Cache     // optional
	palette *mindmap.Palette
	live    http.Handler
	token   string
	logger  *zap.Logger
}

func (a *app) runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := a.openSource(ctx, 0)
	if err != nil {
		return err
	}
	defer closeSrc()

	lib, err := library.Open(a.cfg.Library.Path)
	if err != nil {
		a.logger.Warn("library unavailable, /api/documents disabled", zap.Error(err))
	} else {
		defer lib.Close()
	}

	c := a.openCache()
	if c != nil {
		defer c.Close()
	}

	liveSrv := live.NewServer(&live.Options{
		Loader: source.Loader(src),
		View:   a.viewOptions(c),
		Logger: a.logger,
	})
	defer liveSrv.Shutdown()

	palette := a.cfg.View.Palette
	router := newRouter(serveDeps{
		src:     src,
		lib:     lib,
		cache:   c,
		palette: &palette,
		live:    liveSrv,
		token:   a.cfg.Server.Token,
		logger:  a.logger,
	})

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("source", a.cfg.Source.Kind),
			zap.Bool("auth", a.cfg.Server.Token != ""))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	liveSrv.Shutdown()
	return httpSrv.Shutdown(shutdownCtx)
}

func newRouter(d serveDeps) *server.Router {
	router := server.NewRouter(d.logger)
	router.Use(server.RequestLog(d.logger))

	router.AddAPIRoute("/healthz", func(ctx server.Ctx) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}, server.Methods(http.MethodGet, http.MethodHead))

	auth := server.BearerAuth(d.token)

	router.AddAPIRoute("/api/mindmap/[pdf_id:int64]", func(ctx server.Ctx) (any, error) {
		pdfID, err := ctx.ParamInt("pdf_id")
		if err != nil {
			return nil, server.Errorf(http.StatusBadRequest, "invalid pdf_id")
		}
		doc, err := d.src.Document(ctx.Context(), pdfID)
		if errors.Is(err, source.ErrNotFound) {
			return nil, server.Errorf(http.StatusNotFound, "document %d not found", pdfID)
		}
		if err != nil {
			return nil, err
		}
		if d.cache != nil {
			return d.cache.Project(doc.Raw, doc.Mindmap, d.palette), nil
		}
		return mindmap.Project(doc.Mindmap, d.palette), nil
	}, server.Methods(http.MethodGet), auth)

	router.AddAPIRoute("/api/documents", func(ctx server.Ctx) (any, error) {
		if d.lib == nil {
			return nil, server.Errorf(http.StatusNotFound, "no local library")
		}
		return d.lib.List(ctx.Context())
	}, server.Methods(http.MethodGet), auth)

	if d.live != nil {
		h := requireToken(d.token, d.live)
		router.Mount("/live", h)
		router.Mount("/live/[...session]", h)
	}
	return router
}

// requireToken guards mounted handlers, which bypass router middleware.
// Browsers cannot set headers on websocket upgrades, so ?token= is accepted
// too.
func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			got = strings.TrimPrefix(h, "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
