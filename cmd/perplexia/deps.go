package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/recera/perplexia/internal/backend"
	"github.com/recera/perplexia/internal/cache"
	"github.com/recera/perplexia/internal/library"
	"github.com/recera/perplexia/internal/source"
	"github.com/recera/perplexia/pkg/view"
)

func (a *app) backendClient() (*backend.Client, error) {
	b := a.cfg.Backend
	return backend.NewClient(backend.Options{
		BaseURL:   b.URL,
		Token:     b.Token,
		Timeout:   b.Timeout,
		RateLimit: b.RateLimit,
		Burst:     b.Burst,
		Logger:    a.logger,
	})
}

// openSource builds the configured document source. The returned func
// releases whatever the source holds open.
func (a *app) openSource(ctx context.Context, sessionID int64) (source.Source, func(), error) {
	nop := func() {}
	switch a.cfg.Source.Kind {
	case "api":
		client, err := a.backendClient()
		if err != nil {
			return nil, nil, err
		}
		if sessionID == 0 {
			sessionID = a.cfg.Backend.SessionID
		}
		return source.NewAPI(client, sessionID, a.logger), nop, nil
	case "postgres":
		pg, err := source.ConnectPostgres(ctx, a.cfg.Source.DatabaseURL, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "library":
		lib, err := library.Open(a.cfg.Library.Path)
		if err != nil {
			return nil, nil, err
		}
		return source.NewLibrary(lib, a.logger), func() { lib.Close() }, nil
	case "file":
		return source.NewFile(a.cfg.Source.Dir, a.logger), nop, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", a.cfg.Source.Kind)
	}
}

// openCache returns nil when caching is disabled or the cache directory is
// unusable; callers then project directly
func (a *app) openCache() *cache.Cache {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	c, err := cache.New(cache.Config{
		Dir:     a.cfg.Cache.Dir,
		MaxSize: a.cfg.Cache.MaxSize,
		MaxAge:  a.cfg.Cache.MaxAge,
		Logger:  a.logger,
	})
	if err != nil {
		a.logger.Warn("projection cache disabled", zap.Error(err))
		return nil
	}
	return c
}

func (a *app) viewOptions(c *cache.Cache) *view.Options {
	v := a.cfg.View
	palette := v.Palette
	opts := &view.Options{
		FitDelay:       v.FitDelay,
		InitFitDelay:   v.InitFitDelay,
		FitPadding:     v.FitPadding,
		InitFitPadding: v.InitFitPadding,
		Palette:        &palette,
		Logger:         a.logger,
	}
	if c != nil {
		opts.Project = c.ProjectMindmap
	}
	return opts
}
