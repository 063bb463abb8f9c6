package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MiddlewareFuncs adapts a pair of functions into a Middleware
type MiddlewareFuncs struct {
	BeforeFunc func(ctx Ctx) error
	AfterFunc  func(ctx Ctx) error
}

func (m MiddlewareFuncs) Before(ctx Ctx) error {
	if m.BeforeFunc == nil {
		return nil
	}
	return m.BeforeFunc(ctx)
}

func (m MiddlewareFuncs) After(ctx Ctx) error {
	if m.AfterFunc == nil {
		return nil
	}
	return m.AfterFunc(ctx)
}

// Methods rejects requests whose method is not listed
func Methods(methods ...string) Middleware {
	allowed := strings.Join(methods, ", ")
	return MiddlewareFuncs{BeforeFunc: func(ctx Ctx) error {
		for _, m := range methods {
			if ctx.Method() == m {
				return nil
			}
		}
		ctx.SetHeader("Allow", allowed)
		return Errorf(http.StatusMethodNotAllowed, "method %s not allowed", ctx.Method())
	}}
}

// BearerAuth requires "Authorization: Bearer <token>". An empty token disables the check.
func BearerAuth(token string) Middleware {
	return MiddlewareFuncs{BeforeFunc: func(ctx Ctx) error {
		if token == "" {
			return nil
		}
		got := strings.TrimPrefix(ctx.Request().Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			ctx.SetHeader("WWW-Authenticate", "Bearer")
			return Errorf(http.StatusUnauthorized, "unauthorized")
		}
		return nil
	}}
}

// RequestLog logs each request with its status and duration
func RequestLog(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return MiddlewareFuncs{AfterFunc: func(ctx Ctx) error {
		logger.Info("request",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.Path()),
			zap.Int("status", ctx.StatusCode()),
			zap.Duration("duration", time.Since(ctx.Started())))
		return nil
	}}
}
