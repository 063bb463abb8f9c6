package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRouter_AddAPIRoute(t *testing.T) {
	router := NewRouter(nil)

	router.AddAPIRoute("/healthz", func(ctx Ctx) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})

	node, params, _ := router.Match("/healthz")
	if node == nil {
		t.Fatal("Route /healthz was not added or could not be matched")
	}
	if len(params) != 0 {
		t.Errorf("Expected no params for /healthz route, got %v", params)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Errorf("Unexpected body %q (%v)", w.Body.String(), err)
	}
}

func TestRouter_Match(t *testing.T) {
	router := NewRouter(nil)
	handler := func(ctx Ctx) (any, error) { return "ok", nil }

	router.AddAPIRoute("/", handler)
	router.AddAPIRoute("/api/documents", handler)
	router.AddAPIRoute("/api/mindmap/[pdf_id:int64]", handler)
	router.AddAPIRoute("/api/session/[id:uuid]/progress", handler)
	router.Mount("/live/[...session]", http.NotFoundHandler())

	tests := []struct {
		path       string
		wantMatch  bool
		wantParams map[string]string
	}{
		{"/", true, map[string]string{}},
		{"/api/documents", true, map[string]string{}},
		{"/api/mindmap/42", true, map[string]string{"pdf_id": "42"}},
		{"/api/mindmap/abc", false, nil},
		{"/api/session/123e4567-e89b-12d3-a456-426614174000/progress", true, map[string]string{"id": "123e4567-e89b-12d3-a456-426614174000"}},
		{"/api/session/nope/progress", false, nil},
		{"/live/abc", true, map[string]string{"session": "abc"}},
		{"/live/a/b", true, map[string]string{"session": "a/b"}},
		{"/notfound", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			node, params, _ := router.Match(tt.path)

			if !tt.wantMatch {
				if node != nil {
					t.Errorf("Expected no match for %s", tt.path)
				}
				if len(params) > 0 {
					t.Errorf("Expected no params for not found route, got %v", params)
				}
				return
			}

			if node == nil {
				t.Fatalf("Expected match for %s but got nil", tt.path)
			}
			for key, want := range tt.wantParams {
				got, exists := params[key]
				if !exists {
					t.Errorf("Missing param %s", key)
				} else if got != want {
					t.Errorf("Param %s: want %s, got %s", key, want, got)
				}
			}
			for key := range params {
				if _, expected := tt.wantParams[key]; !expected {
					t.Errorf("Unexpected param %s with value %s", key, params[key])
				}
			}
		})
	}
}

func TestRouter_Params(t *testing.T) {
	router := NewRouter(nil)
	router.AddAPIRoute("/api/mindmap/[pdf_id:int64]", func(ctx Ctx) (any, error) {
		id, err := ctx.ParamInt("pdf_id")
		if err != nil {
			return nil, err
		}
		return map[string]int64{"id": id}, nil
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/mindmap/7", nil))
	if !strings.Contains(w.Body.String(), `"id":7`) {
		t.Errorf("Expected id in body, got %s", w.Body.String())
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := NewRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/notfound", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestRouter_Errors(t *testing.T) {
	router := NewRouter(nil)
	router.AddAPIRoute("/missing", func(ctx Ctx) (any, error) {
		return nil, Errorf(http.StatusNotFound, "document %d not found", 9)
	})
	router.AddAPIRoute("/boom", func(ctx Ctx) (any, error) {
		return nil, errors.New("database exploded")
	})
	router.AddAPIRoute("/panic", func(ctx Ctx) (any, error) {
		panic("unreachable state")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "document 9 not found") {
		t.Errorf("Expected error message in body, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "database") {
		t.Error("Internal error details leaked to the client")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 after panic, got %d", w.Code)
	}
}

func TestRouter_Mount(t *testing.T) {
	router := NewRouter(nil)
	router.Use(BearerAuth("secret"))
	router.Mount("/live/[...session]", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live/s1", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("Expected mounted handler to run without middleware, got %d", w.Code)
	}
}

func TestMiddleware_Methods(t *testing.T) {
	router := NewRouter(nil)
	router.AddAPIRoute("/only-get", func(ctx Ctx) (any, error) { return "ok", nil }, Methods(http.MethodGet))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/only-get", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
	if w.Header().Get("Allow") != http.MethodGet {
		t.Errorf("Expected Allow header, got %q", w.Header().Get("Allow"))
	}
}

func TestMiddleware_BearerAuth(t *testing.T) {
	router := NewRouter(nil)
	router.Use(BearerAuth("secret"))
	router.AddAPIRoute("/private", func(ctx Ctx) (any, error) { return "ok", nil })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with token, got %d", w.Code)
	}
}

func TestMiddleware_RequestLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := NewRouter(nil)
	router.Use(RequestLog(zap.New(core)))
	router.AddAPIRoute("/ok", func(ctx Ctx) (any, error) { return "ok", nil })
	router.AddAPIRoute("/bad", func(ctx Ctx) (any, error) { return nil, Errorf(http.StatusBadRequest, "bad") })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))

	entries := logs.FilterMessage("request").All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 request log entries, got %d", len(entries))
	}
	if got := entries[1].ContextMap()["status"]; got != int64(http.StatusBadRequest) {
		t.Errorf("Expected logged status 400, got %v", got)
	}
}

func TestRouter_ExportTable(t *testing.T) {
	router := NewRouter(nil)
	router.AddAPIRoute("/healthz", func(ctx Ctx) (any, error) { return nil, nil })
	router.AddAPIRoute("/api/mindmap/[pdf_id:int64]", func(ctx Ctx) (any, error) { return nil, nil })
	router.Mount("/live/[...session]", http.NotFoundHandler())

	table := router.ExportTable()
	if len(table.Routes) != 3 {
		t.Fatalf("Expected 3 routes, got %d", len(table.Routes))
	}

	kinds := map[string]string{}
	for _, r := range table.Routes {
		kinds[r.Path] = r.Kind
	}
	if kinds["/live/[...session]"] != "mount" {
		t.Errorf("Expected live route to be a mount, got %v", kinds)
	}
	if kinds["/api/mindmap/[pdf_id:int64]"] != "api" {
		t.Errorf("Expected mindmap route to be api, got %v", kinds)
	}
}
