package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// HandlerFunc is the signature for API route handlers. A non-nil result is
// written as JSON with the context's status unless the handler already responded.
type HandlerFunc func(ctx Ctx) (any, error)

// Middleware interface for before/after hooks
type Middleware interface {
	Before(ctx Ctx) error // return Stop() to abort chain
	After(ctx Ctx) error  // always called if Before succeeded
}

// RouteNode represents a node in the radix tree
type RouteNode struct {
	segment    string
	param      bool
	catchAll   bool
	paramName  string
	paramType  string // "string", "int", "int64", "uuid"
	handler    HandlerFunc
	mount      http.Handler
	children   []*RouteNode
	middleware []Middleware
}

// Router manages all routes and middleware
type Router struct {
	root       *RouteNode
	middleware []Middleware
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewRouter creates a new router instance
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		root: &RouteNode{
			children: make([]*RouteNode, 0),
		},
		middleware: make([]Middleware, 0),
		logger:     logger,
	}
}

// AddAPIRoute registers an API handler for a path. Segments written as
// [name] or [name:type] capture parameters; [...name] captures the rest.
func (r *Router) AddAPIRoute(path string, handler HandlerFunc, middleware ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.insert(path)
	node.handler = handler
	node.middleware = middleware
}

// Mount registers a raw http.Handler for a path. Mounted handlers bypass
// middleware; use them for protocol upgrades.
func (r *Router) Mount(path string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.insert(path).mount = h
}

// Use adds global middleware
func (r *Router) Use(middleware ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

func (r *Router) insert(path string) *RouteNode {
	node := r.root
	for _, segment := range splitPath(path) {
		node = r.findOrCreateChild(node, segment)
	}
	return node
}

// Match finds a handler for the given path
func (r *Router) Match(path string) (*RouteNode, map[string]string, []Middleware) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segments := splitPath(path)
	params := make(map[string]string)

	node, matched := r.matchNode(r.root, segments, params)
	if !matched || (node.handler == nil && node.mount == nil) {
		return nil, map[string]string{}, nil
	}

	// Collect middleware from root to matched node
	allMiddleware := append([]Middleware{}, r.middleware...)
	allMiddleware = append(allMiddleware, node.middleware...)
	return node, params, allMiddleware
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	node, params, middleware := r.Match(req.URL.Path)
	if node != nil && node.mount != nil {
		node.mount.ServeHTTP(w, req)
		return
	}

	ctx := NewContext(w, req, r.logger)

	// If no handler found, return 404
	if node == nil {
		ctx.JSON(http.StatusNotFound, &HTTPError{Code: http.StatusNotFound, Message: "not found"})
		return
	}

	// Set route parameters
	ctx = WithParams(ctx, params)

	// Handle panics
	defer func() {
		if err := recover(); err != nil {
			ctx.Logger().Error("panic in handler", zap.Any("error", err))
			r.handleError(ctx, fmt.Errorf("internal server error: %v", err))
		}
	}()

	// Build middleware chain
	finalHandler := node.handler
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := finalHandler
		finalHandler = func(c Ctx) (any, error) {
			// Execute Before hook
			if err := mw.Before(c); err != nil {
				if errors.Is(err, ErrStop) {
					return nil, nil // Middleware handled response
				}
				return nil, err
			}

			result, err := next(c)
			if err != nil && !c.Written() {
				c.Status(statusOf(err))
			}

			// Execute After hook
			if afterErr := mw.After(c); afterErr != nil {
				c.Logger().Error("error in After middleware", zap.Error(afterErr))
			}

			return result, err
		}
	}

	result, err := finalHandler(ctx)
	if err != nil {
		r.handleError(ctx, err)
		return
	}

	// A nil result means the handler or a middleware wrote the response
	if result == nil || ctx.Written() {
		return
	}
	if err := ctx.JSON(ctx.StatusCode(), result); err != nil {
		ctx.Logger().Warn("failed to write response", zap.Error(err))
	}
}

// findOrCreateChild finds or creates a child node
func (r *Router) findOrCreateChild(parent *RouteNode, segment string) *RouteNode {
	// Check if it's a parameter segment
	if strings.HasPrefix(segment, "[") && strings.HasSuffix(segment, "]") {
		paramDef := segment[1 : len(segment)-1]

		// Check for catch-all
		if strings.HasPrefix(paramDef, "...") {
			paramName := paramDef[3:]
			for _, child := range parent.children {
				if child.catchAll && child.paramName == paramName {
					return child
				}
			}
			node := &RouteNode{
				segment:   segment,
				catchAll:  true,
				paramName: paramName,
				paramType: "string",
				children:  make([]*RouteNode, 0),
			}
			parent.children = append(parent.children, node)
			return node
		}

		paramName, paramType := parseParamDef(paramDef)

		// Look for existing param node
		for _, child := range parent.children {
			if child.param && child.paramName == paramName {
				return child
			}
		}

		node := &RouteNode{
			segment:   segment,
			param:     true,
			paramName: paramName,
			paramType: paramType,
			children:  make([]*RouteNode, 0),
		}
		parent.children = append(parent.children, node)
		return node
	}

	// Static segment
	for _, child := range parent.children {
		if !child.param && !child.catchAll && child.segment == segment {
			return child
		}
	}

	node := &RouteNode{
		segment:  segment,
		children: make([]*RouteNode, 0),
	}
	parent.children = append(parent.children, node)
	return node
}

// matchNode attempts to match a path against the tree
func (r *Router) matchNode(node *RouteNode, segments []string, params map[string]string) (*RouteNode, bool) {
	if len(segments) == 0 {
		return node, true
	}

	segment := segments[0]
	remaining := segments[1:]

	// Try static match first (highest priority)
	for _, child := range node.children {
		if !child.param && !child.catchAll && child.segment == segment {
			if result, ok := r.matchNode(child, remaining, params); ok {
				return result, true
			}
		}
	}

	// Try parameter match
	for _, child := range node.children {
		if child.param && validateParam(segment, child.paramType) {
			params[child.paramName] = segment
			if result, ok := r.matchNode(child, remaining, params); ok {
				return result, true
			}
			delete(params, child.paramName)
		}
	}

	// Try catch-all match (lowest priority)
	for _, child := range node.children {
		if child.catchAll {
			params[child.paramName] = strings.Join(segments, "/")
			return child, true
		}
	}

	return nil, false
}

// handleError writes err as a JSON error body
func (r *Router) handleError(ctx Ctx, err error) {
	if ctx.Written() {
		ctx.Logger().Error("handler error after response", zap.Error(err))
		return
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= http.StatusInternalServerError {
			ctx.Logger().Error("handler error", zap.Error(err))
		} else {
			ctx.Logger().Debug("request rejected", zap.Int("code", httpErr.Code), zap.String("reason", httpErr.Message))
		}
		ctx.JSON(httpErr.Code, httpErr)
		return
	}
	ctx.Logger().Error("handler error", zap.Error(err))
	ctx.JSON(http.StatusInternalServerError, &HTTPError{Code: http.StatusInternalServerError, Message: "internal server error"})
}

// Helper functions

func statusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return []string{}
	}
	return strings.Split(path, "/")
}

func parseParamDef(def string) (name, paramType string) {
	parts := strings.Split(def, ":")
	name = parts[0]
	paramType = "string"

	if len(parts) > 1 {
		paramType = parts[1]
	}

	return name, paramType
}

func validateParam(value, paramType string) bool {
	switch paramType {
	case "int", "int64":
		for _, r := range value {
			if r < '0' || r > '9' {
				return false
			}
		}
		return len(value) > 0
	case "uuid":
		// Check format: 8-4-4-4-12
		if len(value) != 36 {
			return false
		}
		return value[8] == '-' && value[13] == '-' && value[18] == '-' && value[23] == '-'
	default:
		return len(value) > 0
	}
}

// RouteTable represents the serialized routing table
type RouteTable struct {
	Routes []RouteEntry `json:"routes"`
}

// RouteEntry represents a single route in the table
type RouteEntry struct {
	Path   string     `json:"path"`
	Kind   string     `json:"kind"`
	Params []ParamDef `json:"params,omitempty"`
}

// ParamDef represents a route parameter definition
type ParamDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExportTable exports the routing table
func (r *Router) ExportTable() *RouteTable {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table := &RouteTable{Routes: make([]RouteEntry, 0)}
	r.collectRoutes(r.root, "", table)
	return table
}

func (r *Router) collectRoutes(node *RouteNode, path string, table *RouteTable) {
	currentPath := path
	if node.segment != "" {
		currentPath = path + "/" + node.segment
	}

	if node.handler != nil || node.mount != nil {
		entry := RouteEntry{Path: currentPath, Kind: "api"}
		if currentPath == "" {
			entry.Path = "/"
		}
		if node.mount != nil {
			entry.Kind = "mount"
		}
		for _, seg := range splitPath(currentPath) {
			if strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]") {
				paramDef := strings.TrimPrefix(seg[1:len(seg)-1], "...")
				name, paramType := parseParamDef(paramDef)
				entry.Params = append(entry.Params, ParamDef{Name: name, Type: paramType})
			}
		}
		table.Routes = append(table.Routes, entry)
	}

	for _, child := range node.children {
		r.collectRoutes(child, currentPath, table)
	}
}
