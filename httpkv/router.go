package httpkv

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Handler handles a single request through a Ctx. Returning a non-nil
// error hands the response off to the router's error policy instead of
// whatever partial write the handler already made.
type Handler func(*Ctx) error

// Middleware wraps a Handler to run logic before and/or after it.
type Middleware func(Handler) Handler

// ErrorHandler turns a Handler error into a response. The default
// (defaultErrorHandler) writes a JSON {"error": true, "cause": ...} body
// at HTTP 200.
type ErrorHandler func(*Ctx, error)

// Router is a minimal method+path-template multiplexer with ":name"
// and trailing "*name" segments. It is not a trie: routes are matched in
// registration order, which is fine at this route count.
type Router struct {
	mu       sync.RWMutex
	routes   map[string][]route
	mws      []Middleware
	log      *slog.Logger
	onError  ErrorHandler
	notFound Handler
}

type route struct {
	segments []string
	handler  Handler
}

// NewRouter returns an empty Router with a default logger and error
// handler.
func NewRouter() *Router {
	r := &Router{
		routes: make(map[string][]route),
		log:    slog.Default(),
	}
	r.onError = defaultErrorHandler
	return r
}

// Use appends middleware, applied to every route in registration order
// (outermost first).
func (r *Router) Use(mw ...Middleware) { r.mws = append(r.mws, mw...) }

// Logger returns the router's logger.
func (r *Router) Logger() *slog.Logger { return r.log }

// SetLogger replaces the router's logger.
func (r *Router) SetLogger(l *slog.Logger) { r.log = l }

// OnError overrides the router's error handler.
func (r *Router) OnError(h ErrorHandler) { r.onError = h }

// NotFound sets the handler invoked when no route matches.
func (r *Router) NotFound(h Handler) { r.notFound = h }

func (r *Router) Get(path string, h Handler)    { r.add(http.MethodGet, path, h) }
func (r *Router) Post(path string, h Handler)   { r.add(http.MethodPost, path, h) }
func (r *Router) Put(path string, h Handler)    { r.add(http.MethodPut, path, h) }
func (r *Router) Delete(path string, h Handler) { r.add(http.MethodDelete, path, h) }

func (r *Router) add(method, path string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[method] = append(r.routes[method], route{segments: splitPath(path), handler: h})
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchSegments(pattern, reqPath []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "*") {
			if i > len(reqPath) {
				return nil, false
			}
			params[seg[1:]] = strings.Join(reqPath[i:], "/")
			return params, true
		}
		if i >= len(reqPath) {
			return nil, false
		}
		if strings.HasPrefix(seg, ":") {
			params[seg[1:]] = reqPath[i]
			continue
		}
		if seg != reqPath[i] {
			return nil, false
		}
	}
	if len(pattern) != len(reqPath) {
		return nil, false
	}
	return params, true
}

func (r *Router) match(method, path string) (Handler, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reqSegs := splitPath(path)
	for _, rt := range r.routes[method] {
		if params, ok := matchSegments(rt.segments, reqSegs); ok {
			return rt.handler, params, true
		}
	}
	return nil, nil, false
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h, params, ok := r.match(req.Method, req.URL.Path)
	if !ok {
		if r.notFound != nil {
			h, params, ok = r.notFound, map[string]string{}, true
		} else {
			http.NotFound(w, req)
			return
		}
	}

	ctx := newCtx(w, req, params, r.log)
	final := h
	for i := len(r.mws) - 1; i >= 0; i-- {
		final = r.mws[i](final)
	}
	if err := final(ctx); err != nil {
		r.onError(ctx, err)
	}
}
