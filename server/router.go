package server

import (
	"strings"
	"sync"

	"github.com/valyala/fasthttp"
)

// Router dispatches on exact method and path. The admin surface has no
// path parameters; query arguments carry everything else.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]fasthttp.RequestHandler
	methods map[string][]string
}

func NewRouter() *Router {
	return &Router{
		routes:  make(map[string]fasthttp.RequestHandler),
		methods: make(map[string][]string),
	}
}

func (r *Router) Add(method, path string, handler fasthttp.RequestHandler) {
	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.routes[routeKey(method, path)] = handler
	r.methods[path] = append(r.methods[path], method)
}

func (r *Router) GET(path string, handler fasthttp.RequestHandler) {
	r.Add(fasthttp.MethodGet, path, handler)
}

func (r *Router) POST(path string, handler fasthttp.RequestHandler) {
	r.Add(fasthttp.MethodPost, path, handler)
}

func (r *Router) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := normalizePath(string(ctx.Path()))

		r.mu.RLock()
		handler := r.routes[routeKey(string(ctx.Method()), path)]
		allowed := r.methods[path]
		r.mu.RUnlock()

		if handler != nil {
			handler(ctx)
			return
		}

		if len(allowed) > 0 {
			ctx.Response.Header.Set(fasthttp.HeaderAllow, strings.Join(allowed, ", "))
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func routeKey(method, path string) string {
	return method + ":" + path
}

func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}
