package server

import (
	"context"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-proxy/health"
	"github.com/saiset-co/sai-proxy/proxy"
	"github.com/saiset-co/sai-proxy/types"
	"github.com/saiset-co/sai-proxy/utils"
)

// AdminHandlers exposes the administrative operations over HTTP.
type AdminHandlers struct {
	Players *proxy.Players
	Admin   *proxy.Admin
	Caches  *proxy.Caches
	Health  types.HealthManager
	Metrics types.MetricsManager
	Cron    types.CronManager
	Config  types.ConfigManager
	Version string
}

// exposedSections are the top-level config sections /admin/config may read.
// The database section carries credentials and is never served.
var exposedSections = map[string]bool{
	"name":    true,
	"version": true,
	"caches":  true,
	"reload":  true,
	"metrics": true,
	"server":  true,
	"proxy":   true,
}

type nameRequest struct {
	Name string `json:"name"`
}

type statsResponse struct {
	Caches []types.CacheStats `json:"caches"`
	Jobs   []types.JobEntry   `json:"jobs,omitempty"`
}

type lookupResponse struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Operator bool   `json:"operator"`
}

func (a *AdminHandlers) Register(router *Router) {
	router.GET("/metrics", a.Metrics.Handler())
	router.GET("/health", a.handleHealth)
	router.GET("/version", a.handleVersion)
	router.GET("/admin/stats", a.handleStats)
	router.GET("/admin/lookup", a.handleLookup)
	router.GET("/admin/config", a.handleConfig)
	router.POST("/admin/reload", a.handleReload)
	router.POST("/admin/op", a.handleOperator(true))
	router.POST("/admin/deop", a.handleOperator(false))
	router.POST("/admin/flush", a.handleFlush)
}

func (a *AdminHandlers) handleHealth(ctx *fasthttp.RequestCtx) {
	report := a.Health.Check(ctx)

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}
	writeJSON(ctx, status, report)
}

func (a *AdminHandlers) handleVersion(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, health.GetBuildInfo(a.Version))
}

func (a *AdminHandlers) handleStats(ctx *fasthttp.RequestCtx) {
	response := statsResponse{Caches: a.Caches.Stats()}
	if a.Cron != nil {
		response.Jobs = a.Cron.Jobs()
	}
	writeJSON(ctx, fasthttp.StatusOK, response)
}

func (a *AdminHandlers) handleLookup(ctx *fasthttp.RequestCtx) {
	name := string(ctx.QueryArgs().Peek("name"))

	id, err := a.Players.Resolve(ctx, name)
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	operator, err := a.Players.IsOperator(ctx, id)
	if err != nil {
		writeFailure(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, lookupResponse{Name: name, ID: id.String(), Operator: operator})
}

func (a *AdminHandlers) handleConfig(ctx *fasthttp.RequestCtx) {
	path := string(ctx.QueryArgs().Peek("path"))
	section, _, _ := strings.Cut(path, ".")
	if !exposedSections[section] {
		writeError(ctx, fasthttp.StatusForbidden, "config path is not exposed")
		return
	}

	var value interface{}
	if err := a.Config.GetAs(path, &value); err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"path": path, "value": value})
}

func (a *AdminHandlers) handleReload(ctx *fasthttp.RequestCtx) {
	if err := a.Admin.Reload(); err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "reloaded", "join_message": a.Admin.JoinMessage()})
}

func (a *AdminHandlers) handleOperator(operator bool) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var request nameRequest
		if err := utils.Unmarshal(ctx.PostBody(), &request); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
			return
		}

		if err := a.Players.SetOperator(ctx, request.Name, operator); err != nil {
			writeFailure(ctx, err)
			return
		}

		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"name": request.Name, "operator": operator})
	}
}

func (a *AdminHandlers) handleFlush(ctx *fasthttp.RequestCtx) {
	if err := a.Caches.Flush(context.WithoutCancel(ctx)); err != nil {
		writeFailure(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, statsResponse{Caches: a.Caches.Stats()})
}

func writeFailure(ctx *fasthttp.RequestCtx, err error) {
	writeError(ctx, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrPlayerNotFound),
		errors.Is(err, types.ErrConfigNotFound):
		return fasthttp.StatusNotFound
	case errors.Is(err, types.ErrPlayerNameEmpty),
		errors.Is(err, types.ErrServerNameEmpty),
		errors.Is(err, types.ErrInvalidParameter),
		errors.Is(err, types.ErrDatabaseKeyInvalid):
		return fasthttp.StatusBadRequest
	case errors.Is(err, types.ErrConfigLoadFailed):
		return fasthttp.StatusUnprocessableEntity
	case errors.Is(err, types.ErrCacheClosed):
		return fasthttp.StatusServiceUnavailable
	default:
		return fasthttp.StatusInternalServerError
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := utils.Marshal(body)
	if err != nil {
		ctx.Error("failed to encode response", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(data)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, map[string]string{"error": message})
}
