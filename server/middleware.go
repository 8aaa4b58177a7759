package server

import (
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

const requestIDHeader = "X-Request-ID"

// withRecovery turns a handler panic into a 500 response and an error log
// carrying the goroutine stack.
func withRecovery(logger types.Logger, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		defer func() {
			if rec := recover(); rec != nil {
				buf := make([]byte, 16384)
				n := runtime.Stack(buf, false)

				logger.Error("Recovered from panic",
					zap.Any("panic", rec),
					zap.ByteString("method", ctx.Method()),
					zap.ByteString("path", ctx.Path()),
					zap.ByteString("request_id", ctx.Response.Header.Peek(requestIDHeader)),
					zap.String("stack", string(buf[:n])),
				)

				writeError(ctx, fasthttp.StatusInternalServerError, "internal server error")
			}
		}()

		next(ctx)
	}
}

// withAccessLog tags each request with an id, logs it and records request
// metrics.
func withAccessLog(logger types.Logger, metrics types.MetricsManager, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()

		requestID := string(ctx.Request.Header.Peek(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Response.Header.Set(requestIDHeader, requestID)

		next(ctx)

		duration := time.Since(start)
		status := ctx.Response.StatusCode()
		path := string(ctx.Path())

		metrics.Counter("http_requests_total", map[string]string{
			"method": string(ctx.Method()),
			"path":   path,
			"status": strconv.Itoa(status),
		}).Inc()
		metrics.Histogram("http_request_duration_seconds",
			[]float64{0.001, 0.01, 0.1, 1, 10},
			map[string]string{"path": path},
		).ObserveDuration(start)

		fields := []zap.Field{
			zap.ByteString("method", ctx.Method()),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", requestID),
		}

		if status >= fasthttp.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Debug("Request completed", fields...)
	}
}
