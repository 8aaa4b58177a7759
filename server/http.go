package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// FastHTTPServer serves the admin surface.
type FastHTTPServer struct {
	config          *types.ServerConfig
	logger          types.Logger
	metrics         types.MetricsManager
	router          *Router
	server          *fasthttp.Server
	listener        net.Listener
	done            chan struct{}
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewHTTPServer(config *types.ServerConfig, logger types.Logger, metrics types.MetricsManager, router *Router) *FastHTTPServer {
	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	server := &FastHTTPServer{
		config:          config,
		logger:          logger,
		metrics:         metrics,
		router:          router,
		shutdownTimeout: shutdownTimeout,
	}

	server.state.Store(StateStopped)

	return server
}

func (h *FastHTTPServer) Addr() string {
	return fmt.Sprintf("%s:%d", h.config.Host, h.config.Port)
}

// Start listens on the configured address.
func (h *FastHTTPServer) Start() error {
	listener, err := net.Listen("tcp", h.Addr())
	if err != nil {
		return types.Errorf(types.ErrServerStartFailed, "listen %s: %v", h.Addr(), err)
	}

	if err := h.Serve(listener); err != nil {
		_ = listener.Close()
		return err
	}
	return nil
}

// Serve runs the server on an existing listener in the background.
func (h *FastHTTPServer) Serve(listener net.Listener) error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	h.listener = listener
	h.done = make(chan struct{})
	h.server = &fasthttp.Server{
		Handler:               withRecovery(h.logger, withAccessLog(h.logger, h.metrics, h.router.Handler())),
		Name:                  "sai-proxy",
		ReadTimeout:           h.config.ReadTimeout,
		WriteTimeout:          h.config.WriteTimeout,
		CloseOnShutdown:       true,
		NoDefaultServerHeader: true,
	}

	go func() {
		defer close(h.done)
		if err := h.server.Serve(listener); err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.setState(StateStopped)
		}
	}()

	h.setState(StateRunning)
	h.logger.Info("HTTP server started", zap.String("address", listener.Addr().String()))

	return nil
}

func (h *FastHTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}
	defer h.setState(StateStopped)

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		h.logger.Warn("Server stop timeout, connections closed forcibly", zap.Error(err))
		return types.Errorf(types.ErrServerStopFailed, "%v", err)
	}
	<-h.done

	h.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (h *FastHTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

func (h *FastHTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *FastHTTPServer) setState(newState State) {
	h.state.Store(newState)
}

func (h *FastHTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}
