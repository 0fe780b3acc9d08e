package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/ComplianceGPT/internal/adapter/utils"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/handlers"
	"github.com/akolanti/ComplianceGPT/internal/middleware"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
	// Background blocks until long lived goroutines such as the scheduler
	// have returned after CloseServices.
	Background func()
}

// NewRouter mounts the API routes. mcp may be nil.
func NewRouter(h *handlers.Handler, mcp http.Handler) http.Handler {
	r := utils.NewRouter()

	r.Router.Get("/healthz", middleware.Wrap(h.HealthHandler))
	r.Router.Post("/ask", middleware.Wrap(h.AskHandler))
	r.Router.Post("/questions", middleware.Wrap(h.QuestionHandler))
	r.Router.Get("/status/{id}", middleware.Wrap(h.GetStatusHandler))
	r.Router.Post("/documents", middleware.Wrap(h.PostDocumentHandler))
	r.Router.Get("/documents", middleware.Wrap(h.ListDocumentsHandler))
	r.Router.Get("/documents/stats", middleware.Wrap(h.DocumentStatsHandler))
	r.Router.Post("/updates", middleware.Wrap(h.TriggerUpdateHandler))
	r.Router.Get("/updates/status", middleware.Wrap(h.UpdateStatusHandler))
	if mcp != nil {
		r.Router.Handle("/mcp", mcp)
		r.Router.Handle("/mcp/*", mcp)
	}
	return r.Router
}

func CreateServer(listenAddr string, handler http.Handler) {
	_logger = logger_i.NewLogger("Server")

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		if shutdownParams.Background != nil {
			shutdownParams.Background()
		}
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Shut down gracefully")
	case <-ctx.Done():
		_logger.Error("Force shut down")
		os.Exit(1)
	}
}
