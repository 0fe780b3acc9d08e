// @title           ComplianceGPT API
// @version         1.0
// @description     Answers IRDAI compliance questions from crawled regulatory documents, with citations, and keeps the corpus up to date.
// @termsOfService  http://swagger.io/terms/

// @contact.name    ComplianceGPT maintainers
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/app"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/store"
	jobmodel "github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/handlers"
	"github.com/akolanti/ComplianceGPT/internal/job"
	"github.com/akolanti/ComplianceGPT/internal/mcpServer"
	"github.com/akolanti/ComplianceGPT/internal/middleware"
	"github.com/akolanti/ComplianceGPT/internal/server"
	"github.com/akolanti/ComplianceGPT/internal/worker"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

var (
	listenAddr        string
	configPath        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides the config")
	flag.StringVar(&configPath, "config", "", "optional YAML config file")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		logger.Error("Could not load configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		settings.ListenAddr = listenAddr
	}
	if err := settings.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	components, err := app.Build(serviceContext, settings)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	//init job service and job store
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	logger.Info("Starting job service")

	if jobStore, err := store.GetRedisJobStore(serviceContext, settings.Redis); err == nil {
		serviceConfig.JobStore = jobStore
	} else {
		logger.Warn("Redis job store is offline, jobs are kept in memory", "error", err)
		serviceConfig.JobStore = store.InitInMemoryJobStore(config.RedisJobStoreTTL)
	}
	service := job.InitJobService(serviceConfig)

	//init worker pool
	worker.InitServices(service, components.Rag)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	if err := components.Scheduler.Start(serviceContext); err != nil {
		logger.Error("Scheduler could not start", "error", err)
		os.Exit(1)
	}
	go middleware.SweepLoop(serviceContext.Done(), time.Minute, 10*time.Minute)

	mcp, err := mcpServer.NewServer(&mcpServer.Ports{
		Answerer:  components.Rag,
		Scheduler: components.Scheduler,
		Tracker:   components.Tracker,
	})
	if err != nil {
		logger.Error("MCP server could not be created", "error", err)
		os.Exit(1)
	}

	h := handlers.New(handlers.Dependencies{
		JobService:   service,
		Rag:          components.Rag,
		Scheduler:    components.Scheduler,
		Tracker:      components.Tracker,
		Uploader:     components.Crawler,
		QueryTimeout: settings.Query.Timeout,
	})

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
		Background:       components.Scheduler.Wait,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(settings.ListenAddr, server.NewRouter(h, mcp.Handler()))

	<-stopExecution
	logger.Info("Server stopped")
}
