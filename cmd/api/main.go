// @title           AskStan Chat API
// @version         1.0
// @description     Streams watsonx answers grounded in ingested Instana documents.
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/AskStan/internal/chat"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/data/redisStore"
	"github.com/akolanti/AskStan/internal/data/store"
	"github.com/akolanti/AskStan/internal/domain/chatModel"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/handlers"
	"github.com/akolanti/AskStan/internal/job"
	"github.com/akolanti/AskStan/internal/middleware"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/internal/rag/ingest"
	"github.com/akolanti/AskStan/internal/rag/providers"
	"github.com/akolanti/AskStan/internal/server"
	"github.com/akolanti/AskStan/internal/worker"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/joho/godotenv"
)

var (
	configPath        string
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	flag.StringVar(&configPath, "config", os.Getenv("ASKSTAN_CONFIG"), "optional YAML config file")
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address, overrides LISTEN_ADDR")
	flag.Parse()

	cfg, err := config.Load(configPath, config.ScopeServer)
	if err != nil {
		logger_i.NewLogger("main").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	level, _ := config.ParseLogLevel(cfg.Log.Level)
	logger_i.Init(level, cfg.IsProd())
	var logger = logger_i.NewLogger("main")

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	sessionStore, jobStore := initStores(serviceContext, cfg, logger)

	//external services
	set := providers.New(cfg)
	embedder, err := set.Embedder(serviceContext)
	if err != nil {
		logger.Error("Embedding provider failed to initialize", "error", err)
		os.Exit(1)
	}
	llmProvider, err := set.LLM(serviceContext)
	if err != nil {
		logger.Error("LLM provider failed to initialize", "error", err)
		os.Exit(1)
	}
	vectorStore, err := set.VectorStore(serviceContext)
	if err != nil {
		logger.Error("Vector store failed to initialize", "backend", cfg.Vector.Backend, "error", err)
		os.Exit(1)
	}
	logger.Info("External services ready", "llm", cfg.LLM.Provider, "embedding", cfg.LLM.EmbeddingProvider, "vectorStore", cfg.Vector.Backend)

	retriever := rag.NewRetriever(embedder, vectorStore, rag.RetrievalOptionsFromConfig(cfg.RAG))
	ragService := rag.NewService(retriever, llmProvider, rag.Options{
		SystemPrompt: cfg.Chat.SystemPrompt,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
	})
	controller := chat.NewController(sessionStore, ragService, chat.Options{
		TurnsLimit: cfg.Chat.TurnsLimit,
		QRText:     cfg.Chat.QRText,
	})

	//on-demand ingestion
	pipeline := ingest.NewPipeline(vectorStore, embedder, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
	})
	jobChannel := make(chan jobModel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})
	worker.InitServices(service, pipeline)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	uploadDir, err := handlers.GetTargetDirectory("")
	if err != nil {
		logger.Error("Upload directory unavailable", "error", err)
		os.Exit(1)
	}

	router := server.NewRouter(server.Routes{
		Chat:         handlers.NewChatHandler(controller),
		Jobs:         handlers.NewJobHandler(service, uploadDir),
		Middleware:   middleware.New(cfg.Server.AdminToken),
		AdminEnabled: cfg.Server.AdminToken != "",
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
		CloseServices: func() {
			closeExternalServices()
			if err := vectorStore.Close(); err != nil {
				logger.Error("Error closing vector store", "error", err)
			}
			redisStore.CloseAll()
		},
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(cfg.Server.ListenAddr, router)

	<-stopExecution
	logger.Info("Server stopped")
}

// initStores uses Redis when REDIS_ADDR is set and falls back to in-memory
// stores when it is unset or offline.
func initStores(ctx context.Context, cfg *config.Config, logger *logger_i.Logger) (chatModel.SessionStore, jobModel.JobStore) {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, using in-memory stores")
		return store.InitInMemorySessionStore(), store.InitInMemoryJobStore()
	}

	opts := redisStore.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password}
	sessions, err := store.NewRedisSessionStore(ctx, opts, cfg.Redis.SessionTTL)
	if err != nil {
		logger.Error("Redis stores are offline, using in-memory stores", "error", err)
		return store.InitInMemorySessionStore(), store.InitInMemoryJobStore()
	}
	jobs, err := store.NewRedisJobStore(ctx, opts)
	if err != nil {
		logger.Error("Redis job store is offline, using in-memory job store", "error", err)
		return sessions, store.InitInMemoryJobStore()
	}
	return sessions, jobs
}
