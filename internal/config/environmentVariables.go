package config

import (
	"log/slog"
	"time"
)

const (
	LOG_LEVEL_PROD              = slog.LevelInfo
	TRACE_ID_KEY                = "traceId"
	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//server
	ServerListenAddr       = ":3000"
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 90 * time.Second // synchronous /ask waits on the llm backoff budget
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 15 * time.Second
	MaxUploadSize          = 32 << 20

	//async jobs
	BufferLimit                     = 100
	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	JobTimeout                      = 2 * time.Minute

	//storage
	DataDir            = "data"
	DocumentsSubDir    = "documents"
	TrackerSQLiteFile  = "tracker.db"
	SchedulerStateFile = "scheduler_state.json"

	TrackerBackendSQLite = "sqlite"
	TrackerBackendRedis  = "redis"
	TrackerBackendMemory = "memory"

	StateBackendFile  = "file"
	StateBackendRedis = "redis"

	VectorBackendQdrant = "qdrant"
	VectorBackendMemory = "memory"

	//source site
	SourceBaseURL       = "https://irdai.gov.in"
	SourceUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	CrawlMaxPages       = 5
	CrawlWorkers        = 4
	CrawlRequestTimeout = 30 * time.Second
	CrawlMaxAttempts    = 3
	CrawlBackoffBase    = 2 * time.Second
	CrawlRatePerSecond  = 2.0
	CrawlRevalidate     = 7 * 24 * time.Hour
	MaxDocumentBytes    = 100 << 20

	//ingestion
	ChunkSize        = 800
	ChunkOverlap     = 100
	MinPageChars     = 50
	EmbedBatchSize   = 100
	IngestWorkers    = 2
	PDFPageTimeout   = 10 * time.Second
	EmbedMaxAttempts = 3
	EmbedBackoffBase = 2 * time.Second
	IngestLockTTL    = 15 * time.Minute

	//vectorDB
	QdrantHost            = "localhost"
	QdrantGrpcPort        = 6334
	QdrantUseTLS          = false
	QdrantPoolSize        = 1
	CollectionName        = "regulatory-chunks"
	SemanticCacheName     = "semantic-cache"
	CacheSimilarityCutoff = 0.97
	EmbeddingDimension    = 768

	//embedding / llm providers
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	GeminiModelName      = "gemini-2.5-flash-lite"
	GoogleEmbeddingModel = "gemini-embedding-001"
	OpenAIEmbeddingModel = "text-embedding-3-small"
	// OpenAI-compatible router used for the hosted Mistral model
	OpenAICompatBaseURL = "https://router.huggingface.co/v1"
	OpenAICompatModel   = "mistralai/Mistral-7B-Instruct-v0.2"

	LLMMaxTokens      = 1024
	LLMTemperature    = 0.3
	LLMMaxAttempts    = 4
	LLMBackoffBase    = 2 * time.Second
	LLMRequestTimeout = 60 * time.Second
	EmbeddingTimeout  = 30 * time.Second
	QueryTopK         = 5
	QueryTimeout      = 80 * time.Second

	ModelContext = "You are a regulatory compliance assistant for the Indian insurance sector (IRDAI). " +
		"Answer only from the supplied regulatory context. Be precise, cite the relevant regulation, circular or section, " +
		"and keep a professional tone. If the context does not contain enough information, say so plainly."

	//scheduler
	UpdateInterval        = 12 * time.Hour
	SchedulerPollInterval = 30 * time.Second
	SchedulerInitialDelay = 10 * time.Second
	FailureRetryDelay     = 15 * time.Minute

	//http client pool
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore     = 0
	RedisTrackerStore = 2
	RedisStateStore   = 3

	RedisJobStoreTTL = 24 * time.Hour
)
